package domain

import (
	"errors"
	"fmt"
)

// ValidationError marks a malformed or spoofed remote document. Never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ResolutionError marks a transient network or parse failure while
// dereferencing a remote object. The caller decides whether to retry.
type ResolutionError struct {
	URI string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve %s: %v", e.URI, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// ConflictError is a domain-level rejection with a stable code that clients
// can react to, distinct from raw internal errors.
type ConflictError struct {
	Code string
}

func (e *ConflictError) Error() string {
	return e.Code
}

// Stable conflict codes surfaced to callers.
var (
	ErrAlreadyVoted     = &ConflictError{Code: "already voted"}
	ErrAlreadyFollowing = &ConflictError{Code: "already following"}
	ErrNotReacted       = &ConflictError{Code: "not reacted"}
	ErrRequestNotFound  = &ConflictError{Code: "request not found"}
)

// DeliveryError classifies a failed delivery attempt. Permanent failures
// (4xx) are recorded and never retried; everything else is transient.
type DeliveryError struct {
	Status    int // HTTP status, 0 for network-level failures
	Permanent bool
	Err       error
}

func (e *DeliveryError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s delivery failure, status %d", kind, e.Status)
	}
	return fmt.Sprintf("%s delivery failure: %v", kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsPermanentDelivery reports whether err is a delivery failure that must
// not be retried.
func IsPermanentDelivery(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Permanent
}
