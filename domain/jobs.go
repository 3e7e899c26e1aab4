package domain

// JobKind is the closed set of queue job types. Worker dispatch switches on
// it exhaustively; adding a kind requires touching every switch.
type JobKind string

const (
	JobDeliver      JobKind = "deliver"
	JobRelationship JobKind = "relationship"
)

// DeliverJobData is the payload of a delivery job: one signed POST of
// Content to TargetInbox on behalf of Actor.
type DeliverJobData struct {
	Actor         string `json:"actor"` // Local username whose key signs
	Content       string `json:"content"`
	TargetInbox   string `json:"targetInbox"`
	IsSharedInbox bool   `json:"isSharedInbox"`
}

// RelationshipJobData fans out a follow or block state change. Silent
// suppresses the notification side effect; RequestId carries the follow
// request URI when one exists.
type RelationshipJobData struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Silent    bool   `json:"silent"`
	RequestId string `json:"requestId,omitempty"`
}

// Job is the tagged union handed to queue workers. Exactly one payload
// field is non-nil, matching Kind.
type Job struct {
	Kind         JobKind
	Deliver      *DeliverJobData
	Relationship *RelationshipJobData
}
