package web

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/deemkeen/anancus/domain"
	"github.com/deemkeen/anancus/federation"
)

// HandleInbox authenticates an incoming activity and hands it to the
// processor. The HTTP layer owns signature verification; the processor only
// ever sees verified activities.
func HandleInbox(w http.ResponseWriter, r *http.Request, username string, processor *federation.InboxProcessor) {
	// Verify HTTP signature
	signature := r.Header.Get("Signature")
	if signature == "" {
		log.Printf("Inbox: Missing HTTP signature")
		http.Error(w, "Missing signature", http.StatusUnauthorized)
		return
	}

	// Read request body
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Inbox: Failed to read body: %v", err)
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	actorURI := actorOf(body)
	if actorURI == "" {
		http.Error(w, "Activity missing actor", http.StatusBadRequest)
		return
	}

	// Fetch remote actor to verify and cache
	remoteActor, err := federation.GetOrFetchActor(actorURI)
	if err != nil {
		log.Printf("Inbox: Failed to fetch actor %s: %v", actorURI, err)
		http.Error(w, "Failed to verify actor", http.StatusBadRequest)
		return
	}

	// Verify HTTP signature with actor's public key
	if _, err := federation.VerifyRequest(r, remoteActor.PublicKeyPem); err != nil {
		log.Printf("Inbox: Signature verification failed: %v", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	if err := processor.ProcessActivity(r.Context(), username, remoteActor, body); err != nil {
		var validationErr *domain.ValidationError
		var conflictErr *domain.ConflictError
		switch {
		case errors.As(err, &validationErr):
			log.Printf("Inbox: Rejected activity: %v", err)
			http.Error(w, validationErr.Reason, http.StatusBadRequest)
		case errors.As(err, &conflictErr):
			// Conflicts are well-understood terminal states; acknowledge so
			// the sender does not retry
			log.Printf("Inbox: Conflict: %v", err)
			w.WriteHeader(http.StatusAccepted)
		default:
			log.Printf("Inbox: Failed to process activity: %v", err)
			http.Error(w, "Failed to process activity", http.StatusInternalServerError)
		}
		return
	}

	// Return 202 Accepted
	w.WriteHeader(http.StatusAccepted)
}

func actorOf(body []byte) string {
	var envelope struct {
		Actor string `json:"actor"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Actor
}
