package federation

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/deemkeen/anancus/db"
	"github.com/deemkeen/anancus/domain"
	"github.com/deemkeen/anancus/util"
	"github.com/google/uuid"
)

// SendActivity sends an activity directly to a remote inbox, bypassing the
// queue. Used for time-sensitive responses like Accept; everything fanned
// out goes through the DeliverManager instead.
func SendActivity(activity interface{}, inboxURI string, localAccount *domain.Account, conf *util.AppConfig) error {
	// Marshal activity to JSON
	activityJSON, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	// Calculate digest for HTTP signature
	hash := sha256.Sum256(activityJSON)
	digest := "SHA-256=" + base64.StdEncoding.EncodeToString(hash[:])

	// Create HTTP request
	req, err := http.NewRequest("POST", inboxURI, bytes.NewReader(activityJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "anancus/1.0 ActivityPub")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("Digest", digest)

	// Parse private key for signing
	privateKey, err := ParsePrivateKey(localAccount.WebPrivateKey)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	// Sign request
	keyID := fmt.Sprintf("https://%s/users/%s#main-key", conf.Conf.SslDomain, localAccount.Username)
	if err := SignRequest(req, privateKey, keyID); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	// Send request
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote server returned status: %d", resp.StatusCode)
	}

	log.Printf("Outbox: Sent activity to %s (status: %d)", inboxURI, resp.StatusCode)
	return nil
}

// SendAccept sends an Accept activity in response to a Follow
func SendAccept(localAccount *domain.Account, remoteActor *domain.RemoteAccount, followID string, conf *util.AppConfig) error {
	acceptID := fmt.Sprintf("https://%s/activities/%s", conf.Conf.SslDomain, uuid.New().String())
	actorURI := fmt.Sprintf("https://%s/users/%s", conf.Conf.SslDomain, localAccount.Username)

	accept := map[string]interface{}{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id":       acceptID,
		"type":     "Accept",
		"actor":    actorURI,
		"object": map[string]interface{}{
			"id":     followID,
			"type":   "Follow",
			"actor":  remoteActor.ActorURI,
			"object": actorURI,
		},
	}

	return SendActivity(accept, remoteActor.InboxURI, localAccount, conf)
}

// SendCreate fans a new note out to the author's followers through the
// delivery manager, one queued job per unique inbox.
func SendCreate(note *domain.Note, localAccount *domain.Account, conf *util.AppConfig) error {
	actorURI := fmt.Sprintf("https://%s/users/%s", conf.Conf.SslDomain, localAccount.Username)
	noteURI := fmt.Sprintf("https://%s/notes/%s", conf.Conf.SslDomain, note.Id.String())
	createID := fmt.Sprintf("https://%s/activities/%s", conf.Conf.SslDomain, uuid.New().String())
	followersURI := fmt.Sprintf("%s/followers", actorURI)

	to, cc := addressingFor(note.Visibility, followersURI)

	object := map[string]interface{}{
		"id":           noteURI,
		"type":         "Note",
		"attributedTo": actorURI,
		"content":      note.Message,
		"published":    note.CreatedAt.Format(time.RFC3339),
		"to":           to,
		"cc":           cc,
	}
	if note.InReplyToURI != "" {
		object["inReplyTo"] = note.InReplyToURI
	}
	if note.HasPoll() {
		object["type"] = "Question"
		key := "oneOf"
		if note.PollMultiple {
			key = "anyOf"
		}
		options := make([]map[string]interface{}, 0, len(note.PollChoices))
		for i, choice := range note.PollChoices {
			count := 0
			if i < len(note.PollVotes) {
				count = note.PollVotes[i]
			}
			options = append(options, map[string]interface{}{
				"type": "Note",
				"name": choice,
				"replies": map[string]interface{}{
					"type":       "Collection",
					"totalItems": count,
				},
			})
		}
		object[key] = options
		if note.PollExpires != nil {
			object["endTime"] = note.PollExpires.Format(time.RFC3339)
		}
	}

	create := map[string]interface{}{
		"@context":  "https://www.w3.org/ns/activitystreams",
		"id":        createID,
		"type":      "Create",
		"actor":     actorURI,
		"published": note.CreatedAt.Format(time.RFC3339),
		"to":        to,
		"cc":        cc,
		"object":    object,
	}

	manager := NewDeliverManager(db.GetDB(), localAccount, create)
	if err := manager.AddFollowersRecipients(); err != nil {
		log.Printf("Outbox: Failed to get followers: %v", err)
		return nil // Don't fail note creation on a fan-out hiccup
	}
	return manager.Execute()
}

// addressingFor maps a visibility level to AS to/cc lists.
func addressingFor(visibility, followersURI string) ([]string, []string) {
	switch visibility {
	case VisibilityHome:
		return []string{followersURI}, []string{publicURIs[0]}
	case VisibilityFollowers:
		return []string{followersURI}, nil
	case VisibilitySpecified:
		return nil, nil
	default:
		return []string{publicURIs[0]}, []string{followersURI}
	}
}

// followActivityID derives the stable id of a Follow from the pair, so the
// queue producer and the worker agree on it without persisting the activity.
func followActivityID(fromURI, remoteUsername string) string {
	return fromURI + "#follow-" + remoteUsername
}

// SendFollow records a pending follow of a remote actor and queues the
// Follow activity for the relationship worker, so the fan-out is retried
// independently of this call.
func SendFollow(localAccount *domain.Account, remoteActorURI string, conf *util.AppConfig) error {
	remoteActor, err := GetOrFetchActor(remoteActorURI)
	if err != nil {
		return fmt.Errorf("failed to fetch remote actor: %w", err)
	}

	actorURI := fmt.Sprintf("https://%s/users/%s", conf.Conf.SslDomain, localAccount.Username)

	// Store follow relationship as pending. The URI must match the id the
	// worker puts on the wire, so the remote Accept finds this row.
	database := db.GetDB()
	followRecord := &domain.Follow{
		Id:              uuid.New(),
		AccountId:       localAccount.Id,
		TargetAccountId: remoteActor.Id,
		URI:             followActivityID(actorURI, remoteActor.Username),
		Accepted:        false, // Pending until Accept received
		CreatedAt:       time.Now(),
	}

	if err := database.CreateFollow(followRecord); err != nil {
		return fmt.Errorf("failed to store follow: %w", err)
	}

	job := domain.RelationshipJobData{From: actorURI, To: remoteActorURI}
	if err := database.EnqueueRelationshipJob(job); err != nil {
		return fmt.Errorf("failed to queue follow: %w", err)
	}

	log.Printf("Outbox: Queued follow of %s", remoteActorURI)
	return nil
}

// SendUnfollow withdraws a follow by queueing an Undo of the original
// request and dropping the local relationship immediately.
func SendUnfollow(localAccount *domain.Account, remoteActorURI string, conf *util.AppConfig) error {
	database := db.GetDB()
	err, remote := database.ReadRemoteAccountByURI(remoteActorURI)
	if err != nil || remote == nil {
		return fmt.Errorf("unknown remote actor %s", remoteActorURI)
	}
	err, follow := database.ReadFollowByAccountIds(localAccount.Id, remote.Id)
	if err != nil || follow == nil {
		return domain.ErrRequestNotFound
	}

	actorURI := fmt.Sprintf("https://%s/users/%s", conf.Conf.SslDomain, localAccount.Username)
	job := domain.RelationshipJobData{From: actorURI, To: remoteActorURI, RequestId: follow.URI}
	if err := database.EnqueueRelationshipJob(job); err != nil {
		return fmt.Errorf("failed to queue unfollow: %w", err)
	}

	if err := database.DeleteFollowByURI(follow.URI); err != nil {
		return fmt.Errorf("failed to remove follow: %w", err)
	}

	log.Printf("Outbox: Queued unfollow of %s", remoteActorURI)
	return nil
}

// SendMove announces an account migration to every follower and updates the
// local account's movedTo marker. The destination must already list this
// account in its alsoKnownAs, otherwise receiving servers will ignore the
// move.
func SendMove(localAccount *domain.Account, targetURI string, conf *util.AppConfig) error {
	actorURI := fmt.Sprintf("https://%s/users/%s", conf.Conf.SslDomain, localAccount.Username)
	moveID := fmt.Sprintf("https://%s/activities/%s", conf.Conf.SslDomain, uuid.New().String())

	target, err := GetOrFetchActor(targetURI)
	if err != nil {
		return fmt.Errorf("failed to fetch move target: %w", err)
	}
	attested := false
	for _, alias := range target.AlsoKnownAs {
		if alias == actorURI {
			attested = true
			break
		}
	}
	if !attested {
		return domain.NewValidationError("move target %s does not list %s in alsoKnownAs", targetURI, actorURI)
	}

	database := db.GetDB()
	if err := database.UpdateAccountAliases(localAccount.Id, targetURI, localAccount.AlsoKnownAs); err != nil {
		return fmt.Errorf("failed to mark account as moved: %w", err)
	}

	move := map[string]interface{}{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id":       moveID,
		"type":     "Move",
		"actor":    actorURI,
		"object":   actorURI,
		"target":   targetURI,
	}

	manager := NewDeliverManager(database, localAccount, move)
	if err := manager.AddFollowersRecipients(); err != nil {
		return fmt.Errorf("failed to load followers for move: %w", err)
	}
	if err := manager.Execute(); err != nil {
		return err
	}

	log.Printf("Outbox: Announced move of %s to %s", actorURI, targetURI)
	return nil
}
