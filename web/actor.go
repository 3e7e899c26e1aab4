package web

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/deemkeen/anancus/db"
	"github.com/deemkeen/anancus/federation"
	"github.com/deemkeen/anancus/util"
	"github.com/google/uuid"
)

type action uint

const (
	id action = iota
	inbox
	outbox
	followers
	following
	sharedInbox
)

func getIRI(domain string, username string, a action) string {
	prefix := fmt.Sprintf("https://%s/users/%s", domain, username)
	switch a {
	case inbox:
		return fmt.Sprintf("%s/inbox", prefix)
	case outbox:
		return fmt.Sprintf("%s/outbox", prefix)
	case followers:
		return fmt.Sprintf("%s/followers", prefix)
	case following:
		return fmt.Sprintf("%s/following", prefix)
	case id:
		return prefix
	case sharedInbox:
		return fmt.Sprintf("https://%s/inbox", domain)
	default:
		return ""
	}
}

// GetActor renders a local account as an ActivityPub actor document
func GetActor(actor string, conf *util.AppConfig) (error, string) {
	err, acc := db.GetDB().ReadAccByUsername(actor)
	if err != nil {
		return err, "{}"
	}

	username := acc.Username
	sslDomain := conf.Conf.SslDomain

	// Use DisplayName if available, otherwise use username
	displayName := acc.DisplayName
	if displayName == "" {
		displayName = username
	}

	doc := map[string]interface{}{
		"@context": []string{
			"https://www.w3.org/ns/activitystreams",
			"https://w3id.org/security/v1",
		},
		"id":                        getIRI(sslDomain, username, id),
		"type":                      "Person",
		"preferredUsername":         username,
		"name":                      displayName,
		"summary":                   acc.Summary,
		"inbox":                     getIRI(sslDomain, username, inbox),
		"outbox":                    getIRI(sslDomain, username, outbox),
		"followers":                 getIRI(sslDomain, username, followers),
		"following":                 getIRI(sslDomain, username, following),
		"url":                       getIRI(sslDomain, username, id),
		"manuallyApprovesFollowers": false,
		"discoverable":              true,
		"endpoints": map[string]interface{}{
			"sharedInbox": getIRI(sslDomain, username, sharedInbox),
		},
		"publicKey": map[string]interface{}{
			"id":           getIRI(sslDomain, username, id) + "#main-key",
			"owner":        getIRI(sslDomain, username, id),
			"publicKeyPem": acc.WebPublicKey,
		},
	}

	// Accounts that migrated away advertise it on the actor document
	if acc.MovedToURI != "" {
		doc["movedTo"] = acc.MovedToURI
	}
	if len(acc.AlsoKnownAs) > 0 {
		doc["alsoKnownAs"] = acc.AlsoKnownAs
	}

	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return err, "{}"
	}
	return nil, string(jsonBytes)
}

// GetNoteObject returns a Note (or Question, for polls) as ActivityPub JSON
func GetNoteObject(noteId uuid.UUID, conf *util.AppConfig) (error, string) {
	database := db.GetDB()
	err, note := database.ReadNoteId(noteId)
	if err != nil {
		return err, "{}"
	}

	err, account := database.ReadAccByUsername(note.CreatedBy)
	if err != nil {
		return err, "{}"
	}

	actorURI := fmt.Sprintf("https://%s/users/%s", conf.Conf.SslDomain, account.Username)
	noteURI := fmt.Sprintf("https://%s/notes/%s", conf.Conf.SslDomain, note.Id.String())
	followersURI := actorURI + "/followers"

	to := []string{"https://www.w3.org/ns/activitystreams#Public"}
	cc := []string{followersURI}
	switch note.Visibility {
	case federation.VisibilityHome:
		to, cc = []string{followersURI}, []string{"https://www.w3.org/ns/activitystreams#Public"}
	case federation.VisibilityFollowers:
		to, cc = []string{followersURI}, nil
	case federation.VisibilitySpecified:
		to, cc = nil, nil
	}

	noteObj := map[string]interface{}{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           noteURI,
		"type":         "Note",
		"attributedTo": actorURI,
		"content":      note.Message,
		"published":    note.CreatedAt.Format(time.RFC3339),
		"to":           to,
		"cc":           cc,
	}
	if note.InReplyToURI != "" {
		noteObj["inReplyTo"] = note.InReplyToURI
	}
	if note.EditedAt != nil {
		noteObj["updated"] = note.EditedAt.Format(time.RFC3339)
	}

	if note.HasPoll() {
		noteObj["type"] = "Question"
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
		noteObj[key] = options
		if note.PollExpires != nil {
			noteObj["endTime"] = note.PollExpires.Format(time.RFC3339)
		}
	}

	jsonBytes, err := json.Marshal(noteObj)
	if err != nil {
		return err, "{}"
	}

	return nil, string(jsonBytes)
}
