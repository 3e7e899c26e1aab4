package web

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/deemkeen/anancus/db"
	"github.com/deemkeen/anancus/domain"
	"github.com/deemkeen/anancus/util"
)

const outboxItemsPerPage = 20

// GetOutbox returns an ActivityPub OrderedCollection of a user's public posts
// This allows remote servers to discover posts without following the user
func GetOutbox(actor string, page int, conf *util.AppConfig) (error, string) {
	// Verify the account exists
	err, _ := db.GetDB().ReadAccByUsername(actor)
	if err != nil {
		log.Printf("GetOutbox: User %s not found: %v", actor, err)
		return err, "{}"
	}

	outboxURL := fmt.Sprintf("%s/users/%s/outbox", conf.BaseURL(), actor)

	// If no page parameter, return the collection metadata
	if page == 0 {
		err, notes := db.GetDB().ReadPublicNotesByUsername(actor, 999999, 0)
		if err != nil {
			log.Printf("GetOutbox: Failed to count notes for %s: %v", actor, err)
			return err, "{}"
		}
		totalItems := 0
		if notes != nil {
			totalItems = len(*notes)
		}

		collection := map[string]interface{}{
			"@context":   "https://www.w3.org/ns/activitystreams",
			"id":         outboxURL,
			"type":       "OrderedCollection",
			"totalItems": totalItems,
			"first":      fmt.Sprintf("%s?page=1", outboxURL),
		}

		jsonData, err := json.Marshal(collection)
		if err != nil {
			return err, "{}"
		}
		return nil, string(jsonData)
	}

	return getOutboxPage(actor, page, conf)
}

func getOutboxPage(actor string, page int, conf *util.AppConfig) (error, string) {
	offset := (page - 1) * outboxItemsPerPage

	// Fetch one extra row to know whether a next page exists
	err, notes := db.GetDB().ReadPublicNotesByUsername(actor, outboxItemsPerPage+1, offset)
	if err != nil {
		log.Printf("GetOutbox: Failed to fetch notes page %d for %s: %v", page, actor, err)
		return err, "{}"
	}

	outboxURL := fmt.Sprintf("%s/users/%s/outbox", conf.BaseURL(), actor)
	pageURL := fmt.Sprintf("%s?page=%d", outboxURL, page)

	hasMore := false
	items := []interface{}{}

	if notes != nil {
		pageNotes := *notes
		if len(pageNotes) > outboxItemsPerPage {
			hasMore = true
			pageNotes = pageNotes[:outboxItemsPerPage]
		}
		items = makeNoteActivities(pageNotes, actor, conf)
	}

	collectionPage := map[string]interface{}{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           pageURL,
		"type":         "OrderedCollectionPage",
		"partOf":       outboxURL,
		"orderedItems": items,
	}
	if hasMore {
		collectionPage["next"] = fmt.Sprintf("%s?page=%d", outboxURL, page+1)
	}
	if page > 1 {
		collectionPage["prev"] = fmt.Sprintf("%s?page=%d", outboxURL, page-1)
	}

	jsonData, err := json.Marshal(collectionPage)
	if err != nil {
		return err, "{}"
	}
	return nil, string(jsonData)
}

// makeNoteActivities converts domain.Note objects to ActivityPub Create activities
func makeNoteActivities(notes []domain.Note, actor string, conf *util.AppConfig) []interface{} {
	activities := make([]interface{}, 0, len(notes))
	baseURL := conf.BaseURL()
	actorURI := fmt.Sprintf("%s/users/%s", baseURL, actor)
	followersURI := actorURI + "/followers"

	for _, note := range notes {
		objectURI := note.ObjectURI
		if objectURI == "" {
			objectURI = fmt.Sprintf("%s/notes/%s", baseURL, note.Id.String())
		}

		noteObj := map[string]interface{}{
			"id":           objectURI,
			"type":         "Note",
			"attributedTo": actorURI,
			"content":      note.Message,
			"published":    note.CreatedAt.Format(time.RFC3339),
			"to":           []string{"https://www.w3.org/ns/activitystreams#Public"},
			"cc":           []string{followersURI},
		}
		if note.EditedAt != nil {
			noteObj["updated"] = note.EditedAt.Format(time.RFC3339)
		}

		activityURI := fmt.Sprintf("%s/activities/%s", baseURL, note.Id.String())
		activity := map[string]interface{}{
			"id":        activityURI,
			"type":      "Create",
			"actor":     actorURI,
			"published": note.CreatedAt.Format(time.RFC3339),
			"to":        []string{"https://www.w3.org/ns/activitystreams#Public"},
			"cc":        []string{followersURI},
			"object":    noteObj,
		}

		activities = append(activities, activity)
	}

	return activities
}

// GetFollowers returns the followers collection for a local user. Only the
// count and the member URIs are exposed, matching what other servers publish.
func GetFollowers(actor string, conf *util.AppConfig) (error, string) {
	database := db.GetDB()
	err, acc := database.ReadAccByUsername(actor)
	if err != nil {
		return err, "{}"
	}

	err, followerActors := database.ReadFollowersOfAccount(acc.Id)
	if err != nil {
		return err, "{}"
	}

	uris := make([]string, 0)
	if followerActors != nil {
		for _, f := range *followerActors {
			if f.URI != "" {
				uris = append(uris, f.URI)
			}
		}
	}

	collection := map[string]interface{}{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           fmt.Sprintf("%s/users/%s/followers", conf.BaseURL(), actor),
		"type":         "OrderedCollection",
		"totalItems":   len(uris),
		"orderedItems": uris,
	}

	jsonData, err := json.Marshal(collection)
	if err != nil {
		return err, "{}"
	}
	return nil, string(jsonData)
}

// ParsePageParam extracts the page parameter from a query string
func ParsePageParam(pageStr string) int {
	if pageStr == "" {
		return 0
	}
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 0 {
		return 0
	}
	return page
}
