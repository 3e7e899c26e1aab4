package federation

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/deemkeen/anancus/db"
	"github.com/deemkeen/anancus/domain"
	"github.com/deemkeen/anancus/util"
	"github.com/google/uuid"
	"golang.org/x/net/idna"
)

const (
	maxDisplayNameLen = 128
	maxSummaryLen     = 2048
	actorCacheMaxAge  = 24 * time.Hour
)

var actorTypes = map[string]bool{
	"Person":       true,
	"Application":  true,
	"Service":      true,
	"Organization": true,
	"Group":        true,
}

var usernameRegex = regexp.MustCompile(`^\w([\w-.]*\w)?$`)

// ActorDoc represents the JSON structure of an ActivityPub actor
type ActorDoc struct {
	Context           interface{} `json:"@context"`
	ID                string      `json:"id"`
	Type              string      `json:"type"`
	PreferredUsername string      `json:"preferredUsername"`
	Name              interface{} `json:"name"`
	Summary           interface{} `json:"summary"`
	Inbox             string      `json:"inbox"`
	Outbox            string      `json:"outbox"`
	Followers         string      `json:"followers"`
	Endpoints         struct {
		SharedInbox string `json:"sharedInbox"`
	} `json:"endpoints"`
	Icon        Image      `json:"icon"`
	MovedTo     string     `json:"movedTo"`
	AlsoKnownAs StringList `json:"alsoKnownAs"`
	PublicKey   struct {
		ID           string `json:"id"`
		Owner        string `json:"owner"`
		PublicKeyPem string `json:"publicKeyPem"`
	} `json:"publicKey"`
}

// punyHost extracts the host of a URI in punycode form, so unicode and
// ASCII spellings of the same host compare equal.
func punyHost(rawURI string) (string, error) {
	parsed, err := url.Parse(rawURI)
	if err != nil {
		return "", fmt.Errorf("invalid URI: %w", err)
	}
	host, err := idna.ToASCII(strings.ToLower(parsed.Hostname()))
	if err != nil {
		return "", fmt.Errorf("invalid host in URI: %w", err)
	}
	if port := parsed.Port(); port != "" {
		host = host + ":" + port
	}
	return host, nil
}

// optionalString validates a field that, when present, must be a non-empty
// string. Wrong types fail hard; oversized values are truncated, never
// rejected.
func optionalString(field string, val interface{}, max int) (string, error) {
	if val == nil {
		return "", nil
	}
	s, ok := val.(string)
	if !ok {
		return "", domain.NewValidationError("%s is not a string", field)
	}
	return util.Truncate(s, max), nil
}

// ValidateActorDoc checks a fetched actor document against the source it was
// fetched from and maps it to a remote account. The host check is the
// spoofing guard: an actor fetched from host X must claim an id on host X.
func ValidateActorDoc(doc *ActorDoc, sourceURI string) (*domain.RemoteAccount, error) {
	if !actorTypes[doc.Type] {
		return nil, domain.NewValidationError("unexpected actor type %q", doc.Type)
	}
	if doc.ID == "" || doc.Inbox == "" {
		return nil, domain.NewValidationError("actor missing id or inbox")
	}
	if len(doc.PreferredUsername) > maxDisplayNameLen || !usernameRegex.MatchString(doc.PreferredUsername) {
		return nil, domain.NewValidationError("invalid preferredUsername %q", doc.PreferredUsername)
	}

	idHost, err := punyHost(doc.ID)
	if err != nil {
		return nil, domain.NewValidationError("actor id: %v", err)
	}
	sourceHost, err := punyHost(sourceURI)
	if err != nil {
		return nil, domain.NewValidationError("source uri: %v", err)
	}
	if idHost != sourceHost {
		return nil, domain.NewValidationError("actor id host %q does not match fetch host %q", idHost, sourceHost)
	}

	if doc.PublicKey.ID != "" {
		keyHost, err := punyHost(doc.PublicKey.ID)
		if err != nil {
			return nil, domain.NewValidationError("publicKey.id: %v", err)
		}
		if keyHost != idHost {
			return nil, domain.NewValidationError("publicKey.id host %q does not match actor host %q", keyHost, idHost)
		}
	}

	name, err := optionalString("name", doc.Name, maxDisplayNameLen)
	if err != nil {
		return nil, err
	}
	summary, err := optionalString("summary", doc.Summary, maxSummaryLen)
	if err != nil {
		return nil, err
	}

	return &domain.RemoteAccount{
		Id:             uuid.New(),
		Username:       doc.PreferredUsername,
		Domain:         idHost,
		ActorURI:       doc.ID,
		DisplayName:    name, // empty-string name normalizes to absent
		Summary:        summary,
		InboxURI:       doc.Inbox,
		SharedInboxURI: doc.Endpoints.SharedInbox,
		OutboxURI:      doc.Outbox,
		FollowersURI:   doc.Followers,
		PublicKeyPem:   doc.PublicKey.PublicKeyPem,
		AvatarURL:      doc.Icon.URL,
		MovedToURI:     doc.MovedTo,
		AlsoKnownAs:    []string(doc.AlsoKnownAs),
		LastFetchedAt:  time.Now(),
	}, nil
}

// FetchRemoteActor fetches an actor from a remote server, validates it and
// stores it in the cache
func FetchRemoteActor(actorURI string) (*domain.RemoteAccount, error) {
	req, err := http.NewRequest("GET", actorURI, nil)
	if err != nil {
		return nil, &domain.ResolutionError{URI: actorURI, Err: err}
	}

	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "anancus/1.0 ActivityPub")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &domain.ResolutionError{URI: actorURI, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ResolutionError{URI: actorURI, Err: fmt.Errorf("actor fetch failed with status: %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return nil, &domain.ResolutionError{URI: actorURI, Err: err}
	}

	var doc ActorDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &domain.ResolutionError{URI: actorURI, Err: fmt.Errorf("failed to parse actor JSON: %w", err)}
	}

	remoteAcc, err := ValidateActorDoc(&doc, actorURI)
	if err != nil {
		return nil, err
	}

	// Store in database
	database := db.GetDB()
	err = database.CreateRemoteAccount(remoteAcc)
	if err != nil {
		// If already exists, try to update
		err = database.UpdateRemoteAccount(remoteAcc)
		if err != nil {
			return nil, fmt.Errorf("failed to store remote account: %w", err)
		}
		// Keep the existing row id
		if err2, existing := database.ReadRemoteAccountByURI(remoteAcc.ActorURI); err2 == nil && existing != nil {
			remoteAcc.Id = existing.Id
		}
	}

	return remoteAcc, nil
}

// GetOrFetchActor returns actor from cache or fetches if not cached/stale
func GetOrFetchActor(actorURI string) (*domain.RemoteAccount, error) {
	database := db.GetDB()

	// Check cache first
	err, cached := database.ReadRemoteAccountByURI(actorURI)
	if err == nil && cached != nil {
		if time.Since(cached.LastFetchedAt) < actorCacheMaxAge {
			return cached, nil
		}
	}

	// Fetch fresh data
	return FetchRemoteActor(actorURI)
}

// extractDomain extracts the domain from an actor URI
// Example: "https://mastodon.social/users/alice" -> "mastodon.social"
func extractDomain(actorURI string) (string, error) {
	parsed, err := url.Parse(actorURI)
	if err != nil {
		return "", fmt.Errorf("invalid actor URI: %w", err)
	}

	return parsed.Host, nil
}

// extractUsername extracts username from various URI formats
// Examples:
// - "https://example.com/users/alice" -> "alice"
// - "https://example.com/@alice" -> "alice"
func extractUsername(uri string) string {
	parts := strings.Split(uri, "/")
	if len(parts) > 0 {
		username := parts[len(parts)-1]
		// Remove @ prefix if present
		return strings.TrimPrefix(username, "@")
	}
	return ""
}

// RefreshActor forcibly re-fetches a remote actor, bypassing the cache, and
// returns the federation view. Used when a remote server announces a change
// we must not act on stale data for, like a Move.
func RefreshActor(actorURI string) (*domain.Actor, error) {
	remote, err := FetchRemoteActor(actorURI)
	if err != nil {
		return nil, err
	}
	return domain.ActorFromRemote(remote), nil
}
