package domain

import (
	"github.com/google/uuid"
	"time"
)

// RemoteAccount represents a cached federated user
type RemoteAccount struct {
	Id             uuid.UUID
	Username       string
	Domain         string
	ActorURI       string
	DisplayName    string
	Summary        string
	InboxURI       string
	SharedInboxURI string
	OutboxURI      string
	FollowersURI   string
	PublicKeyPem   string
	AvatarURL      string
	MovedToURI     string
	AlsoKnownAs    []string
	LastFetchedAt  time.Time
}

// Actor is the federation core's view of an identity, local or remote.
// Host is empty for local actors.
type Actor struct {
	Id           uuid.UUID
	URI          string
	Username     string
	Host         string
	InboxURI     string
	SharedInbox  string
	FollowersURI string
	MovedToURI   string
	AlsoKnownAs  []string
}

func (a *Actor) IsLocal() bool {
	return a.Host == ""
}

// DeliveryInbox returns the shared inbox when the instance advertises one,
// falling back to the per-actor inbox.
func (a *Actor) DeliveryInbox() (string, bool) {
	if a.SharedInbox != "" {
		return a.SharedInbox, true
	}
	return a.InboxURI, false
}

// ActorFromRemote maps a cached remote account row onto the federation view.
func ActorFromRemote(r *RemoteAccount) *Actor {
	return &Actor{
		Id:           r.Id,
		URI:          r.ActorURI,
		Username:     r.Username,
		Host:         r.Domain,
		InboxURI:     r.InboxURI,
		SharedInbox:  r.SharedInboxURI,
		FollowersURI: r.FollowersURI,
		MovedToURI:   r.MovedToURI,
		AlsoKnownAs:  r.AlsoKnownAs,
	}
}

// Follow represents a follow relationship
type Follow struct {
	Id              uuid.UUID
	AccountId       uuid.UUID // Can be local or remote account
	TargetAccountId uuid.UUID // Can be local or remote account
	URI             string    // ActivityPub Follow activity URI (empty for local follows)
	CreatedAt       time.Time
	Accepted        bool
	IsLocal         bool // true if this is a local-only follow
}

// Like represents a like/favorite on a note
type Like struct {
	Id        uuid.UUID
	AccountId uuid.UUID // Who liked (can be local or remote)
	NoteId    uuid.UUID // Which note was liked
	URI       string    // ActivityPub Like activity URI
	CreatedAt time.Time
}

// Vote represents a single poll vote by an account on a note's poll
type Vote struct {
	Id        uuid.UUID
	AccountId uuid.UUID
	NoteId    uuid.UUID
	Choice    string // Choice name, matches one entry of the poll's choices
	URI       string // ActivityPub activity URI of the vote
	CreatedAt time.Time
}

// Activity represents an ActivityPub activity (for logging/deduplication)
type Activity struct {
	Id           uuid.UUID
	ActivityURI  string
	ActivityType string // Follow, Create, Like, Announce, Undo, Move, etc.
	ActorURI     string
	ObjectURI    string
	RawJSON      string
	Processed    bool
	CreatedAt    time.Time
	Local        bool // true if originated from this server
}

// DeliveryQueueItem represents an item in the delivery queue. The queue owns
// the item until it is delivered or marked unrecoverable.
type DeliveryQueueItem struct {
	Id            uuid.UUID
	FromUsername  string // Local account whose key signs the request
	InboxURI      string
	IsSharedInbox bool
	ActivityJSON  string // The complete activity to deliver
	Attempts      int
	NextRetryAt   time.Time
	LatestStatus  int        // Last HTTP status observed, 0 if none
	LatestSentAt  *time.Time // Last attempt timestamp, nil if never sent
	Unrecoverable bool       // 4xx response, never retried again
	CreatedAt     time.Time
}

// MoveRecord logs a completed account migration
type MoveRecord struct {
	Id        uuid.UUID
	SrcURI    string
	DstURI    string
	CreatedAt time.Time
}
