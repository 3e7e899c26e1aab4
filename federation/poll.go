package federation

import (
	"context"
	"fmt"
	"log"

	"github.com/deemkeen/anancus/domain"
	"github.com/google/uuid"
)

// PollStore is the database slice the sync service writes through.
type PollStore interface {
	ReadNoteByObjectURI(uri string) (error, *domain.Note)
	UpdatePollVotes(noteId uuid.UUID, votes []int) error
}

// QuestionResolver fetches a remote Question object.
type QuestionResolver interface {
	Resolve(uri string) (*Object, error)
}

// PollSyncService reconciles local vote tallies for a remote-owned poll
// against the origin server's counts. The remote is authoritative; local
// counts are only a mirror.
type PollSyncService struct {
	store    PollStore
	resolver QuestionResolver
	baseURL  string
	bus      *EventBus
}

func NewPollSyncService(store PollStore, resolver QuestionResolver, baseURL string, bus *EventBus) *PollSyncService {
	return &PollSyncService{
		store:    store,
		resolver: resolver,
		baseURL:  baseURL,
		bus:      bus,
	}
}

// Update fetches the remote Question at noteURI and rewrites the local vote
// array when any count differs. Returns whether anything changed. The write
// covers the whole array in one transaction so a concurrent update never
// interleaves half-old, half-new counts.
func (s *PollSyncService) Update(ctx context.Context, noteURI string) (bool, error) {
	localHost, err := punyHost(s.baseURL)
	if err != nil {
		return false, err
	}
	noteHost, err := punyHost(noteURI)
	if err != nil {
		return false, domain.NewValidationError("poll uri: %v", err)
	}
	if noteHost == localHost {
		// Our own polls are authoritative here, nothing to sync
		return false, domain.NewValidationError("refusing to sync a locally-hosted poll: %s", noteURI)
	}

	err, note := s.store.ReadNoteByObjectURI(noteURI)
	if err != nil || note == nil {
		return false, fmt.Errorf("poll note %s not known locally", noteURI)
	}
	if !note.HasPoll() {
		return false, fmt.Errorf("note %s carries no poll", noteURI)
	}

	question, err := s.resolver.Resolve(noteURI)
	if err != nil {
		return false, err
	}
	if question.Type != "Question" {
		return false, domain.NewValidationError("expected Question at %s, got %q", noteURI, question.Type)
	}

	options, _ := question.Choices()
	counts := make(map[string]int, len(options))
	for _, opt := range options {
		if opt.Replies == nil || opt.Replies.TotalItems == nil {
			return false, domain.NewValidationError("choice %q at %s has no vote count", opt.Name, noteURI)
		}
		counts[opt.Name] = *opt.Replies.TotalItems
	}

	changed := false
	votes := make([]int, len(note.PollChoices))
	for i, choice := range note.PollChoices {
		count, ok := counts[choice]
		if !ok {
			return false, domain.NewValidationError("remote poll %s dropped choice %q", noteURI, choice)
		}
		votes[i] = count
		if i >= len(note.PollVotes) || note.PollVotes[i] != count {
			changed = true
		}
	}

	if !changed {
		return false, nil
	}

	if err := s.store.UpdatePollVotes(note.Id, votes); err != nil {
		return false, fmt.Errorf("could not store poll counts: %w", err)
	}

	log.Printf("PollSync: updated counts for %s", noteURI)
	if s.bus != nil {
		s.bus.Publish(NoteUpdated{NoteId: note.Id})
	}
	return true, nil
}
