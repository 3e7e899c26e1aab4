package federation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/deemkeen/anancus/domain"
	"github.com/google/uuid"
)

type fakePollStore struct {
	notes   map[string]*domain.Note
	written map[uuid.UUID][]int
}

func (s *fakePollStore) ReadNoteByObjectURI(uri string) (error, *domain.Note) {
	if n, ok := s.notes[uri]; ok {
		return nil, n
	}
	return fmt.Errorf("note %s not found", uri), nil
}

func (s *fakePollStore) UpdatePollVotes(noteId uuid.UUID, votes []int) error {
	if s.written == nil {
		s.written = make(map[uuid.UUID][]int)
	}
	s.written[noteId] = votes
	return nil
}

type fakeQuestionResolver struct {
	objects map[string]*Object
}

func (r *fakeQuestionResolver) Resolve(uri string) (*Object, error) {
	if o, ok := r.objects[uri]; ok {
		return o, nil
	}
	return nil, &domain.ResolutionError{URI: uri, Err: fmt.Errorf("fetch failed")}
}

func intPtr(n int) *int { return &n }

func pollQuestion(uri string, counts map[string]int) *Object {
	obj := &Object{ID: uri, Type: "Question"}
	for _, name := range []string{"yes", "no"} {
		count, ok := counts[name]
		opt := ChoiceOption{Type: "Note", Name: name}
		if ok {
			opt.Replies = &ReplyCollection{Type: "Collection", TotalItems: intPtr(count)}
		}
		obj.OneOf = append(obj.OneOf, opt)
	}
	return obj
}

func pollNote(uri string, votes []int) *domain.Note {
	return &domain.Note{
		Id:          uuid.New(),
		ObjectURI:   uri,
		Message:     "Best answer?",
		PollChoices: []string{"yes", "no"},
		PollVotes:   votes,
	}
}

func newTestPollService(store *fakePollStore, resolver *fakeQuestionResolver) *PollSyncService {
	return NewPollSyncService(store, resolver, "https://local.example", nil)
}

func TestPollSyncUpdatesChangedCounts(t *testing.T) {
	uri := "https://remote.example/notes/42"
	note := pollNote(uri, []int{1, 2})
	store := &fakePollStore{notes: map[string]*domain.Note{uri: note}}
	resolver := &fakeQuestionResolver{objects: map[string]*Object{
		uri: pollQuestion(uri, map[string]int{"yes": 7, "no": 2}),
	}}
	s := newTestPollService(store, resolver)

	changed, err := s.Update(context.Background(), uri)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !changed {
		t.Error("Expected changed=true")
	}
	votes := store.written[note.Id]
	if len(votes) != 2 || votes[0] != 7 || votes[1] != 2 {
		t.Errorf("Wrong votes written: %v", votes)
	}
}

func TestPollSyncNoChangeNoWrite(t *testing.T) {
	uri := "https://remote.example/notes/42"
	note := pollNote(uri, []int{3, 4})
	store := &fakePollStore{notes: map[string]*domain.Note{uri: note}}
	resolver := &fakeQuestionResolver{objects: map[string]*Object{
		uri: pollQuestion(uri, map[string]int{"yes": 3, "no": 4}),
	}}
	s := newTestPollService(store, resolver)

	changed, err := s.Update(context.Background(), uri)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if changed {
		t.Error("Identical counts must report changed=false")
	}
	if len(store.written) != 0 {
		t.Error("Identical counts must not hit the database")
	}
}

func TestPollSyncRefusesLocalPoll(t *testing.T) {
	s := newTestPollService(&fakePollStore{}, &fakeQuestionResolver{})

	_, err := s.Update(context.Background(), "https://local.example/notes/1")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for locally-hosted poll, got %v", err)
	}
}

func TestPollSyncUnknownNote(t *testing.T) {
	s := newTestPollService(&fakePollStore{}, &fakeQuestionResolver{})

	if _, err := s.Update(context.Background(), "https://remote.example/notes/99"); err == nil {
		t.Error("Expected error for a note we never stored")
	}
}

func TestPollSyncNotAPoll(t *testing.T) {
	uri := "https://remote.example/notes/42"
	note := &domain.Note{Id: uuid.New(), ObjectURI: uri, Message: "plain note"}
	store := &fakePollStore{notes: map[string]*domain.Note{uri: note}}
	s := newTestPollService(store, &fakeQuestionResolver{})

	if _, err := s.Update(context.Background(), uri); err == nil {
		t.Error("Expected error for a note without a poll")
	}
}

func TestPollSyncWrongRemoteType(t *testing.T) {
	uri := "https://remote.example/notes/42"
	note := pollNote(uri, []int{0, 0})
	store := &fakePollStore{notes: map[string]*domain.Note{uri: note}}
	resolver := &fakeQuestionResolver{objects: map[string]*Object{
		uri: {ID: uri, Type: "Note", Content: "not a question anymore"},
	}}
	s := newTestPollService(store, resolver)

	_, err := s.Update(context.Background(), uri)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for non-Question, got %v", err)
	}
}

func TestPollSyncMissingVoteCount(t *testing.T) {
	// A choice whose replies collection carries no totalItems is
	// malformed, not a zero
	uri := "https://remote.example/notes/42"
	note := pollNote(uri, []int{0, 0})
	store := &fakePollStore{notes: map[string]*domain.Note{uri: note}}
	resolver := &fakeQuestionResolver{objects: map[string]*Object{
		uri: pollQuestion(uri, map[string]int{"yes": 5}), // "no" has no count
	}}
	s := newTestPollService(store, resolver)

	_, err := s.Update(context.Background(), uri)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for missing count, got %v", err)
	}
	if len(store.written) != 0 {
		t.Error("Partial counts must never be written")
	}
}

func TestPollSyncDroppedChoice(t *testing.T) {
	uri := "https://remote.example/notes/42"
	note := pollNote(uri, []int{1, 1})
	store := &fakePollStore{notes: map[string]*domain.Note{uri: note}}
	remote := &Object{ID: uri, Type: "Question", OneOf: []ChoiceOption{
		{Name: "yes", Replies: &ReplyCollection{TotalItems: intPtr(9)}},
	}}
	resolver := &fakeQuestionResolver{objects: map[string]*Object{uri: remote}}
	s := newTestPollService(store, resolver)

	_, err := s.Update(context.Background(), uri)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError when the remote drops a choice, got %v", err)
	}
}

func TestPollSyncResolveFailure(t *testing.T) {
	uri := "https://remote.example/notes/42"
	note := pollNote(uri, []int{0, 0})
	store := &fakePollStore{notes: map[string]*domain.Note{uri: note}}
	s := newTestPollService(store, &fakeQuestionResolver{})

	_, err := s.Update(context.Background(), uri)
	var re *domain.ResolutionError
	if !errors.As(err, &re) {
		t.Errorf("Expected ResolutionError, got %v", err)
	}
}

func TestPollSyncPublishesNoteUpdated(t *testing.T) {
	uri := "https://remote.example/notes/42"
	note := pollNote(uri, []int{0, 0})
	store := &fakePollStore{notes: map[string]*domain.Note{uri: note}}
	resolver := &fakeQuestionResolver{objects: map[string]*Object{
		uri: pollQuestion(uri, map[string]int{"yes": 2, "no": 0}),
	}}

	bus := NewEventBus()
	var events []NoteUpdated
	bus.Subscribe(func(ev Event) {
		if n, ok := ev.(NoteUpdated); ok {
			events = append(events, n)
		}
	})
	s := NewPollSyncService(store, resolver, "https://local.example", bus)

	if _, err := s.Update(context.Background(), uri); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if len(events) != 1 || events[0].NoteId != note.Id {
		t.Errorf("Expected one NoteUpdated for the note, got %v", events)
	}
}
