package federation

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/deemkeen/anancus/domain"
	"github.com/google/uuid"
)

type fakeQueueStore struct {
	deleted       []uuid.UUID
	unrecoverable map[uuid.UUID]int
	updates       []queueUpdate
}

type queueUpdate struct {
	attempts int
	status   int
}

func (s *fakeQueueStore) DeleteDelivery(id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeQueueStore) MarkDeliveryUnrecoverable(id uuid.UUID, status int) error {
	if s.unrecoverable == nil {
		s.unrecoverable = make(map[uuid.UUID]int)
	}
	s.unrecoverable[id] = status
	return nil
}

func (s *fakeQueueStore) UpdateDeliveryAttempt(id uuid.UUID, attempts int, nextRetryAt time.Time, status int) error {
	s.updates = append(s.updates, queueUpdate{attempts: attempts, status: status})
	return nil
}

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		status    int
		success   bool
		permanent bool
	}{
		{200, true, false},
		{201, true, false},
		{202, true, false},
		{204, true, false},
		{400, false, true},
		{403, false, true},
		{404, false, true},
		{410, false, true}, // recipient gone, never retry
		{429, false, true},
		{500, false, false},
		{502, false, false},
		{503, false, false},
		{301, false, false}, // redirects are not followed, treat as transient
	}

	for _, tt := range tests {
		err := ClassifyResponse(tt.status)
		if tt.success {
			if err != nil {
				t.Errorf("Status %d should be success, got %v", tt.status, err)
			}
			continue
		}
		if err == nil {
			t.Errorf("Status %d should be a failure", tt.status)
			continue
		}
		var de *domain.DeliveryError
		if !errors.As(err, &de) {
			t.Errorf("Status %d: expected DeliveryError, got %T", tt.status, err)
			continue
		}
		if de.Status != tt.status {
			t.Errorf("Status %d not recorded, got %d", tt.status, de.Status)
		}
		if de.Permanent != tt.permanent {
			t.Errorf("Status %d: permanent=%v, want %v", tt.status, de.Permanent, tt.permanent)
		}
		if domain.IsPermanentDelivery(err) != tt.permanent {
			t.Errorf("Status %d: IsPermanentDelivery disagrees with classification", tt.status)
		}
	}
}

func TestConnectionRefusedRetried(t *testing.T) {
	// A dead host is transient: the attempt is rescheduled, not abandoned
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {}))
	target := srv.URL
	srv.Close()

	req, err := http.NewRequest("POST", target+"/inbox", nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	postErr := postActivity(req)
	if postErr == nil {
		t.Fatal("Expected error POSTing to a closed server")
	}
	if domain.IsPermanentDelivery(postErr) {
		t.Fatal("Connection refused must not be classified permanent")
	}

	store := &fakeQueueStore{}
	item := &domain.DeliveryQueueItem{Id: uuid.New(), InboxURI: target + "/inbox"}
	applyDeliveryResult(store, item, postErr)

	if len(store.updates) != 1 || store.updates[0].attempts != 1 {
		t.Fatalf("Expected one rescheduled attempt, got %v", store.updates)
	}
	if len(store.unrecoverable) != 0 || len(store.deleted) != 0 {
		t.Error("First transient failure must neither abandon nor delete the row")
	}
	if !item.NextRetryAt.After(time.Now()) {
		t.Error("Retry must be scheduled in the future")
	}
}

func TestTransientExhaustionMarkedTerminal(t *testing.T) {
	store := &fakeQueueStore{}
	item := &domain.DeliveryQueueItem{
		Id:       uuid.New(),
		InboxURI: "https://down.example/inbox",
		Attempts: maxDeliveryAttempts - 1,
	}

	applyDeliveryResult(store, item, ClassifyResponse(503))

	if len(store.deleted) != 0 {
		t.Error("Exhausted delivery must keep its row, not delete it")
	}
	status, ok := store.unrecoverable[item.Id]
	if !ok {
		t.Fatal("Exhausted delivery must be marked unrecoverable")
	}
	if status != 503 {
		t.Errorf("Terminal status should record the last response, got %d", status)
	}
}

func TestPermanentFailureTerminalImmediately(t *testing.T) {
	store := &fakeQueueStore{}
	item := &domain.DeliveryQueueItem{Id: uuid.New(), InboxURI: "https://gone.example/inbox"}

	applyDeliveryResult(store, item, ClassifyResponse(410))

	if status := store.unrecoverable[item.Id]; status != 410 {
		t.Errorf("Expected unrecoverable with status 410, got %d", status)
	}
	if len(store.updates) != 0 {
		t.Error("Permanent failures must never be rescheduled")
	}
}

func TestSuccessfulDeliveryDeleted(t *testing.T) {
	store := &fakeQueueStore{}
	item := &domain.DeliveryQueueItem{Id: uuid.New(), InboxURI: "https://ok.example/inbox"}

	applyDeliveryResult(store, item, nil)

	if len(store.deleted) != 1 || store.deleted[0] != item.Id {
		t.Errorf("Successful delivery should delete its row, got %v", store.deleted)
	}
	if len(store.unrecoverable) != 0 || len(store.updates) != 0 {
		t.Error("Success must not touch retry bookkeeping")
	}
}

func TestRelationshipActivityFollow(t *testing.T) {
	data := &domain.RelationshipJobData{
		From: "https://local.example/users/alice",
		To:   "https://remote.example/users/bob",
	}
	activity := relationshipActivity(data, "bob")

	if activity["type"] != "Follow" {
		t.Errorf("Expected Follow, got %v", activity["type"])
	}
	// The wire id must match the pending row SendFollow stored, or the
	// remote Accept will not find it
	if activity["id"] != followActivityID(data.From, "bob") {
		t.Errorf("Follow id diverges from the stored follow URI: %v", activity["id"])
	}
	if activity["object"] != data.To {
		t.Errorf("Wrong object: %v", activity["object"])
	}
}

func TestRelationshipActivityUndo(t *testing.T) {
	data := &domain.RelationshipJobData{
		From:      "https://local.example/users/alice",
		To:        "https://remote.example/users/bob",
		RequestId: followActivityID("https://local.example/users/alice", "bob"),
	}
	activity := relationshipActivity(data, "bob")

	if activity["type"] != "Undo" {
		t.Fatalf("Expected Undo, got %v", activity["type"])
	}
	inner, ok := activity["object"].(map[string]interface{})
	if !ok {
		t.Fatal("Undo must embed the original Follow")
	}
	if inner["type"] != "Follow" || inner["id"] != data.RequestId {
		t.Errorf("Embedded Follow wrong: %v", inner)
	}
}

func TestBackoffSchedule(t *testing.T) {
	// Attempts beyond the table clamp to the last entry
	for attempts := 1; attempts <= maxDeliveryAttempts; attempts++ {
		idx := min(attempts-1, len(backoffMinutes)-1)
		backoff := backoffMinutes[idx]
		if backoff <= 0 {
			t.Errorf("Attempt %d: non-positive backoff %d", attempts, backoff)
		}
		if attempts > 1 {
			prev := backoffMinutes[min(attempts-2, len(backoffMinutes)-1)]
			if backoff < prev {
				t.Errorf("Attempt %d: backoff %dm shorter than previous %dm", attempts, backoff, prev)
			}
		}
	}
	if backoffMinutes[len(backoffMinutes)-1] != 1440 {
		t.Errorf("Final backoff should be a day, got %dm", backoffMinutes[len(backoffMinutes)-1])
	}
}
