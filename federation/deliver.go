package federation

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/anancus/domain"
	"github.com/google/uuid"
)

// DeliverStore is the slice of the database the manager needs. Satisfied
// by *db.DB.
type DeliverStore interface {
	ReadFollowersOfAccount(accountId uuid.UUID) (error, *[]domain.Actor)
	EnqueueDelivery(item *domain.DeliveryQueueItem) error
}

type inboxTarget struct {
	uri      string
	isShared bool
}

// DeliverManager collects the inbox targets for one outgoing activity and
// enqueues exactly one delivery per unique inbox. It performs no network
// I/O itself; the queue worker does the actual POSTs.
type DeliverManager struct {
	store   DeliverStore
	actor   *domain.Account
	content map[string]interface{}
	targets []inboxTarget
	seen    map[string]bool
}

func NewDeliverManager(store DeliverStore, actor *domain.Account, content map[string]interface{}) *DeliverManager {
	return &DeliverManager{
		store:   store,
		actor:   actor,
		content: content,
		seen:    make(map[string]bool),
	}
}

func (m *DeliverManager) add(uri string, isShared bool) {
	if uri == "" || m.seen[uri] {
		return
	}
	m.seen[uri] = true
	m.targets = append(m.targets, inboxTarget{uri: uri, isShared: isShared})
}

// AddDirectRecipient targets a single recipient's own inbox.
func (m *DeliverManager) AddDirectRecipient(recipient *domain.Actor) {
	if recipient == nil || recipient.IsLocal() {
		return
	}
	m.add(recipient.InboxURI, false)
}

// AddFollowersRecipients expands to every follower of the sending account,
// preferring shared inboxes so an instance with many followers of the same
// actor receives one copy.
func (m *DeliverManager) AddFollowersRecipients() error {
	err, followers := m.store.ReadFollowersOfAccount(m.actor.Id)
	if err != nil {
		return fmt.Errorf("could not load followers: %w", err)
	}
	for i := range *followers {
		f := &(*followers)[i]
		if f.IsLocal() {
			continue
		}
		inbox, shared := f.DeliveryInbox()
		m.add(inbox, shared)
	}
	return nil
}

// Execute enqueues one delivery job per unique inbox. Always fast: the
// network happens later, in the worker.
func (m *DeliverManager) Execute() error {
	if len(m.targets) == 0 {
		return nil
	}

	activityJSON, err := json.Marshal(m.content)
	if err != nil {
		return fmt.Errorf("could not marshal activity: %w", err)
	}

	for _, t := range m.targets {
		item := &domain.DeliveryQueueItem{
			Id:            uuid.New(),
			FromUsername:  m.actor.Username,
			InboxURI:      t.uri,
			IsSharedInbox: t.isShared,
			ActivityJSON:  string(activityJSON),
			Attempts:      0,
			NextRetryAt:   time.Now(),
		}
		if err := m.store.EnqueueDelivery(item); err != nil {
			return fmt.Errorf("could not enqueue delivery to %s: %w", t.uri, err)
		}
	}

	log.Printf("Deliver: queued activity from %s to %d unique inboxes", m.actor.Username, len(m.targets))
	return nil
}
