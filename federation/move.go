package federation

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/deemkeen/anancus/db"
	"github.com/deemkeen/anancus/domain"
	"github.com/google/uuid"
)

// Move outcomes. A skip is a valid terminal state, not an error.
const (
	MoveOk               = "ok"
	MoveSkipNoTarget     = "skip: no movedTo"
	MoveSkipSelf         = "skip: self move"
	MoveSkipChainTooLong = "skip: move chain too long"
	MoveSkipSelfMovedDst = "skip: destination is itself moved"
	MoveSkipMismatch     = "skip: movedTo changed during refresh"
	MoveSkipPingPong     = "skip: destination points back at source"
	MoveSkipNotAttested  = "skip: destination does not attest the move"
)

const maxMoveChain = 10

// MoveSideEffects is what happens after all guards pass: record the move
// and repoint local followers. Split out so the guard chain is testable
// without a database.
type MoveSideEffects interface {
	CompleteMove(src, dst *domain.Actor) error
}

// MoveStore is the database slice the coordinator reads actors through.
type MoveStore interface {
	ReadActorByURI(uri string, baseURL string) (error, *domain.Actor)
}

// MoveCoordinator validates and executes account migrations. The core
// invariant is double attestation: src must claim "I moved to dst" and dst
// must list src in alsoKnownAs. One-sided claims are never acted on.
type MoveCoordinator struct {
	store   MoveStore
	effects MoveSideEffects
	refresh func(uri string) (*domain.Actor, error)
	baseURL string
	bus     *EventBus
}

func NewMoveCoordinator(store MoveStore, effects MoveSideEffects, refresh func(uri string) (*domain.Actor, error), baseURL string, bus *EventBus) *MoveCoordinator {
	return &MoveCoordinator{
		store:   store,
		effects: effects,
		refresh: refresh,
		baseURL: baseURL,
		bus:     bus,
	}
}

// Move runs the guard chain for src and, when every guard passes, performs
// the migration side effects. A destination that has itself moved is settled
// first, so chained moves converge. The walk is an explicit stack bounded by
// maxMoveChain, never open recursion.
func (c *MoveCoordinator) Move(src *domain.Actor, visited []string) (string, error) {
	if src.MovedToURI == "" {
		return MoveSkipNoTarget, nil
	}

	cur := src
	var pending []*domain.Actor
	settled := make(map[string]bool)

	for {
		if cur.MovedToURI == cur.URI {
			return MoveSkipSelf, nil
		}
		if len(visited) > maxMoveChain {
			log.Printf("Move: chain through %s exceeded %d hops, giving up", cur.URI, maxMoveChain)
			return MoveSkipChainTooLong, nil
		}

		dst, err := c.locateDestination(cur)
		if err != nil {
			return "failed: " + err.Error(), err
		}

		// A remote destination with its own pending move gets settled
		// before we trust anything it says
		if !dst.IsLocal() && dst.MovedToURI != "" && dst.MovedToURI != dst.URI && !settled[dst.URI] {
			visited = append(visited, cur.URI)
			pending = append(pending, cur)
			cur = dst
			continue
		}

		if out := verifyAttestation(cur, dst); out != "" {
			if len(pending) == 0 {
				return out, nil
			}
			// A refused deeper link only settles that link. The shallower
			// move still gets judged on its own guards: a destination with
			// a dangling movedTo is allowed to be moved into.
			log.Printf("Move: chain link %s -> %s skipped (%s)", cur.URI, dst.URI, out)
			settled[cur.URI] = true
			cur = pending[len(pending)-1]
			pending = pending[:len(pending)-1]
			continue
		}

		if err := c.effects.CompleteMove(cur, dst); err != nil {
			return "failed: " + err.Error(), err
		}
		settled[cur.URI] = true
		log.Printf("Move: %s -> %s completed", cur.URI, dst.URI)
		if c.bus != nil {
			c.bus.Publish(ActorMoved{SrcURI: cur.URI, DstURI: dst.URI})
		}

		if len(pending) == 0 {
			return MoveOk, nil
		}
		// Deeper link settled, re-read and re-check the shallower one
		cur = pending[len(pending)-1]
		pending = pending[:len(pending)-1]
	}
}

// locateDestination loads the move target. Local targets are read
// authoritatively from the store; remote targets are refreshed from their
// origin before being trusted.
func (c *MoveCoordinator) locateDestination(src *domain.Actor) (*domain.Actor, error) {
	target := src.MovedToURI

	err, dst := c.store.ReadActorByURI(target, c.baseURL)
	if err == nil && dst != nil {
		if dst.IsLocal() {
			return dst, nil
		}
		fresh, err := c.refresh(target)
		if err != nil {
			return nil, fmt.Errorf("could not refresh move target %s: %w", target, err)
		}
		return fresh, nil
	}

	if strings.HasPrefix(target, c.baseURL) {
		// A local URI we have no record of means the move references an
		// account that does not exist here
		return nil, fmt.Errorf("move target %s looks local but is unknown", target)
	}

	fresh, err2 := c.refresh(target)
	if err2 != nil {
		return nil, fmt.Errorf("could not resolve move target %s: %w", target, err2)
	}
	return fresh, nil
}

// verifyAttestation is the bidirectional check. Every condition must hold;
// the return value is the skip outcome, or empty when the move is sound.
func verifyAttestation(src, dst *domain.Actor) string {
	if dst.MovedToURI == dst.URI {
		return MoveSkipSelfMovedDst
	}
	if src.MovedToURI != dst.URI {
		return MoveSkipMismatch
	}
	if dst.MovedToURI == src.URI {
		return MoveSkipPingPong
	}
	attested := false
	for _, alias := range dst.AlsoKnownAs {
		if alias == src.URI {
			attested = true
			break
		}
	}
	if !attested {
		return MoveSkipNotAttested
	}
	return ""
}

// DBMoveSideEffects is the production MoveSideEffects: log the move and
// repoint every local follow from src to dst.
type DBMoveSideEffects struct {
	DB *db.DB
}

func (e *DBMoveSideEffects) CompleteMove(src, dst *domain.Actor) error {
	record := &domain.MoveRecord{
		Id:        uuid.New(),
		SrcURI:    src.URI,
		DstURI:    dst.URI,
		CreatedAt: time.Now(),
	}
	if err := e.DB.CreateMoveRecord(record); err != nil {
		return fmt.Errorf("could not record move: %w", err)
	}
	if err := e.DB.RepointFollows(src.Id, dst.Id); err != nil {
		return fmt.Errorf("could not repoint follows: %w", err)
	}
	return nil
}
