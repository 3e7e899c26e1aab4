package federation

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/deemkeen/anancus/domain"
	"golang.org/x/sync/errgroup"
)

// Visibility levels, in strict priority order. Public beats everything, a
// public cc means the post shows on the home timeline but not public
// listings, the followers collection beats direct addressing.
const (
	VisibilityPublic    = "public"
	VisibilityHome      = "home"
	VisibilityFollowers = "followers"
	VisibilitySpecified = "specified"
)

// Audience is the parsed result of an activity's to/cc lists. Derived per
// activity, never cached.
type Audience struct {
	Visibility      string
	MentionedActors []*domain.Actor
	VisibleActors   []*domain.Actor
}

// ActorLookup resolves an actor URI to the federation view, hitting the
// cache or the network as needed.
type ActorLookup interface {
	LookupActor(ctx context.Context, uri string) (*domain.Actor, error)
}

// ActorLookupFunc adapts a function to the ActorLookup interface.
type ActorLookupFunc func(ctx context.Context, uri string) (*domain.Actor, error)

func (f ActorLookupFunc) LookupActor(ctx context.Context, uri string) (*domain.Actor, error) {
	return f(ctx, uri)
}

// ParseAudience classifies to/cc into a visibility level and resolves the
// individually addressed recipients. One unresolvable recipient never aborts
// the rest; it is logged and dropped.
func ParseAudience(ctx context.Context, lookup ActorLookup, actor *domain.Actor, to, cc []string) *Audience {
	followersURI := actor.FollowersURI
	if followersURI == "" {
		followersURI = strings.TrimSuffix(actor.URI, "/") + "/followers"
	}

	publicInTo := false
	publicInCc := false
	followersInTo := false

	var others []string
	seen := make(map[string]bool)

	bucket := func(ids []string, isTo bool) {
		for _, id := range ids {
			switch {
			case IsPublicURI(id):
				if isTo {
					publicInTo = true
				} else {
					publicInCc = true
				}
			case id == followersURI:
				if isTo {
					followersInTo = true
				}
			default:
				if !seen[id] {
					seen[id] = true
					others = append(others, id)
				}
			}
		}
	}
	bucket(to, true)
	bucket(cc, false)

	resolved := resolveRecipients(ctx, lookup, others)

	aud := &Audience{MentionedActors: resolved}
	switch {
	case publicInTo:
		aud.Visibility = VisibilityPublic
	case publicInCc:
		aud.Visibility = VisibilityHome
	case followersInTo:
		aud.Visibility = VisibilityFollowers
	default:
		aud.Visibility = VisibilitySpecified
		// Direct addressing: visible to exactly the resolved recipients
		aud.VisibleActors = resolved
	}
	return aud
}

func resolveRecipients(ctx context.Context, lookup ActorLookup, uris []string) []*domain.Actor {
	if len(uris) == 0 {
		return nil
	}

	var mu sync.Mutex
	resolved := make([]*domain.Actor, 0, len(uris))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for _, uri := range uris {
		uri := uri
		g.Go(func() error {
			actor, err := lookup.LookupActor(ctx, uri)
			if err != nil {
				log.Printf("Audience: dropping unresolvable recipient %s: %v", uri, err)
				return nil
			}
			mu.Lock()
			resolved = append(resolved, actor)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors, failures are logged and dropped

	return resolved
}
