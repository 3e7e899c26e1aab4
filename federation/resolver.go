package federation

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/deemkeen/anancus/domain"
)

const (
	objectCacheTTL    = 3 * time.Minute
	maxObjectBodySize = 1 * 1024 * 1024
	maxResolveDepth   = 3
	fetchSlots        = 2
)

type cachedObject struct {
	obj       *Object
	fetchedAt time.Time
}

// Resolver dereferences ActivityPub object URIs with a small in-process
// cache. Concurrent lookups of the same URI may race; last writer wins,
// which is harmless since both fetched the same document.
type Resolver struct {
	client *http.Client
	cache  sync.Map // uri -> cachedObject
	slots  chan struct{}
}

func NewResolver(bus *EventBus) *Resolver {
	r := &Resolver{
		client: &http.Client{Timeout: 10 * time.Second},
		slots:  make(chan struct{}, fetchSlots),
	}
	if bus != nil {
		bus.Subscribe(func(ev Event) {
			if inv, ok := ev.(CacheInvalidate); ok {
				r.cache.Delete(inv.URI)
			}
		})
	}
	return r
}

// ResolveValue handles the two shapes an activity's object can take: an
// inline JSON object, returned as-is without any network round trip, or a
// bare URI string, which gets dereferenced.
func (r *Resolver) ResolveValue(raw json.RawMessage) (*Object, error) {
	var uri string
	if err := json.Unmarshal(raw, &uri); err == nil {
		return r.Resolve(uri)
	}

	var obj Object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("object is neither URI nor inline object: %w", err)
	}
	return &obj, nil
}

// Resolve fetches the object at uri, serving from cache when fresh.
func (r *Resolver) Resolve(uri string) (*Object, error) {
	return r.resolve(uri, 0)
}

func (r *Resolver) resolve(uri string, depth int) (*Object, error) {
	if depth >= maxResolveDepth {
		return nil, fmt.Errorf("resolve depth exceeded at %s", uri)
	}

	if v, ok := r.cache.Load(uri); ok {
		entry := v.(cachedObject)
		if time.Since(entry.fetchedAt) < objectCacheTTL {
			return entry.obj, nil
		}
		r.cache.Delete(uri)
	}

	obj, err := r.fetch(uri)
	if err != nil {
		return nil, err
	}
	if err := r.resolveRefs(obj, depth); err != nil {
		return nil, err
	}

	r.cache.Store(uri, cachedObject{obj: obj, fetchedAt: time.Now()})
	return obj, nil
}

// resolveRefs dereferences the embedded references this core inspects: an
// icon given as a bare URI and poll reply collections given by reference or
// without a count. A missing icon stays a bare URI; a missing reply count is
// load-bearing for poll sync, so its fetch failure fails the whole resolve.
func (r *Resolver) resolveRefs(obj *Object, depth int) error {
	if obj.Icon != nil && obj.Icon.ref {
		if sub, err := r.resolve(obj.Icon.URL, depth+1); err == nil && sub.URL != "" {
			*obj.Icon = Image{Type: sub.Type, MediaType: sub.MediaType, URL: sub.URL}
		} else if err != nil {
			log.Printf("Resolver: could not dereference icon %s: %v", obj.Icon.URL, err)
		}
	}

	for _, options := range [][]ChoiceOption{obj.OneOf, obj.AnyOf} {
		for i := range options {
			replies := options[i].Replies
			if replies == nil || replies.TotalItems != nil || replies.ID == "" {
				continue
			}
			sub, err := r.resolve(replies.ID, depth+1)
			if err != nil {
				return err
			}
			replies.TotalItems = sub.TotalItems
			if replies.Type == "" {
				replies.Type = sub.Type
			}
		}
	}
	return nil
}

func (r *Resolver) fetch(uri string) (*Object, error) {
	r.slots <- struct{}{}
	defer func() { <-r.slots }()

	req, err := http.NewRequest("GET", uri, nil)
	if err != nil {
		return nil, &domain.ResolutionError{URI: uri, Err: err}
	}

	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "anancus/1.0 ActivityPub")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &domain.ResolutionError{URI: uri, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ResolutionError{URI: uri, Err: fmt.Errorf("object fetch failed with status: %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectBodySize))
	if err != nil {
		return nil, &domain.ResolutionError{URI: uri, Err: err}
	}

	var obj Object
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, &domain.ResolutionError{URI: uri, Err: fmt.Errorf("failed to parse object JSON: %w", err)}
	}

	log.Printf("Resolver: fetched %s (%s)", uri, obj.Type)
	return &obj, nil
}
