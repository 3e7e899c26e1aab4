package federation

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/deemkeen/anancus/domain"
)

func TestResolveValueInlineObject(t *testing.T) {
	r := NewResolver(nil)
	raw := json.RawMessage(`{"id": "https://remote.example/notes/1", "type": "Note", "content": "hi"}`)

	obj, err := r.ResolveValue(raw)
	if err != nil {
		t.Fatalf("Inline object failed: %v", err)
	}
	if obj.Type != "Note" || obj.Content != "hi" {
		t.Errorf("Inline object mangled: %+v", obj)
	}
}

func TestResolveValueGarbage(t *testing.T) {
	r := NewResolver(nil)
	if _, err := r.ResolveValue(json.RawMessage(`42`)); err == nil {
		t.Error("Expected error for non-object, non-URI value")
	}
}

func TestResolveCaches(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Header().Set("Content-Type", "application/activity+json")
		json.NewEncoder(w).Encode(Object{ID: "https://remote.example/notes/1", Type: "Note", Content: "cached"})
	}))
	defer srv.Close()

	r := NewResolver(nil)
	uri := srv.URL + "/notes/1"

	for i := 0; i < 3; i++ {
		obj, err := r.Resolve(uri)
		if err != nil {
			t.Fatalf("Resolve %d failed: %v", i, err)
		}
		if obj.Content != "cached" {
			t.Errorf("Wrong content: %q", obj.Content)
		}
	}

	if n := atomic.LoadInt64(&hits); n != 1 {
		t.Errorf("Expected 1 origin fetch, got %d", n)
	}
}

func TestResolveCacheInvalidation(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&hits, 1)
		json.NewEncoder(w).Encode(Object{ID: "https://remote.example/notes/1", Type: "Note"})
	}))
	defer srv.Close()

	bus := NewEventBus()
	r := NewResolver(bus)
	uri := srv.URL + "/notes/1"

	if _, err := r.Resolve(uri); err != nil {
		t.Fatalf("First resolve failed: %v", err)
	}
	bus.Publish(CacheInvalidate{URI: uri})
	if _, err := r.Resolve(uri); err != nil {
		t.Fatalf("Second resolve failed: %v", err)
	}

	if n := atomic.LoadInt64(&hits); n != 2 {
		t.Errorf("Invalidation should force a refetch, got %d fetches", n)
	}
}

func TestResolveRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	r := NewResolver(nil)
	_, err := r.Resolve(srv.URL + "/notes/gone")
	var re *domain.ResolutionError
	if !errors.As(err, &re) {
		t.Errorf("Expected ResolutionError, got %v", err)
	}
}

func TestResolveDepthBound(t *testing.T) {
	r := NewResolver(nil)
	if _, err := r.resolve("https://remote.example/notes/1", maxResolveDepth); err == nil {
		t.Error("Expected depth bound to trip")
	}
}

func TestResolveByReferenceReplies(t *testing.T) {
	// Poll choices may carry their reply collection as a bare URI; the
	// resolver must dereference it and pull totalItems
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/notes/1", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{
			"id": "` + srv.URL + `/notes/1",
			"type": "Question",
			"oneOf": [
				{"type": "Note", "name": "yes", "replies": "` + srv.URL + `/replies/yes"},
				{"type": "Note", "name": "no", "replies": {"type": "Collection", "totalItems": 2}}
			]
		}`))
	})
	mux.HandleFunc("/replies/yes", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"id": "` + srv.URL + `/replies/yes", "type": "Collection", "totalItems": 5}`))
	})

	r := NewResolver(nil)
	obj, err := r.Resolve(srv.URL + "/notes/1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	options, _ := obj.Choices()
	if options[0].Replies == nil || options[0].Replies.TotalItems == nil {
		t.Fatal("Referenced reply collection not dereferenced")
	}
	if *options[0].Replies.TotalItems != 5 {
		t.Errorf("Expected 5 votes from the referenced collection, got %d", *options[0].Replies.TotalItems)
	}
	if options[1].Replies.TotalItems == nil || *options[1].Replies.TotalItems != 2 {
		t.Error("Inline reply collection mangled")
	}
}

func TestResolveCountlessInlineReplies(t *testing.T) {
	// An inline collection with an id but no count gets dereferenced too
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/notes/1", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{
			"id": "` + srv.URL + `/notes/1",
			"type": "Question",
			"anyOf": [{"name": "red", "replies": {"id": "` + srv.URL + `/replies/red", "type": "Collection"}}]
		}`))
	})
	mux.HandleFunc("/replies/red", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"id": "` + srv.URL + `/replies/red", "type": "Collection", "totalItems": 3}`))
	})

	r := NewResolver(nil)
	obj, err := r.Resolve(srv.URL + "/notes/1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	options, multiple := obj.Choices()
	if !multiple {
		t.Error("anyOf poll should be multiple-choice")
	}
	if options[0].Replies.TotalItems == nil || *options[0].Replies.TotalItems != 3 {
		t.Error("Countless inline collection not dereferenced")
	}
}

func TestResolveIconReference(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/notes/1", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"id": "` + srv.URL + `/notes/1", "type": "Note", "icon": "` + srv.URL + `/media/1"}`))
	})
	mux.HandleFunc("/media/1", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"type": "Image", "mediaType": "image/png", "url": "https://cdn.example/avatar.png"}`))
	})

	r := NewResolver(nil)
	obj, err := r.Resolve(srv.URL + "/notes/1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if obj.Icon == nil || obj.Icon.URL != "https://cdn.example/avatar.png" {
		t.Errorf("Icon reference not dereferenced: %+v", obj.Icon)
	}
	if obj.Icon.MediaType != "image/png" {
		t.Errorf("Icon media type lost: %q", obj.Icon.MediaType)
	}
}

func TestResolveReferenceCycle(t *testing.T) {
	// Two questions whose reply references point at each other must hit
	// the depth bound instead of looping
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	question := func(id, ref string) http.HandlerFunc {
		return func(w http.ResponseWriter, req *http.Request) {
			w.Write([]byte(`{"id": "` + id + `", "type": "Question", "oneOf": [{"name": "x", "replies": "` + ref + `"}]}`))
		}
	}
	mux.HandleFunc("/notes/a", question(srv.URL+"/notes/a", srv.URL+"/notes/b"))
	mux.HandleFunc("/notes/b", question(srv.URL+"/notes/b", srv.URL+"/notes/a"))

	r := NewResolver(nil)
	if _, err := r.Resolve(srv.URL + "/notes/a"); err == nil {
		t.Error("Expected cyclic references to fail at the depth bound")
	}
}
