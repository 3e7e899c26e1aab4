package federation

import (
	"errors"
	"strings"
	"testing"

	"github.com/deemkeen/anancus/domain"
)

func validActorDoc() *ActorDoc {
	doc := &ActorDoc{
		ID:                "https://remote.example/users/alice",
		Type:              "Person",
		PreferredUsername: "alice",
		Name:              "Alice",
		Summary:           "hello fediverse",
		Inbox:             "https://remote.example/users/alice/inbox",
		Outbox:            "https://remote.example/users/alice/outbox",
		Followers:         "https://remote.example/users/alice/followers",
	}
	doc.Endpoints.SharedInbox = "https://remote.example/inbox"
	doc.PublicKey.ID = "https://remote.example/users/alice#main-key"
	doc.PublicKey.Owner = doc.ID
	doc.PublicKey.PublicKeyPem = "-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----"
	return doc
}

func TestValidateActorDoc(t *testing.T) {
	doc := validActorDoc()
	acc, err := ValidateActorDoc(doc, "https://remote.example/users/alice")
	if err != nil {
		t.Fatalf("Valid doc rejected: %v", err)
	}
	if acc.Username != "alice" || acc.Domain != "remote.example" {
		t.Errorf("Wrong identity mapping: %s@%s", acc.Username, acc.Domain)
	}
	if acc.InboxURI != doc.Inbox || acc.SharedInboxURI != "https://remote.example/inbox" {
		t.Errorf("Inbox mapping wrong: %s / %s", acc.InboxURI, acc.SharedInboxURI)
	}
	if acc.DisplayName != "Alice" || acc.Summary != "hello fediverse" {
		t.Errorf("Profile mapping wrong: %q / %q", acc.DisplayName, acc.Summary)
	}
}

func TestValidateActorDocHostSpoof(t *testing.T) {
	doc := validActorDoc()
	doc.ID = "https://victim.example/users/alice"

	_, err := ValidateActorDoc(doc, "https://remote.example/users/alice")
	if err == nil {
		t.Fatal("Actor claiming a foreign host must be rejected")
	}
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError, got %T", err)
	}
}

func TestValidateActorDocUnicodeHost(t *testing.T) {
	// Unicode and punycode spellings of the same host must compare equal
	doc := validActorDoc()
	doc.ID = "https://bücher.example/users/alice"
	doc.Inbox = "https://bücher.example/users/alice/inbox"
	doc.PublicKey.ID = "https://xn--bcher-kva.example/users/alice#main-key"

	acc, err := ValidateActorDoc(doc, "https://xn--bcher-kva.example/users/alice")
	if err != nil {
		t.Fatalf("Punycode-equal hosts rejected: %v", err)
	}
	if acc.Domain != "xn--bcher-kva.example" {
		t.Errorf("Domain should normalize to punycode, got %q", acc.Domain)
	}
}

func TestValidateActorDocKeyHostMismatch(t *testing.T) {
	doc := validActorDoc()
	doc.PublicKey.ID = "https://evil.example/keys/1"

	if _, err := ValidateActorDoc(doc, "https://remote.example/users/alice"); err == nil {
		t.Error("Key hosted on a foreign host must be rejected")
	}
}

func TestValidateActorDocTypes(t *testing.T) {
	for _, typ := range []string{"Person", "Application", "Service", "Organization", "Group"} {
		doc := validActorDoc()
		doc.Type = typ
		if _, err := ValidateActorDoc(doc, "https://remote.example/users/alice"); err != nil {
			t.Errorf("Actor type %q rejected: %v", typ, err)
		}
	}

	for _, typ := range []string{"Tombstone", "Note", ""} {
		doc := validActorDoc()
		doc.Type = typ
		if _, err := ValidateActorDoc(doc, "https://remote.example/users/alice"); err == nil {
			t.Errorf("Actor type %q should be rejected", typ)
		}
	}
}

func TestValidateActorDocUsername(t *testing.T) {
	bad := []string{"", "has space", "@alice", "alice!", ".dotfirst", "trail."}
	for _, name := range bad {
		doc := validActorDoc()
		doc.PreferredUsername = name
		if _, err := ValidateActorDoc(doc, "https://remote.example/users/alice"); err == nil {
			t.Errorf("Username %q should be rejected", name)
		}
	}

	good := []string{"alice", "a", "a.b-c_d", "user123"}
	for _, name := range good {
		doc := validActorDoc()
		doc.PreferredUsername = name
		if _, err := ValidateActorDoc(doc, "https://remote.example/users/alice"); err != nil {
			t.Errorf("Username %q rejected: %v", name, err)
		}
	}
}

func TestValidateActorDocMissingInbox(t *testing.T) {
	doc := validActorDoc()
	doc.Inbox = ""
	if _, err := ValidateActorDoc(doc, "https://remote.example/users/alice"); err == nil {
		t.Error("Actor without inbox must be rejected")
	}
}

func TestValidateActorDocOversizeFields(t *testing.T) {
	// Oversized values are truncated, never rejected
	doc := validActorDoc()
	doc.Name = strings.Repeat("n", 500)
	doc.Summary = strings.Repeat("s", 5000)

	acc, err := ValidateActorDoc(doc, "https://remote.example/users/alice")
	if err != nil {
		t.Fatalf("Oversized profile fields should truncate, got: %v", err)
	}
	if len(acc.DisplayName) != maxDisplayNameLen {
		t.Errorf("DisplayName length %d, want %d", len(acc.DisplayName), maxDisplayNameLen)
	}
	if len(acc.Summary) != maxSummaryLen {
		t.Errorf("Summary length %d, want %d", len(acc.Summary), maxSummaryLen)
	}
}

func TestValidateActorDocWrongFieldType(t *testing.T) {
	// A non-string name is malformed, not just oversized
	doc := validActorDoc()
	doc.Name = map[string]interface{}{"en": "Alice"}

	_, err := ValidateActorDoc(doc, "https://remote.example/users/alice")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for non-string name, got %v", err)
	}
}

func TestValidateActorDocMoveFields(t *testing.T) {
	doc := validActorDoc()
	doc.MovedTo = "https://new.example/users/alice"
	doc.AlsoKnownAs = StringList{"https://old.example/users/alice"}

	acc, err := ValidateActorDoc(doc, "https://remote.example/users/alice")
	if err != nil {
		t.Fatalf("Doc with move fields rejected: %v", err)
	}
	if acc.MovedToURI != "https://new.example/users/alice" {
		t.Errorf("MovedToURI not mapped: %q", acc.MovedToURI)
	}
	if len(acc.AlsoKnownAs) != 1 || acc.AlsoKnownAs[0] != "https://old.example/users/alice" {
		t.Errorf("AlsoKnownAs not mapped: %v", acc.AlsoKnownAs)
	}
}

func TestPunyHost(t *testing.T) {
	tests := []struct {
		uri  string
		host string
	}{
		{"https://Example.COM/users/x", "example.com"},
		{"https://bücher.example/inbox", "xn--bcher-kva.example"},
		{"http://localhost:8080/users/x", "localhost:8080"},
	}
	for _, tt := range tests {
		got, err := punyHost(tt.uri)
		if err != nil {
			t.Errorf("punyHost(%q): %v", tt.uri, err)
			continue
		}
		if got != tt.host {
			t.Errorf("punyHost(%q) = %q, want %q", tt.uri, got, tt.host)
		}
	}
}
