package identity

import (
	"path/filepath"
	"testing"

	"github.com/tinyland-inc/wahook/pkg/config"
	"github.com/tinyland-inc/wahook/pkg/transport"
)

func newTestResolver(t *testing.T, policy string) (*Resolver, *Store) {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "identities.json"))
	return NewResolver(store, policy), store
}

func replyTo(participant string) *transport.MessageContent {
	return &transport.MessageContent{
		ExtendedText: &transport.ExtendedText{
			Text:        "reply",
			ContextInfo: &transport.ContextInfo{Participant: participant},
		},
	}
}

func TestResolve_CanonicalSender(t *testing.T) {
	r, _ := newTestResolver(t, "")

	addr, ok := r.Resolve("5511999@s.whatsapp.net", &transport.Message{})
	if !ok {
		t.Fatal("canonical sender should resolve")
	}
	if addr != "5511999" {
		t.Errorf("expected 5511999, got %s", addr)
	}
}

func TestResolve_CanonicalSenderDeviceSuffix(t *testing.T) {
	r, _ := newTestResolver(t, "")

	addr, ok := r.Resolve("5511999:12@s.whatsapp.net", &transport.Message{})
	if !ok || addr != "5511999" {
		t.Errorf("expected 5511999 with device suffix stripped, got %q ok=%v", addr, ok)
	}
}

func TestResolve_LegacyCanonicalTag(t *testing.T) {
	r, _ := newTestResolver(t, "")

	addr, ok := r.Resolve("5511999@c.us", &transport.Message{})
	if !ok || addr != "5511999" {
		t.Errorf("expected legacy c.us tag accepted, got %q ok=%v", addr, ok)
	}
}

func TestResolve_GroupAndBroadcastSkipped(t *testing.T) {
	r, _ := newTestResolver(t, "")

	for _, raw := range []string{
		"123456789-987654@g.us",
		"status@broadcast",
	} {
		// Other fields must not matter for group/broadcast senders.
		msg := &transport.Message{
			Key:     transport.MessageKey{SenderPN: "5511999@s.whatsapp.net"},
			Content: replyTo("5511999@s.whatsapp.net"),
		}
		if _, ok := r.Resolve(raw, msg); ok {
			t.Errorf("%s: group/broadcast sender should be skipped", raw)
		}
	}
}

func TestResolve_UnrecognizedTagSkipped(t *testing.T) {
	r, _ := newTestResolver(t, "")

	if _, ok := r.Resolve("12345@newsletter", &transport.Message{}); ok {
		t.Error("unrecognized tag should be skipped")
	}
	if _, ok := r.Resolve("no-tag-at-all", &transport.Message{}); ok {
		t.Error("malformed identifier should be skipped")
	}
}

func TestResolve_AliasViaSenderPN(t *testing.T) {
	r, store := newTestResolver(t, "")

	msg := &transport.Message{
		Key: transport.MessageKey{
			RemoteJID: "123456@lid",
			SenderPN:  "5511999@s.whatsapp.net",
		},
	}
	addr, ok := r.Resolve("123456@lid", msg)
	if !ok {
		t.Fatal("alias with senderPn should resolve")
	}
	if addr != "5511999" {
		t.Errorf("expected 5511999, got %s", addr)
	}

	cached, ok := store.Get("123456")
	if !ok || cached != "5511999" {
		t.Errorf("expected cache entry 123456 -> 5511999, got %q ok=%v", cached, ok)
	}
}

func TestResolve_AliasViaParticipant(t *testing.T) {
	r, _ := newTestResolver(t, "")

	msg := &transport.Message{
		Key: transport.MessageKey{
			RemoteJID:   "123456@lid",
			Participant: "5511999@s.whatsapp.net",
		},
	}
	addr, ok := r.Resolve("123456@lid", msg)
	if !ok || addr != "5511999" {
		t.Errorf("expected participant heuristic to resolve, got %q ok=%v", addr, ok)
	}
}

func TestResolve_AliasViaQuotedParticipant(t *testing.T) {
	r, _ := newTestResolver(t, "")

	msg := &transport.Message{
		Key:     transport.MessageKey{RemoteJID: "123456@lid"},
		Content: replyTo("5511999@s.whatsapp.net"),
	}
	addr, ok := r.Resolve("123456@lid", msg)
	if !ok || addr != "5511999" {
		t.Errorf("expected quoted-participant heuristic to resolve, got %q ok=%v", addr, ok)
	}
}

func TestResolve_HeuristicPrecedence(t *testing.T) {
	r, _ := newTestResolver(t, "")

	// senderPn and participant disagree; senderPn is tried first.
	msg := &transport.Message{
		Key: transport.MessageKey{
			RemoteJID:   "123456@lid",
			SenderPN:    "5511999@s.whatsapp.net",
			Participant: "5522888@s.whatsapp.net",
		},
	}
	addr, _ := r.Resolve("123456@lid", msg)
	if addr != "5511999" {
		t.Errorf("expected senderPn to win, got %s", addr)
	}
}

func TestResolve_AliasCandidatesMustBeCanonical(t *testing.T) {
	r, _ := newTestResolver(t, config.PolicyDropUnresolved)

	// Candidates carrying alias or group tags are not valid resolutions.
	msg := &transport.Message{
		Key: transport.MessageKey{
			RemoteJID:   "123456@lid",
			SenderPN:    "999999@lid",
			Participant: "888-777@g.us",
		},
	}
	if _, ok := r.Resolve("123456@lid", msg); ok {
		t.Error("non-canonical candidates should not resolve an alias")
	}
}

func TestResolve_FirstResolutionWins(t *testing.T) {
	r, _ := newTestResolver(t, "")

	first := &transport.Message{
		Key: transport.MessageKey{RemoteJID: "123456@lid", SenderPN: "5511999@s.whatsapp.net"},
	}
	if addr, _ := r.Resolve("123456@lid", first); addr != "5511999" {
		t.Fatalf("setup: expected 5511999, got %s", addr)
	}

	// A later message whose heuristics would produce a different address
	// must still return the recorded mapping.
	second := &transport.Message{
		Key: transport.MessageKey{RemoteJID: "123456@lid", SenderPN: "5522888@s.whatsapp.net"},
	}
	if addr, _ := r.Resolve("123456@lid", second); addr != "5511999" {
		t.Errorf("expected cached resolution 5511999 to win, got %s", addr)
	}
}

func TestResolve_DegradedFallbackPolicy(t *testing.T) {
	r, _ := newTestResolver(t, config.PolicyForwardDegraded)

	addr, ok := r.Resolve("123456@lid", &transport.Message{})
	if !ok {
		t.Fatal("forward-degraded policy should not skip")
	}
	if addr != "123456" {
		t.Errorf("expected alias token as last-resort address, got %s", addr)
	}
}

func TestResolve_DropUnresolvedPolicy(t *testing.T) {
	r, _ := newTestResolver(t, config.PolicyDropUnresolved)

	if _, ok := r.Resolve("123456@lid", &transport.Message{}); ok {
		t.Error("drop-unresolved policy should skip an unresolvable alias")
	}
}

func TestResolve_CrossLinkFromReplyContext(t *testing.T) {
	r, store := newTestResolver(t, "")

	// Canonical sender quoting their own earlier alias-tagged message.
	msg := &transport.Message{
		Key:     transport.MessageKey{RemoteJID: "5511999@s.whatsapp.net"},
		Content: replyTo("123456@lid"),
	}
	addr, ok := r.Resolve("5511999@s.whatsapp.net", msg)
	if !ok || addr != "5511999" {
		t.Fatalf("canonical resolution failed: %q ok=%v", addr, ok)
	}

	cached, ok := store.Get("123456")
	if !ok || cached != "5511999" {
		t.Errorf("expected cross-linked entry 123456 -> 5511999, got %q ok=%v", cached, ok)
	}
}

func TestResolve_CrossLinkNeverOverwrites(t *testing.T) {
	r, store := newTestResolver(t, "")
	store.Put("123456", "5522888")

	msg := &transport.Message{
		Key:     transport.MessageKey{RemoteJID: "5511999@s.whatsapp.net"},
		Content: replyTo("123456@lid"),
	}
	r.Resolve("5511999@s.whatsapp.net", msg)

	if cached, _ := store.Get("123456"); cached != "5522888" {
		t.Errorf("cross-link must not displace existing mapping, got %s", cached)
	}
}
