package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestPublishConsumeRoundTrip(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	ctx := context.Background()
	want := ForwardRequest{From: "5511999", Body: "code 482913", TraceID: "t1"}
	if err := mb.PublishForward(ctx, want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, ok := mb.ConsumeForward(ctx)
	if !ok {
		t.Fatal("expected a request")
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestPublishAfterCloseFails(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()

	err := mb.PublishForward(context.Background(), ForwardRequest{From: "x", Body: "y"})
	if err != ErrBusClosed {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
}

func TestConsumeAfterCloseReturnsFalse(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()

	if _, ok := mb.ConsumeForward(context.Background()); ok {
		t.Error("consume on closed bus should report not-ok")
	}
}

func TestConsumeHonorsContext(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, ok := mb.ConsumeForward(ctx); ok {
		t.Error("consume should report not-ok on context timeout")
	}
	if time.Since(start) > time.Second {
		t.Error("consume did not return promptly on context timeout")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()
	mb.Close()
}

func TestForwardRequestWireShape(t *testing.T) {
	payload, err := json.Marshal(ForwardRequest{From: "5511999", Body: "code 482913", TraceID: "secret"})
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		t.Fatal(err)
	}
	if m["from"] != "5511999" || m["body"] != "code 482913" {
		t.Errorf("unexpected wire payload: %v", m)
	}
	if _, ok := m["TraceID"]; ok {
		t.Error("trace id must not appear on the wire")
	}
	if len(m) != 2 {
		t.Errorf("payload should carry exactly from and body, got %v", m)
	}
}
