// Package forward delivers normalized payloads to the configured webhook.
// Delivery is fire-and-forget: failures are logged with full context and
// the message is dropped, never retried.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tinyland-inc/wahook/pkg/bus"
	"github.com/tinyland-inc/wahook/pkg/logger"
)

// StatsSnapshot is the delivery counter view exposed on /status.
type StatsSnapshot struct {
	Forwarded int64  `json:"forwarded"`
	Failed    int64  `json:"failed"`
	LastError string `json:"last_error,omitempty"`
}

type stats struct {
	mu        sync.Mutex
	forwarded int64
	failed    int64
	lastError string
}

func (s *stats) ok() {
	s.mu.Lock()
	s.forwarded++
	s.mu.Unlock()
}

func (s *stats) fail(errMsg string) {
	s.mu.Lock()
	s.failed++
	s.lastError = errMsg
	s.mu.Unlock()
}

func (s *stats) snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{Forwarded: s.forwarded, Failed: s.failed, LastError: s.lastError}
}

type Forwarder struct {
	url    string
	client *http.Client
	bus    *bus.MessageBus
	stats  stats
}

func New(webhookURL string, timeout time.Duration, b *bus.MessageBus) *Forwarder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Forwarder{
		url:    webhookURL,
		client: &http.Client{Timeout: timeout},
		bus:    b,
	}
}

func (f *Forwarder) Stats() StatsSnapshot {
	return f.stats.snapshot()
}

// Run consumes forward requests from the bus until ctx is cancelled or the
// bus closes. One request in flight at a time; the bounded client timeout
// keeps a dead webhook from stalling the queue indefinitely.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		req, ok := f.bus.ConsumeForward(ctx)
		if !ok {
			return
		}
		f.Deliver(ctx, req)
	}
}

// Deliver POSTs one payload to the webhook.
func (f *Forwarder) Deliver(ctx context.Context, req bus.ForwardRequest) {
	payload, err := json.Marshal(req)
	if err != nil {
		logger.ErrorCF("forward", "Failed to encode payload", map[string]any{
			"error":    err.Error(),
			"trace_id": req.TraceID,
		})
		f.stats.fail(err.Error())
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		logger.ErrorCF("forward", "Failed to build request", map[string]any{
			"url":   f.url,
			"error": err.Error(),
		})
		f.stats.fail(err.Error())
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		logger.ErrorCF("forward", "Webhook delivery failed", map[string]any{
			"url":      f.url,
			"payload":  string(payload),
			"error":    err.Error(),
			"trace_id": req.TraceID,
		})
		f.stats.fail(err.Error())
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.ErrorCF("forward", "Webhook returned non-2xx", map[string]any{
			"url":      f.url,
			"payload":  string(payload),
			"status":   resp.StatusCode,
			"trace_id": req.TraceID,
		})
		f.stats.fail(resp.Status)
		return
	}

	f.stats.ok()
	logger.DebugCF("forward", "Delivered", map[string]any{
		"from":     req.From,
		"trace_id": req.TraceID,
	})
}
