// Package intake filters inbound messages down to forwardable verification
// codes and hands normalized ForwardRequests to the bus.
package intake

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/tinyland-inc/wahook/pkg/bus"
	"github.com/tinyland-inc/wahook/pkg/identity"
	"github.com/tinyland-inc/wahook/pkg/logger"
	"github.com/tinyland-inc/wahook/pkg/transport"
)

// codePattern matches a standalone 6-digit token. Word boundaries keep it
// from matching inside longer digit runs.
var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// bodyExtractors try the known body shapes in precedence order; the first
// present shape wins, even when its text is empty.
var bodyExtractors = []struct {
	name    string
	extract func(*transport.MessageContent) (string, bool)
}{
	{"conversation", func(c *transport.MessageContent) (string, bool) {
		return c.Conversation, c.Conversation != ""
	}},
	{"extended_text", func(c *transport.MessageContent) (string, bool) {
		if c.ExtendedText == nil {
			return "", false
		}
		return c.ExtendedText.Text, true
	}},
	{"document_caption", func(c *transport.MessageContent) (string, bool) {
		if c.Document == nil {
			return "", false
		}
		return c.Document.Caption, true
	}},
}

type Options struct {
	// CodeOnly requires the body to contain a standalone 6-digit token.
	CodeOnly bool
	// AllowFrom restricts forwarding to these canonical addresses.
	// Empty means everyone.
	AllowFrom []string
}

type Pipeline struct {
	resolver *identity.Resolver
	bus      *bus.MessageBus
	opts     Options
}

func NewPipeline(resolver *identity.Resolver, b *bus.MessageBus, opts Options) *Pipeline {
	return &Pipeline{resolver: resolver, bus: b, opts: opts}
}

// HandleBatch processes one message-batch event. Messages are independent;
// no ordering is maintained between them.
func (p *Pipeline) HandleBatch(msgs []transport.Message) {
	for i := range msgs {
		p.handle(&msgs[i])
	}
}

func (p *Pipeline) handle(msg *transport.Message) {
	if msg.Content == nil {
		return
	}
	if msg.Key.FromMe {
		return
	}

	raw := msg.Key.RemoteJID
	if raw == "" {
		logger.DebugC("intake", "Message without sender identifier, skipping")
		return
	}

	from, ok := p.resolver.Resolve(raw, msg)
	if !ok {
		return
	}
	if !p.isAllowed(from) {
		logger.DebugCF("intake", "Sender not in allow list", map[string]any{"from": from})
		return
	}

	body := extractBody(msg.Content)
	if strings.TrimSpace(body) == "" {
		return
	}
	if p.opts.CodeOnly && !codePattern.MatchString(body) {
		logger.DebugCF("intake", "No verification code in body, skipping", map[string]any{
			"from": from,
		})
		return
	}

	req := bus.ForwardRequest{
		From:    from,
		Body:    body,
		TraceID: uuid.NewString(),
	}
	if err := p.bus.PublishForward(context.Background(), req); err != nil {
		logger.WarnCF("intake", "Failed to enqueue forward request", map[string]any{
			"error": err.Error(),
		})
		return
	}
	logger.InfoCF("intake", "Message accepted for forwarding", map[string]any{
		"from":     from,
		"trace_id": req.TraceID,
	})
}

func (p *Pipeline) isAllowed(from string) bool {
	if len(p.opts.AllowFrom) == 0 {
		return true
	}
	for _, allowed := range p.opts.AllowFrom {
		if from == strings.TrimSpace(allowed) {
			return true
		}
	}
	return false
}

func extractBody(c *transport.MessageContent) string {
	for _, e := range bodyExtractors {
		if text, ok := e.extract(c); ok {
			return text
		}
	}
	return ""
}
