package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrBusClosed is returned when publishing to a closed MessageBus.
var ErrBusClosed = errors.New("message bus closed")

// MessageBus decouples the intake pipeline from webhook delivery. Intake
// publishes ForwardRequests; the forwarder worker consumes them, so a slow
// webhook never blocks message processing.
type MessageBus struct {
	forward chan ForwardRequest
	done    chan struct{}
	closed  atomic.Bool
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		forward: make(chan ForwardRequest, 100),
		done:    make(chan struct{}),
	}
}

func (mb *MessageBus) PublishForward(ctx context.Context, req ForwardRequest) error {
	if mb.closed.Load() {
		return ErrBusClosed
	}
	select {
	case mb.forward <- req:
		return nil
	case <-mb.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (mb *MessageBus) ConsumeForward(ctx context.Context) (ForwardRequest, bool) {
	select {
	case req, ok := <-mb.forward:
		return req, ok
	case <-mb.done:
		return ForwardRequest{}, false
	case <-ctx.Done():
		return ForwardRequest{}, false
	}
}

func (mb *MessageBus) Close() {
	if mb.closed.CompareAndSwap(false, true) {
		close(mb.done)
	}
}
