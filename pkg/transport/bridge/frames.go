package bridge

import (
	"encoding/json"

	"github.com/tinyland-inc/wahook/pkg/transport"
)

// Frame is the envelope for every message exchanged with the socket bridge.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Frame types emitted by the bridge.
const (
	frameConnectionUpdate = "connection.update"
	frameMessagesUpsert   = "messages.upsert"
	frameCredsUpdate      = "creds.update"
)

// Frame types sent to the bridge.
const (
	frameInit = "init"
	framePing = "ping"
)

// initPayload carries previously persisted credentials so the bridge can
// resume the session instead of requiring a new pairing. Creds is null on
// a fresh start.
type initPayload struct {
	Creds json.RawMessage `json:"creds,omitempty"`
}

// upsertPayload is the body of a messages.upsert frame.
type upsertPayload struct {
	Messages []transport.Message `json:"messages"`
}
