// Package transport defines the boundary to the external messaging
// transport. The wire protocol, cryptography and multi-device session
// handling live on the other side of this boundary; wahook only consumes
// connection-state events and message batches and sends keepalive pings.
//
// Field shapes mirror what the socket bridge emits, so they decode straight
// off the wire.
package transport

import (
	"context"
	"encoding/json"
)

type ConnState string

const (
	ConnConnecting ConnState = "connecting"
	ConnOpen       ConnState = "open"
	ConnClose      ConnState = "close"
)

// ConnectionUpdate is a connection-state event. QR is set when the session
// has no credentials and the operator must pair a device.
type ConnectionUpdate struct {
	Connection     ConnState   `json:"connection,omitempty"`
	QR             string      `json:"qr,omitempty"`
	LastDisconnect *Disconnect `json:"lastDisconnect,omitempty"`
}

// Disconnect carries the close error as raw JSON. The transport surfaces
// the status code in several different shapes, so classification is left
// to the lifecycle manager.
type Disconnect struct {
	Error json.RawMessage `json:"error,omitempty"`
}

// DisconnectError returns the raw close error, nil-safe.
func (u *ConnectionUpdate) DisconnectError() json.RawMessage {
	if u == nil || u.LastDisconnect == nil {
		return nil
	}
	return u.LastDisconnect.Error
}

// MessageKey identifies a message. SenderPN is the sender's phone-number
// address, populated by newer transports alongside a pseudonymous remoteJid.
type MessageKey struct {
	RemoteJID   string `json:"remoteJid"`
	FromMe      bool   `json:"fromMe"`
	ID          string `json:"id"`
	Participant string `json:"participant,omitempty"`
	SenderPN    string `json:"senderPn,omitempty"`
}

// ContextInfo carries reply context; Participant is the quoted message's
// sender.
type ContextInfo struct {
	Participant string `json:"participant,omitempty"`
}

type ExtendedText struct {
	Text        string       `json:"text,omitempty"`
	ContextInfo *ContextInfo `json:"contextInfo,omitempty"`
}

type Document struct {
	Caption string `json:"caption,omitempty"`
}

// MessageContent holds the body variants. Exactly which one is present
// depends on the message type.
type MessageContent struct {
	Conversation string        `json:"conversation,omitempty"`
	ExtendedText *ExtendedText `json:"extendedTextMessage,omitempty"`
	Document     *Document     `json:"documentMessage,omitempty"`
}

// Message is one inbound message record. Transient: processed once, never
// persisted.
type Message struct {
	Key         MessageKey      `json:"key"`
	Participant string          `json:"participant,omitempty"`
	PushName    string          `json:"pushName,omitempty"`
	Content     *MessageContent `json:"message,omitempty"`
}

// QuotedParticipant returns the sender of the quoted message in reply
// context, or "" when the message is not a reply. Nil-safe.
func (m *Message) QuotedParticipant() string {
	if m == nil || m.Content == nil || m.Content.ExtendedText == nil ||
		m.Content.ExtendedText.ContextInfo == nil {
		return ""
	}
	return m.Content.ExtendedText.ContextInfo.Participant
}

// Session is one live connection incarnation. The lifecycle manager owns
// it exclusively and never reuses a closed session.
type Session interface {
	// Updates delivers connection-state events. Closed when the session dies.
	Updates() <-chan ConnectionUpdate
	// Messages delivers inbound message batches.
	Messages() <-chan []Message
	// SendKeepalive sends a no-op ping to defeat idle-connection
	// termination. Best effort.
	SendKeepalive(ctx context.Context) error
	Close() error
}

// Dialer constructs sessions. credsDir holds the persisted session
// credentials; an empty directory means a fresh pairing.
type Dialer interface {
	Dial(ctx context.Context, credsDir string) (Session, error)
}
