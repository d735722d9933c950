// Package bridge implements the transport boundary over a WebSocket
// connection to the external socket bridge process. The bridge owns the
// messaging network's wire protocol and session encryption; this client
// only relays its connection-state and message events, sends keepalive
// pings, and persists the credential blobs the bridge hands back.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tinyland-inc/wahook/pkg/logger"
	"github.com/tinyland-inc/wahook/pkg/transport"
)

const (
	credsFileName = "creds.json"
	writeTimeout  = 5 * time.Second
)

// Dialer connects to the socket bridge. Implements transport.Dialer.
type Dialer struct {
	URL              string
	HandshakeTimeout time.Duration
}

func NewDialer(url string, handshakeTimeout time.Duration) *Dialer {
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	return &Dialer{URL: url, HandshakeTimeout: handshakeTimeout}
}

// Dial opens the WebSocket, replays any persisted credentials so the bridge
// can resume the session, and starts the event reader.
func (d *Dialer) Dial(ctx context.Context, credsDir string) (transport.Session, error) {
	wsDialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	conn, _, err := wsDialer.DialContext(ctx, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing bridge %s: %w", d.URL, err)
	}

	s := &session{
		conn:     conn,
		credsDir: credsDir,
		updates:  make(chan transport.ConnectionUpdate, 8),
		messages: make(chan []transport.Message, 8),
		done:     make(chan struct{}),
	}

	creds := loadCreds(credsDir)
	init := initPayload{Creds: creds}
	if err := s.writeFrame(frameInit, init); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending init frame: %w", err)
	}

	go s.readLoop()
	return s, nil
}

type session struct {
	conn     *websocket.Conn
	credsDir string

	writeMu sync.Mutex

	updates  chan transport.ConnectionUpdate
	messages chan []transport.Message

	done      chan struct{}
	closeOnce sync.Once
}

func (s *session) Updates() <-chan transport.ConnectionUpdate {
	return s.updates
}

func (s *session) Messages() <-chan []transport.Message {
	return s.messages
}

func (s *session) SendKeepalive(_ context.Context) error {
	return s.writeFrame(framePing, nil)
}

func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *session) writeFrame(frameType string, data any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	frame := Frame{Type: frameType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		frame.Data = raw
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck // deadline on live conn
	return s.conn.WriteJSON(frame)
}

// readLoop decodes frames until the socket dies, then emits a synthetic
// close update so the lifecycle manager treats the drop as a transient
// disconnect.
func (s *session) readLoop() {
	defer close(s.updates)
	defer close(s.messages)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				logger.DebugCF("bridge", "Socket read failed", map[string]any{
					"error": err.Error(),
				})
				s.emitUpdate(transport.ConnectionUpdate{Connection: transport.ConnClose})
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.WarnCF("bridge", "Undecodable frame", map[string]any{"error": err.Error()})
			continue
		}

		switch frame.Type {
		case frameConnectionUpdate:
			var upd transport.ConnectionUpdate
			if err := json.Unmarshal(frame.Data, &upd); err != nil {
				logger.WarnCF("bridge", "Bad connection.update frame", map[string]any{
					"error": err.Error(),
				})
				continue
			}
			if !s.emitUpdate(upd) {
				return
			}

		case frameMessagesUpsert:
			var payload upsertPayload
			if err := json.Unmarshal(frame.Data, &payload); err != nil {
				logger.WarnCF("bridge", "Bad messages.upsert frame", map[string]any{
					"error": err.Error(),
				})
				continue
			}
			if len(payload.Messages) == 0 {
				continue
			}
			select {
			case s.messages <- payload.Messages:
			case <-s.done:
				return
			}

		case frameCredsUpdate:
			s.persistCreds(frame.Data)

		default:
			logger.DebugCF("bridge", "Ignoring frame", map[string]any{"type": frame.Type})
		}
	}
}

func (s *session) emitUpdate(upd transport.ConnectionUpdate) bool {
	select {
	case s.updates <- upd:
		return true
	case <-s.done:
		return false
	}
}

// persistCreds writes the credential blob the bridge hands back after
// pairing or key rotation. The blob is opaque to wahook.
func (s *session) persistCreds(raw json.RawMessage) {
	if s.credsDir == "" || len(raw) == 0 {
		return
	}
	if err := os.MkdirAll(s.credsDir, 0o700); err != nil {
		logger.ErrorCF("bridge", "Failed to create session dir", map[string]any{
			"dir":   s.credsDir,
			"error": err.Error(),
		})
		return
	}
	path := filepath.Join(s.credsDir, credsFileName)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		logger.ErrorCF("bridge", "Failed to persist credentials", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		return
	}
	logger.DebugC("bridge", "Credentials persisted")
}

func loadCreds(credsDir string) json.RawMessage {
	if credsDir == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(credsDir, credsFileName))
	if err != nil {
		return nil
	}
	return json.RawMessage(data)
}
