// Package lifecycle drives the connection state machine over the external
// transport: Connecting → Open → Closed(reason), with logout closes
// triggering a full credential reset and everything else a fixed-backoff
// reconnect. The reconnect loop is an explicit for-loop, never recursion.
package lifecycle

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyland-inc/wahook/pkg/identity"
	"github.com/tinyland-inc/wahook/pkg/logger"
	"github.com/tinyland-inc/wahook/pkg/transport"
)

type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

// Handler receives inbound message batches from the live session. Rebound
// on every session incarnation.
type Handler interface {
	HandleBatch(msgs []transport.Message)
}

// Backoff is the reconnect delay policy for transient closes.
type Backoff struct {
	Delay time.Duration
}

type Options struct {
	CredsDir                string
	Backoff                 Backoff
	KeepaliveInterval       time.Duration
	ResetIdentitiesOnLogout bool
}

// Manager owns the session handle. Sessions are recreated, never reused:
// each loop iteration dials a brand-new session and fully replaces the
// previous one.
type Manager struct {
	dialer  transport.Dialer
	handler Handler
	store   *identity.Store
	opts    Options

	mu    sync.RWMutex
	state State

	// gen guards deferred actions (keepalive ticks) against firing for a
	// dead session incarnation.
	gen atomic.Uint64
}

func NewManager(dialer transport.Dialer, handler Handler, store *identity.Store, opts Options) *Manager {
	if opts.Backoff.Delay <= 0 {
		opts.Backoff.Delay = 5 * time.Second
	}
	if opts.KeepaliveInterval <= 0 {
		opts.KeepaliveInterval = 30 * time.Second
	}
	return &Manager{
		dialer:  dialer,
		handler: handler,
		store:   store,
		opts:    opts,
		state:   StateConnecting,
	}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Run blocks until ctx is cancelled, reconnecting as needed.
func (m *Manager) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		gen := m.gen.Add(1)
		m.setState(StateConnecting)

		sess, err := m.dialer.Dial(ctx, m.opts.CredsDir)
		if err != nil {
			logger.WarnCF("lifecycle", "Dial failed, retrying", map[string]any{
				"error":   err.Error(),
				"backoff": m.opts.Backoff.Delay.String(),
			})
			if !m.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		code := m.runSession(ctx, gen, sess)
		sess.Close()
		m.setState(StateClosed)

		if err := ctx.Err(); err != nil {
			return err
		}

		if code == StatusLoggedOut {
			// Terminal for this session: credentials are invalid and the
			// operator must pair again.
			logger.ErrorCF("lifecycle", "Session logged out, clearing credentials", map[string]any{
				"creds_dir": m.opts.CredsDir,
			})
			if err := m.resetCredentials(); err != nil {
				logger.ErrorCF("lifecycle", "Failed to clear credentials", map[string]any{
					"error": err.Error(),
				})
			}
			if m.opts.ResetIdentitiesOnLogout {
				if err := m.store.Reset(); err != nil {
					logger.WarnCF("lifecycle", "Failed to reset identity cache", map[string]any{
						"error": err.Error(),
					})
				} else {
					logger.InfoC("lifecycle", "Identity cache reset")
				}
			}
			continue
		}

		logger.WarnCF("lifecycle", "Connection closed, reconnecting", map[string]any{
			"status_code": code,
			"backoff":     m.opts.Backoff.Delay.String(),
		})
		if !m.sleep(ctx) {
			return ctx.Err()
		}
	}
}

// runSession consumes events from one session incarnation until it closes.
// Returns the close status code, or 0 when none could be extracted.
func (m *Manager) runSession(ctx context.Context, gen uint64, sess transport.Session) int {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	keepaliveStarted := false

	for {
		select {
		case <-ctx.Done():
			return 0

		case upd, ok := <-sess.Updates():
			if !ok {
				return 0
			}
			if upd.QR != "" {
				logger.InfoCF("lifecycle", "Pairing required, scan QR code", map[string]any{
					"qr": upd.QR,
				})
			}
			switch upd.Connection {
			case transport.ConnConnecting:
				logger.DebugC("lifecycle", "Handshake in progress")
			case transport.ConnOpen:
				m.setState(StateOpen)
				logger.InfoC("lifecycle", "Connection open")
				if !keepaliveStarted {
					keepaliveStarted = true
					go m.keepaliveLoop(sessCtx, gen, sess)
				}
			case transport.ConnClose:
				code, ok := CloseStatusCode(upd.DisconnectError())
				if !ok {
					logger.DebugC("lifecycle", "Close event carried no status code")
				}
				return code
			}

		case msgs, ok := <-sess.Messages():
			if !ok {
				return 0
			}
			m.handler.HandleBatch(msgs)
		}
	}
}

// keepaliveLoop sends periodic no-op pings while the session is open.
// Failures are swallowed; the generation check keeps a stale timer from
// pinging a replaced session.
func (m *Manager) keepaliveLoop(ctx context.Context, gen uint64, sess transport.Session) {
	ticker := time.NewTicker(m.opts.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.gen.Load() != gen {
				return
			}
			if err := sess.SendKeepalive(ctx); err != nil {
				logger.DebugCF("lifecycle", "Keepalive send failed", map[string]any{
					"error": err.Error(),
				})
			}
		}
	}
}

// resetCredentials deletes all persisted auth state so the next dial starts
// from empty state (new pairing).
func (m *Manager) resetCredentials() error {
	if m.opts.CredsDir == "" {
		return nil
	}
	if err := os.RemoveAll(m.opts.CredsDir); err != nil {
		return err
	}
	return os.MkdirAll(m.opts.CredsDir, 0o700)
}

func (m *Manager) sleep(ctx context.Context) bool {
	t := time.NewTimer(m.opts.Backoff.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
