// Package chat owns the single outbound chat session: credential resolution
// and refresh, the connect/disconnect state machine, and a non-disruptive
// connectivity probe. The manager depends only on a credential snapshot and
// the Session capability; it never touches chat history directly, it reports
// upward through injected callbacks.
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onnwee/streambridge/telemetry"
	"github.com/onnwee/streambridge/twitchapi"
)

// State is the lifecycle state of the managed session.
type State int

const (
	StateDisconnected State = iota
	StatePending
	StateConnected
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// TokenPersister stores refreshed token material back into the credential
// source. Persistence is best-effort; failures are logged, never fatal.
type TokenPersister interface {
	PersistTokens(accessToken, refreshToken string, expiresAt time.Time, login string) error
}

// Options configure a Manager. Zero values fall back to production defaults.
type Options struct {
	// Dial creates sessions; defaults to NewIRCDialer().
	Dial Dialer
	// Auth talks to the token validation/refresh endpoints.
	Auth *twitchapi.AuthClient
	// Persist receives refreshed token material. Optional.
	Persist TokenPersister
	// OnStatus receives human-readable status transitions. Optional.
	OnStatus func(text string)
	// OnMessage receives normalized incoming chat messages. Optional.
	OnMessage func(username, text string)
	// SafetyMargin is the remaining token lifetime below which a remote
	// validation is performed. Defaults to 2 minutes.
	SafetyMargin time.Duration
	// TransportDisabled marks the chat capability as unavailable; all
	// operations fail fast with ErrTransportDisabled.
	TransportDisabled bool
}

// connectAttempt is the future a connect attempt resolves exactly once, so
// probe waiters observe the outcome without polling.
type connectAttempt struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newAttempt() *connectAttempt {
	return &connectAttempt{done: make(chan struct{})}
}

func (a *connectAttempt) resolve(err error) {
	a.once.Do(func() {
		a.err = err
		close(a.done)
	})
}

// Manager keeps exactly one authenticated chat session alive at a time.
type Manager struct {
	dial      Dialer
	auth      *twitchapi.AuthClient
	persist   TokenPersister
	onStatus  func(string)
	onMessage func(string, string)
	margin    time.Duration
	disabled  bool

	mu      sync.Mutex
	state   State
	creds   *Credentials
	session Session
	attempt *connectAttempt
	ticket  *resolveTicket
}

// NewManager creates a Manager. It starts Disconnected with no active config.
func NewManager(opts Options) *Manager {
	m := &Manager{
		dial:      opts.Dial,
		auth:      opts.Auth,
		persist:   opts.Persist,
		onStatus:  opts.OnStatus,
		onMessage: opts.OnMessage,
		margin:    opts.SafetyMargin,
		disabled:  opts.TransportDisabled,
	}
	if m.dial == nil {
		m.dial = NewIRCDialer()
	}
	if m.auth == nil {
		m.auth = &twitchapi.AuthClient{}
	}
	if m.margin <= 0 {
		m.margin = 2 * time.Minute
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// UpdateConfig stores a new credential snapshot. An invalid snapshot tears
// down any live session and clears the active config; an unchanged valid one
// is a no-op; a changed valid one force-triggers a reconnect.
func (m *Manager) UpdateConfig(ctx context.Context, c Credentials) {
	if m.disabled {
		m.status("chat transport disabled; configuration ignored")
		return
	}
	c = c.Normalized()

	m.mu.Lock()
	if !c.Valid() {
		m.teardownLocked()
		m.creds = nil
		m.mu.Unlock()
		telemetry.UpdateConnectedGauge(false)
		m.status("chat configuration incomplete; chat disabled")
		return
	}
	if m.creds != nil && m.creds.Equal(c) {
		m.mu.Unlock()
		return
	}
	m.creds = &c
	m.mu.Unlock()

	_ = m.connect(ctx)
}

// EnsureConnected is the passive entry point: it no-ops while a session is
// pending or connected unless force is set.
func (m *Manager) EnsureConnected(ctx context.Context, force bool) error {
	if m.disabled {
		return ErrTransportDisabled
	}
	m.mu.Lock()
	if !force && (m.state == StatePending || m.state == StateConnected) {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()
	return m.connect(ctx)
}

// connect tears down any existing session, resolves a usable token, and opens
// a new session. Credential resolution failures revert to Disconnected
// without ever dialing.
func (m *Manager) connect(ctx context.Context) error {
	m.mu.Lock()
	m.teardownLocked()
	if m.creds == nil || !m.creds.Valid() {
		m.state = StateDisconnected
		m.mu.Unlock()
		m.status("chat configuration incomplete; chat disabled")
		return ErrInvalidConfig
	}
	creds := *m.creds
	attempt := newAttempt()
	m.attempt = attempt
	m.state = StatePending
	m.mu.Unlock()
	inc(telemetry.ConnectAttempts)

	token, err := m.resolveToken(ctx, false)
	if err != nil {
		m.mu.Lock()
		if m.attempt == attempt {
			m.attempt = nil
			m.state = StateDisconnected
		}
		m.mu.Unlock()
		attempt.resolve(err)
		inc(telemetry.ConnectFailures)
		m.status("chat connection failed: " + err.Error())
		return err
	}

	m.mu.Lock()
	if m.attempt != attempt {
		// A newer connect superseded this one while we resolved the token.
		m.mu.Unlock()
		return nil
	}
	sess := m.dial(SessionConfig{
		Username:  creds.Username,
		Channel:   sanitizeChannel(creds.Channel),
		Token:     token,
		Reconnect: true,
	})
	m.session = sess
	m.mu.Unlock()

	sess.Start(SessionHandlers{
		OnConnected:    func() { m.handleConnected(sess, attempt, creds) },
		OnDisconnected: func(reason string) { m.handleDisconnected(sess, attempt, reason) },
		OnMessage:      func(username, text string, self bool) { m.handleMessage(sess, username, text, self) },
	})
	return nil
}

// Disconnect clears any pending or connected state and tears down the live
// session best-effort. Idempotent; an optional reason is emitted as status.
func (m *Manager) Disconnect(reason string) {
	m.mu.Lock()
	m.teardownLocked()
	m.mu.Unlock()
	telemetry.UpdateConnectedGauge(false)
	if reason != "" {
		m.status(reason)
	}
}

// SendMessage relays text to the configured channel. It fails with
// ErrNoActiveSession unless the session is connected; the caller decides how
// to preserve the undelivered message.
func (m *Manager) SendMessage(text string) error {
	if m.disabled {
		return ErrTransportDisabled
	}
	m.mu.Lock()
	if m.state != StateConnected || m.session == nil || m.creds == nil {
		m.mu.Unlock()
		return ErrNoActiveSession
	}
	sess := m.session
	channel := sanitizeChannel(m.creds.Channel)
	m.mu.Unlock()
	return sess.Say(channel, text)
}

// CheckConnectivity validates the current configuration without disturbing a
// live session. With a valid config it either piggybacks on a pending connect
// attempt, reports success for a connected session, or opens an isolated
// throwaway probe session with reconnects disabled. The probe is always torn
// down; on success the real session is nudged to reconnect.
func (m *Manager) CheckConnectivity(ctx context.Context) error {
	if m.disabled {
		return ErrTransportDisabled
	}
	start := time.Now()
	defer func() {
		if telemetry.ProbeDuration != nil {
			telemetry.ProbeDuration.Observe(time.Since(start).Seconds())
		}
	}()

	m.mu.Lock()
	if m.creds == nil || !m.creds.Valid() {
		m.mu.Unlock()
		return ErrInvalidConfig
	}
	creds := *m.creds
	state := m.state
	attempt := m.attempt
	m.mu.Unlock()

	switch {
	case state == StateConnected:
		return nil
	case state == StatePending && attempt != nil:
		select {
		case <-attempt.done:
			return attempt.err
		case <-ctx.Done():
			return ErrProbeTimeout
		}
	}

	// Forced re-validation: never share a passive caller's ticket.
	token, err := m.resolveToken(ctx, true)
	if err != nil {
		return err
	}

	outcome := make(chan error, 2)
	probe := m.dial(SessionConfig{
		Username:  creds.Username,
		Channel:   sanitizeChannel(creds.Channel),
		Token:     token,
		Reconnect: false,
	})
	defer func() { _ = probe.Close() }()

	probe.Start(SessionHandlers{
		OnConnected: func() { outcome <- nil },
		OnDisconnected: func(reason string) {
			if reason == "" {
				reason = "unknown"
			}
			outcome <- fmt.Errorf("%w: %s", ErrSessionFailed, reason)
		},
	})

	select {
	case err := <-outcome:
		if err == nil {
			go func() { _ = m.EnsureConnected(context.Background(), false) }()
		}
		return err
	case <-ctx.Done():
		return ErrProbeTimeout
	}
}

func (m *Manager) handleConnected(sess Session, attempt *connectAttempt, creds Credentials) {
	m.mu.Lock()
	if m.session != sess {
		m.mu.Unlock()
		return
	}
	m.state = StateConnected
	if m.attempt == attempt {
		m.attempt = nil
	}
	m.mu.Unlock()
	attempt.resolve(nil)
	telemetry.UpdateConnectedGauge(true)
	m.status("connected to twitch chat " + sanitizeChannel(creds.Channel))
}

func (m *Manager) handleDisconnected(sess Session, attempt *connectAttempt, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.mu.Lock()
	if m.session != sess {
		m.mu.Unlock()
		return
	}
	wasPending := m.state == StatePending
	m.state = StateDisconnected
	if m.attempt == attempt {
		m.attempt = nil
	}
	m.mu.Unlock()
	attempt.resolve(fmt.Errorf("%w: %s", ErrSessionFailed, reason))
	telemetry.UpdateConnectedGauge(false)
	if wasPending {
		inc(telemetry.ConnectFailures)
		m.status("chat connection failed: " + reason)
		return
	}
	m.status("twitch chat disconnected: " + reason)
}

func (m *Manager) handleMessage(sess Session, username, text string, self bool) {
	if self {
		return
	}
	m.mu.Lock()
	stale := m.session != sess
	m.mu.Unlock()
	if stale || m.onMessage == nil {
		return
	}
	m.onMessage(username, text)
}

// teardownLocked disposes the current session handle and resolves any pending
// attempt as failed. Teardown errors are swallowed; they must never block the
// next state transition.
func (m *Manager) teardownLocked() {
	if m.session != nil {
		sess := m.session
		m.session = nil
		_ = sess.Close()
	}
	if m.attempt != nil {
		m.attempt.resolve(fmt.Errorf("%w: superseded", ErrSessionFailed))
		m.attempt = nil
	}
	m.state = StateDisconnected
}

func (m *Manager) status(text string) {
	if m.onStatus != nil && text != "" {
		m.onStatus(text)
	}
}

func (m *Manager) snapshotCreds() *Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds == nil {
		return nil
	}
	c := *m.creds
	return &c
}

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}
