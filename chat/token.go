package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/streambridge/telemetry"
	"github.com/onnwee/streambridge/twitchapi"
)

// resolveTicket is the shared future for one in-flight credential resolution.
// At most one ticket exists at a time; concurrent passive callers wait on the
// same ticket instead of triggering independent refreshes.
type resolveTicket struct {
	done  chan struct{}
	token string
	err   error
}

// resolveToken produces a usable outbound token for the current credentials.
//
// A configured legacy token short-circuits everything. Otherwise the cached
// access token is reused while its expiry is comfortably beyond the safety
// margin; stale or unknown expiries go through remote validation and, when
// the token is rejected, a refresh-token exchange. Passive callers share one
// outstanding ticket; forced callers always resolve independently and never
// wait on a passive ticket.
func (m *Manager) resolveToken(ctx context.Context, force bool) (string, error) {
	creds := m.snapshotCreds()
	if creds == nil || !creds.Valid() {
		return "", ErrInvalidConfig
	}
	if creds.LegacyToken != "" {
		return sanitizeToken(creds.LegacyToken), nil
	}
	if creds.AccessToken == "" {
		return "", ErrNoToken
	}

	if force {
		return m.resolveOnce(ctx, *creds, true)
	}

	if exp, ok := parseExpiry(creds.TokenExpiresAt); ok && time.Until(exp) > m.margin {
		return creds.AccessToken, nil
	}

	m.mu.Lock()
	if t := m.ticket; t != nil {
		m.mu.Unlock()
		select {
		case <-t.done:
			return t.token, t.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	t := &resolveTicket{done: make(chan struct{})}
	m.ticket = t
	m.mu.Unlock()

	token, err := m.resolveOnce(ctx, *creds, false)
	t.token, t.err = token, err
	m.mu.Lock()
	if m.ticket == t {
		// Never cache negatively: the next resolution gets a fresh ticket.
		m.ticket = nil
	}
	m.mu.Unlock()
	close(t.done)
	return token, err
}

// resolveOnce performs one validation round-trip and, when needed, one
// refresh exchange.
func (m *Manager) resolveOnce(ctx context.Context, creds Credentials, forced bool) (string, error) {
	res, err := m.auth.Validate(ctx, creds.AccessToken)
	if err != nil && !errors.Is(err, twitchapi.ErrTokenInvalid) {
		// Soft failure: the validation endpoint is unreachable or answered
		// with something unexpected. Proceed optimistically with the stored
		// token and surface the uncertainty.
		slog.Warn("token validation unreachable; reusing stored token", slog.Bool("forced", forced), slog.Any("err", err))
		m.status("token validation unreachable; using stored token")
		return creds.AccessToken, nil
	}

	if err == nil {
		remaining := time.Duration(res.ExpiresIn) * time.Second
		if remaining > m.margin {
			m.persistTokens(creds.AccessToken, creds.RefreshToken, time.Now().Add(remaining), res.Login)
			return creds.AccessToken, nil
		}
		// Valid but about to expire: refresh when possible, otherwise reuse
		// what little lifetime remains.
		if !creds.refreshable() {
			return creds.AccessToken, nil
		}
		token, rerr := m.exchangeRefresh(ctx, creds)
		if rerr != nil {
			m.status("token refresh failed; using stored token while it lasts")
			return creds.AccessToken, nil
		}
		return token, nil
	}

	// Explicitly invalid.
	if !creds.refreshable() {
		m.status("chat token invalid; please re-enter credentials")
		return "", ErrUnrefreshable
	}
	token, rerr := m.exchangeRefresh(ctx, creds)
	if rerr != nil {
		return "", rerr
	}
	return token, nil
}

// exchangeRefresh performs the refresh-token grant and persists the outcome.
func (m *Manager) exchangeRefresh(ctx context.Context, creds Credentials) (string, error) {
	ref, err := m.auth.Refresh(ctx, creds.ClientID, creds.ClientSecret, creds.RefreshToken)
	if err != nil {
		inc(telemetry.TokenRefreshFailures)
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	inc(telemetry.TokenRefreshes)
	m.persistTokens(ref.AccessToken, ref.RefreshToken, ref.ExpiresAt, "")
	m.status("twitch token refreshed")
	return ref.AccessToken, nil
}

func (c Credentials) refreshable() bool {
	return c.RefreshToken != "" && c.ClientID != "" && c.ClientSecret != ""
}

// persistTokens updates the in-memory snapshot first, then writes through to
// the credential source. The source's change notification will compare equal
// against the updated snapshot, so no redundant reconnect fires.
func (m *Manager) persistTokens(accessToken, refreshToken string, expiresAt time.Time, login string) {
	m.mu.Lock()
	if m.creds != nil {
		m.creds.AccessToken = accessToken
		if refreshToken != "" {
			m.creds.RefreshToken = refreshToken
		}
		m.creds.TokenExpiresAt = expiresAt.UTC().Format(time.RFC3339)
		if login != "" && m.creds.Username == "" {
			m.creds.Username = login
		}
	}
	m.mu.Unlock()

	if m.persist == nil {
		return
	}
	if err := m.persist.PersistTokens(accessToken, refreshToken, expiresAt, login); err != nil {
		slog.Warn("token persist failed", slog.Any("err", err))
	}
}
