package chat

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// StartRefreshLoop launches a goroutine that keeps the stored access token
// fresh so the outbound credential stays continuously authenticated even
// while the session is idle. It performs jittered checks and exchanges the
// refresh token when remaining lifetime falls within the window.
//
// interval: how often to wake up and check.
// window: refresh when remaining lifetime <= window.
func StartRefreshLoop(ctx context.Context, m *Manager, interval, window time.Duration) {
	if m.disabled {
		return
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	// Randomize initial delay to spread load across instances.
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initialJitter := time.Duration(rand.Int63n(int64(interval / 2)))
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialJitter):
		}
		for {
			// Per-iteration jitter (±20% of interval) for scheduling diversity.
			jitterRange := int64(interval / 5)
			//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
			jitter := time.Duration(rand.Int63n(jitterRange*2) - jitterRange)
			nextSleep := interval + jitter
			if nextSleep < interval/2 {
				nextSleep = interval / 2
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(nextSleep):
			}

			creds := m.snapshotCreds()
			if creds == nil || creds.LegacyToken != "" || !creds.refreshable() {
				continue
			}
			if exp, ok := parseExpiry(creds.TokenExpiresAt); ok && time.Until(exp) > window {
				continue
			}
			ctx2, cancel := context.WithTimeout(ctx, 15*time.Second)
			_, err := m.exchangeRefresh(ctx2, *creds)
			cancel()
			if err != nil {
				slog.Warn("background token refresh failed", slog.Any("err", err))
			}
		}
	}()
}
