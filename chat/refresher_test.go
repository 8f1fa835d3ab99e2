package chat

import (
	"context"
	"testing"
	"time"

	"github.com/onnwee/streambridge/twitchapi"
)

func TestRefreshLoopExchangesInsideWindow(t *testing.T) {
	a := newAuthServer(t)
	exp := time.Now().Add(5 * time.Minute).UTC().Format(time.RFC3339)
	m := tokenManager(t, a, nil, refreshableCreds(exp))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartRefreshLoop(ctx, m, 50*time.Millisecond, 15*time.Minute)

	deadline := time.After(3 * time.Second)
	for {
		if _, r := a.counts(); r >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("refresh not attempted for token expiring within window")
		case <-time.After(20 * time.Millisecond):
		}
	}

	c := m.snapshotCreds()
	if c.AccessToken != "new-access" || c.RefreshToken != "new-refresh" {
		t.Errorf("credentials not updated after background refresh: %+v", c)
	}

	// The refreshed expiry is an hour out, beyond the window: the loop settles.
	_, before := a.counts()
	time.Sleep(250 * time.Millisecond)
	if _, after := a.counts(); after != before {
		t.Errorf("loop kept refreshing a fresh token: %d -> %d exchanges", before, after)
	}
}

func TestRefreshLoopSkipsOutsideWindow(t *testing.T) {
	a := newAuthServer(t)
	exp := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	m := tokenManager(t, a, nil, refreshableCreds(exp))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartRefreshLoop(ctx, m, 20*time.Millisecond, 15*time.Minute)

	time.Sleep(300 * time.Millisecond)
	if _, r := a.counts(); r != 0 {
		t.Errorf("refresh attempted %d times for token expiring in an hour with a 15m window", r)
	}
}

func TestRefreshLoopSkipsLegacyToken(t *testing.T) {
	a := newAuthServer(t)
	m := tokenManager(t, a, nil, legacyCreds())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartRefreshLoop(ctx, m, 20*time.Millisecond, 15*time.Minute)

	time.Sleep(250 * time.Millisecond)
	if v, r := a.counts(); v != 0 || r != 0 {
		t.Errorf("identity service reached (%d validate, %d refresh) for a legacy token", v, r)
	}
}

func TestRefreshLoopSkipsWithoutRefreshToken(t *testing.T) {
	a := newAuthServer(t)
	exp := time.Now().Add(time.Minute).UTC().Format(time.RFC3339)
	c := refreshableCreds(exp)
	c.RefreshToken = ""
	m := tokenManager(t, a, nil, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartRefreshLoop(ctx, m, 20*time.Millisecond, 15*time.Minute)

	time.Sleep(250 * time.Millisecond)
	if _, r := a.counts(); r != 0 {
		t.Errorf("refresh attempted %d times without a refresh token", r)
	}
}

func TestRefreshLoopStopsOnCancel(t *testing.T) {
	a := newAuthServer(t)
	exp := time.Now().Add(time.Minute).UTC().Format(time.RFC3339)
	m := tokenManager(t, a, nil, refreshableCreds(exp))

	ctx, cancel := context.WithCancel(context.Background())
	StartRefreshLoop(ctx, m, 30*time.Millisecond, 15*time.Minute)
	cancel()

	time.Sleep(100 * time.Millisecond)
	_, before := a.counts()
	time.Sleep(200 * time.Millisecond)
	if _, after := a.counts(); after != before {
		t.Errorf("loop still exchanging after cancellation: %d -> %d", before, after)
	}
}

func TestRefreshLoopDisabledTransport(t *testing.T) {
	a := newAuthServer(t)
	m := NewManager(Options{
		Dial:              (&fakeDialer{}).dial,
		Auth:              &twitchapi.AuthClient{BaseURL: a.srv.URL},
		TransportDisabled: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartRefreshLoop(ctx, m, 10*time.Millisecond, 15*time.Minute)

	time.Sleep(150 * time.Millisecond)
	if v, r := a.counts(); v != 0 || r != 0 {
		t.Errorf("identity service reached (%d validate, %d refresh) with transport disabled", v, r)
	}
}
