package chat

import (
	"testing"
	"time"
)

func TestCredentialsValid(t *testing.T) {
	cases := []struct {
		name string
		c    Credentials
		want bool
	}{
		{"legacy token", Credentials{Username: "bot", Channel: "chan", LegacyToken: "tok"}, true},
		{"access token", Credentials{Username: "bot", Channel: "chan", AccessToken: "tok"}, true},
		{"no token", Credentials{Username: "bot", Channel: "chan"}, false},
		{"no channel", Credentials{Username: "bot", LegacyToken: "tok"}, false},
		{"no username", Credentials{Channel: "chan", LegacyToken: "tok"}, false},
		{"empty", Credentials{}, false},
	}
	for _, c := range cases {
		if got := c.c.Valid(); got != c.want {
			t.Errorf("%s: Valid() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestCredentialsEqualIgnoresExpiryAndClientCreds(t *testing.T) {
	a := Credentials{Username: "bot", Channel: "chan", AccessToken: "t", RefreshToken: "r", ClientID: "c1", TokenExpiresAt: "2026-01-01T00:00:00Z"}
	b := a
	b.TokenExpiresAt = "2026-06-01T00:00:00Z"
	b.ClientID = "c2"
	b.ClientSecret = "s2"
	if !a.Equal(b) {
		t.Error("expiry/client-cred changes must not count as a config change")
	}

	c := a
	c.AccessToken = "other"
	if a.Equal(c) {
		t.Error("access token change must count as a config change")
	}
	d := a
	d.Channel = "other"
	if a.Equal(d) {
		t.Error("channel change must count as a config change")
	}
}

func TestNormalizedTrims(t *testing.T) {
	c := Credentials{Username: " bot ", Channel: "\tchan\n", AccessToken: " tok "}.Normalized()
	if c.Username != "bot" || c.Channel != "chan" || c.AccessToken != "tok" {
		t.Errorf("not trimmed: %+v", c)
	}
}

func TestSanitizeChannel(t *testing.T) {
	if got := sanitizeChannel("chan"); got != "#chan" {
		t.Errorf("sanitizeChannel(chan) = %q", got)
	}
	if got := sanitizeChannel("#chan"); got != "#chan" {
		t.Errorf("sanitizeChannel(#chan) = %q", got)
	}
	if got := sanitizeChannel(""); got != "" {
		t.Errorf("sanitizeChannel() = %q", got)
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := sanitizeToken("oauth:abc"); got != "abc" {
		t.Errorf("sanitizeToken(oauth:abc) = %q", got)
	}
	if got := sanitizeToken("abc"); got != "abc" {
		t.Errorf("sanitizeToken(abc) = %q", got)
	}
}

func TestParseExpiry(t *testing.T) {
	if _, ok := parseExpiry(""); ok {
		t.Error("empty expiry parsed")
	}
	if _, ok := parseExpiry("soon"); ok {
		t.Error("garbage expiry parsed")
	}
	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got, ok := parseExpiry("2026-01-02T03:04:05Z")
	if !ok || !got.Equal(want) {
		t.Errorf("parseExpiry = %v %v, want %v true", got, ok, want)
	}
}
