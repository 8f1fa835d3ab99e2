package chat

import (
	"strings"
	"time"
)

// Credentials is an immutable snapshot of one chat identity. Either the
// long-lived LegacyToken or the AccessToken/RefreshToken pair is used for
// authentication; TokenExpiresAt holds an RFC3339 timestamp and may be empty
// or unparseable.
type Credentials struct {
	Username       string
	Channel        string
	LegacyToken    string
	AccessToken    string
	RefreshToken   string
	ClientID       string
	ClientSecret   string
	TokenExpiresAt string
}

// Normalized returns a copy with all string fields trimmed.
func (c Credentials) Normalized() Credentials {
	return Credentials{
		Username:       strings.TrimSpace(c.Username),
		Channel:        strings.TrimSpace(c.Channel),
		LegacyToken:    strings.TrimSpace(c.LegacyToken),
		AccessToken:    strings.TrimSpace(c.AccessToken),
		RefreshToken:   strings.TrimSpace(c.RefreshToken),
		ClientID:       strings.TrimSpace(c.ClientID),
		ClientSecret:   strings.TrimSpace(c.ClientSecret),
		TokenExpiresAt: strings.TrimSpace(c.TokenExpiresAt),
	}
}

// Valid reports whether the snapshot can authenticate a session: username and
// channel present plus at least one usable token.
func (c Credentials) Valid() bool {
	return c.Username != "" && c.Channel != "" && (c.LegacyToken != "" || c.AccessToken != "")
}

// Equal compares the identity and token fields that decide whether a
// reconnect is needed. Client id/secret and the expiry timestamp are
// deliberately excluded so a persisted expiry update never forces a
// redundant reconnect.
func (c Credentials) Equal(o Credentials) bool {
	return c.Username == o.Username &&
		c.Channel == o.Channel &&
		c.LegacyToken == o.LegacyToken &&
		c.AccessToken == o.AccessToken &&
		c.RefreshToken == o.RefreshToken
}

// parseExpiry reports the parsed expiry and whether it was present and valid.
func parseExpiry(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// sanitizeChannel ensures the IRC channel carries its leading '#'.
func sanitizeChannel(channel string) string {
	if channel == "" {
		return ""
	}
	if strings.HasPrefix(channel, "#") {
		return channel
	}
	return "#" + channel
}

// sanitizeToken strips the transport prefix from a stored legacy token.
func sanitizeToken(token string) string {
	return strings.TrimPrefix(token, "oauth:")
}
