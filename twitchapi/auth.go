// Package twitchapi contains minimal helpers to interact with the Twitch OAuth
// endpoints for user token validation and refresh-token exchange.
package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the production Twitch identity service.
const DefaultBaseURL = "https://id.twitch.tv"

// ErrTokenInvalid signals that the identity service explicitly rejected the
// access token. Any other failure mode (network, unexpected status) is soft and
// reported as a plain error.
var ErrTokenInvalid = errors.New("twitchapi: token invalid")

// AuthClient talks to the Twitch OAuth endpoints. The zero value uses the
// production base URL and http.DefaultClient.
type AuthClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (c *AuthClient) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *AuthClient) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// ValidateResult is the relevant subset of the /oauth2/validate response.
type ValidateResult struct {
	ClientID  string `json:"client_id"`
	Login     string `json:"login"`
	UserID    string `json:"user_id"`
	ExpiresIn int    `json:"expires_in"`
}

// Validate checks an access token against the identity service. A 401 response
// returns ErrTokenInvalid; any other non-200 status or transport failure
// returns an opaque error so callers can treat it as a soft failure.
func (c *AuthClient) Validate(ctx context.Context, accessToken string) (*ValidateResult, error) {
	if accessToken == "" {
		return nil, errors.New("twitchapi: empty access token")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/oauth2/validate", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "OAuth "+accessToken)
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrTokenInvalid
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("twitch validate failed: %s: %s", resp.Status, string(b))
	}
	var res ValidateResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RefreshResult carries the outcome of a refresh_token grant.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Refresh exchanges a refresh token for a new access token using the standard
// refresh_token grant.
func (c *AuthClient) Refresh(ctx context.Context, clientID, clientSecret, refreshToken string) (*RefreshResult, error) {
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, errors.New("twitchapi: missing clientID/clientSecret/refreshToken")
	}
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: c.base() + "/oauth2/token"},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http())
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			// Strip the raw body so token material never leaks into status text.
			return nil, fmt.Errorf("twitch refresh rejected: %s", rerr.Response.Status)
		}
		return nil, fmt.Errorf("twitch refresh failed: %w", err)
	}
	res := &RefreshResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if res.RefreshToken == "" {
		res.RefreshToken = refreshToken
	}
	if res.ExpiresAt.IsZero() {
		res.ExpiresAt = ComputeExpiry(0)
	}
	return res, nil
}

// ComputeExpiry returns absolute expiry time from seconds, defaulting to +60m when unknown.
func ComputeExpiry(seconds int) time.Time {
	if seconds <= 0 {
		return time.Now().Add(60 * time.Minute)
	}
	return time.Now().Add(time.Duration(seconds) * time.Second)
}
