package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestValidateOK(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/validate" {
			t.Errorf("path = %s, want /oauth2/validate", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"client_id":  "cid",
			"login":      "bot",
			"user_id":    "42",
			"expires_in": 5000,
		})
	}))
	defer srv.Close()

	c := &AuthClient{BaseURL: srv.URL}
	res, err := c.Validate(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if gotAuth != "OAuth tok" {
		t.Errorf("Authorization = %q, want OAuth tok", gotAuth)
	}
	if res.Login != "bot" || res.ExpiresIn != 5000 || res.UserID != "42" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestValidateUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := &AuthClient{BaseURL: srv.URL}
	_, err := c.Validate(context.Background(), "tok")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestValidateServerErrorIsSoft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &AuthClient{BaseURL: srv.URL}
	_, err := c.Validate(context.Background(), "tok")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if errors.Is(err, ErrTokenInvalid) {
		t.Fatal("500 must not be classified as token invalid")
	}
}

func TestValidateEmptyToken(t *testing.T) {
	c := &AuthClient{BaseURL: "http://127.0.0.1:0"}
	if _, err := c.Validate(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestRefreshOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/token" {
			t.Errorf("path = %s, want /oauth2/token", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if g := r.Form.Get("grant_type"); g != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", g)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"token_type":    "bearer",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	c := &AuthClient{BaseURL: srv.URL}
	res, err := c.Refresh(context.Background(), "cid", "csecret", "old-refresh")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.AccessToken != "new-access" || res.RefreshToken != "new-refresh" {
		t.Errorf("unexpected tokens: %+v", res)
	}
	// expires_in 3600 puts expiry roughly an hour out
	if until := time.Until(res.ExpiresAt); until < 55*time.Minute || until > 65*time.Minute {
		t.Errorf("expiry %v out of range", res.ExpiresAt)
	}
}

func TestRefreshKeepsOldRefreshTokenWhenOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-access",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	c := &AuthClient{BaseURL: srv.URL}
	res, err := c.Refresh(context.Background(), "cid", "csecret", "old-refresh")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.RefreshToken != "old-refresh" {
		t.Errorf("refresh token = %q, want old-refresh carried forward", res.RefreshToken)
	}
}

func TestRefreshRejectedStripsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant", "secret_echo": "old-refresh"})
	}))
	defer srv.Close()

	c := &AuthClient{BaseURL: srv.URL}
	_, err := c.Refresh(context.Background(), "cid", "csecret", "old-refresh")
	if err == nil {
		t.Fatal("expected error for rejected refresh")
	}
	if strings.Contains(err.Error(), "old-refresh") {
		t.Errorf("error leaks token material: %v", err)
	}
}

func TestRefreshMissingInputs(t *testing.T) {
	c := &AuthClient{BaseURL: "http://127.0.0.1:0"}
	if _, err := c.Refresh(context.Background(), "", "csecret", "rt"); err == nil {
		t.Fatal("expected error for missing client id")
	}
	if _, err := c.Refresh(context.Background(), "cid", "csecret", ""); err == nil {
		t.Fatal("expected error for missing refresh token")
	}
}

func TestComputeExpiry(t *testing.T) {
	if got := time.Until(ComputeExpiry(120)); got < 110*time.Second || got > 130*time.Second {
		t.Errorf("ComputeExpiry(120) = %v out, want ~2m", got)
	}
	if got := time.Until(ComputeExpiry(0)); got < 59*time.Minute || got > 61*time.Minute {
		t.Errorf("ComputeExpiry(0) = %v out, want ~60m default", got)
	}
}
