// Package settings persists the structured service settings record as a JSON
// file with simple read-modify-write semantics. It is the credential source
// for the chat lifecycle manager: every saved update is pushed to registered
// listeners as a fresh snapshot.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/onnwee/streambridge/commands"
)

// TwitchSettings is the chat identity section of the settings record. Either
// the long-lived OAuthToken or the AccessToken/RefreshToken pair is used;
// TokenExpiresAt is stored as RFC3339 text and may be absent or unparseable.
type TwitchSettings struct {
	Username       string `json:"username"`
	Channel        string `json:"channel"`
	ClientID       string `json:"clientId"`
	ClientSecret   string `json:"clientSecret"`
	OAuthToken     string `json:"oauthToken"`
	AccessToken    string `json:"accessToken"`
	RefreshToken   string `json:"refreshToken"`
	TokenExpiresAt string `json:"tokenExpiresAt"`
}

// Settings is the full persisted record.
type Settings struct {
	Twitch          TwitchSettings     `json:"twitch"`
	Minecraft       commands.GameTarget `json:"minecraft"`
	CommandMappings []commands.Mapping  `json:"commandMappings"`
}

func (s Settings) clone() Settings {
	out := s
	out.CommandMappings = make([]commands.Mapping, len(s.CommandMappings))
	copy(out.CommandMappings, s.CommandMappings)
	return out
}

// Store owns the settings file. All reads return copies; mutations go through
// Update which writes the file before publishing the new snapshot.
type Store struct {
	path string

	mu        sync.Mutex
	cur       Settings
	listeners []func(Settings)
}

// Open loads the settings file, falling back to an empty record when the file
// is missing or unreadable.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// first run
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	default:
		if err := json.Unmarshal(data, &s.cur); err != nil {
			slog.Warn("settings file unreadable, starting with defaults", slog.String("path", path), slog.Any("err", err))
			s.cur = Settings{}
		}
	}
	if s.cur.CommandMappings == nil {
		s.cur.CommandMappings = []commands.Mapping{}
	}
	if s.cur.Minecraft.RCONPort == 0 {
		s.cur.Minecraft.RCONPort = commands.DefaultRCONPort
	}
	return s, nil
}

// Get returns a snapshot copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.clone()
}

// OnUpdate registers a listener called with the new snapshot after every
// successful Update. Register before concurrent use; listeners run on the
// updating goroutine.
func (s *Store) OnUpdate(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Update applies mutate to a copy of the current settings, persists the
// result, then publishes it to listeners. The stored record is only replaced
// when the write succeeds.
func (s *Store) Update(mutate func(*Settings)) (Settings, error) {
	s.mu.Lock()
	next := s.cur.clone()
	mutate(&next)
	if err := s.write(next); err != nil {
		s.mu.Unlock()
		return Settings{}, err
	}
	s.cur = next
	snapshot := next.clone()
	listeners := make([]func(Settings), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return snapshot, nil
}

func (s *Store) write(v Settings) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return os.Rename(tmp, s.path)
}
