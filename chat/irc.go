package chat

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

const (
	reconnectBackoffMin = time.Second
	reconnectBackoffMax = 30 * time.Second
)

// NewIRCDialer returns the production dialer backed by go-twitch-irc.
func NewIRCDialer() Dialer {
	return func(cfg SessionConfig) Session {
		return &ircSession{cfg: cfg, done: make(chan struct{})}
	}
}

// ircSession adapts one go-twitch-irc client to the Session boundary. When
// the config asks for reconnects it re-dials with exponential backoff until
// closed; each drop still surfaces as a disconnected event.
type ircSession struct {
	cfg  SessionConfig
	done chan struct{}
	h    SessionHandlers

	mu     sync.Mutex
	client *twitch.Client
	closed bool
}

func (s *ircSession) Start(h SessionHandlers) {
	s.h = h
	go s.run()
}

func (s *ircSession) run() {
	backoff := reconnectBackoffMin
	for {
		if s.isClosed() {
			return
		}
		client := twitch.NewClient(s.cfg.Username, "oauth:"+sanitizeToken(s.cfg.Token))
		client.OnConnect(func() {
			if s.isClosed() || s.h.OnConnected == nil {
				return
			}
			s.h.OnConnected()
		})
		client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
			if s.isClosed() || s.h.OnMessage == nil {
				return
			}
			name := msg.User.DisplayName
			if name == "" {
				name = msg.User.Name
			}
			self := strings.EqualFold(msg.User.Name, s.cfg.Username)
			s.h.OnMessage(name, msg.Message, self)
		})
		client.Join(strings.TrimPrefix(s.cfg.Channel, "#"))

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.client = client
		s.mu.Unlock()

		err := client.Connect()

		s.mu.Lock()
		s.client = nil
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}

		reason := "unknown"
		if err != nil {
			reason = err.Error()
		}
		if s.h.OnDisconnected != nil {
			s.h.OnDisconnected(reason)
		}
		if !s.cfg.Reconnect {
			return
		}

		select {
		case <-s.done:
			return
		case <-time.After(backoff):
		}
		if backoff < reconnectBackoffMax {
			backoff *= 2
		}
	}
}

func (s *ircSession) Say(channel, text string) error {
	s.mu.Lock()
	client := s.client
	closed := s.closed
	s.mu.Unlock()
	if closed || client == nil {
		return errors.New("chat session not open")
	}
	client.Say(strings.TrimPrefix(channel, "#"), text)
	return nil
}

func (s *ircSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	client := s.client
	s.mu.Unlock()
	if client != nil {
		if err := client.Disconnect(); err != nil {
			slog.Debug("chat session teardown", slog.Any("err", err))
			return err
		}
	}
	return nil
}

func (s *ircSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
