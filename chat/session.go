package chat

// SessionConfig describes one chat session to open. Channel carries its
// leading '#'; Token is the bare OAuth token without transport prefix.
// Probe sessions set Reconnect to false so a throwaway connection never
// lingers past its attempt.
type SessionConfig struct {
	Username  string
	Channel   string
	Token     string
	Reconnect bool
}

// SessionHandlers receive session events. A handler may be nil. After Close
// no handler fires again.
type SessionHandlers struct {
	OnConnected    func()
	OnDisconnected func(reason string)
	OnMessage      func(username, text string, self bool)
}

// Session is the external chat-client capability boundary: one live
// authenticated connection to the remote chat service.
type Session interface {
	// Start registers handlers and begins connecting asynchronously.
	Start(h SessionHandlers)
	// Say relays text to the given channel. Valid only while connected.
	Say(channel, text string) error
	// Close tears the session down best-effort and detaches all handlers.
	Close() error
}

// Dialer creates sessions. Production uses NewIRCDialer; tests inject fakes.
type Dialer func(cfg SessionConfig) Session
