// Package server exposes the HTTP API: the live chat stream, history
// snapshot and local-send endpoints, the connectivity probe, and the settings
// endpoints used by the frontend. It includes permissive CORS for development
// and injects correlation IDs into request contexts for consistent logging.
package server

import (
	"time"

	"github.com/onnwee/streambridge/broadcast"
	"github.com/onnwee/streambridge/chat"
	"github.com/onnwee/streambridge/settings"
)

// Deps carries the collaborators the HTTP layer needs.
type Deps struct {
	Broadcaster *broadcast.Broadcaster
	Manager     *chat.Manager
	Store       *settings.Store
	// ProbeTimeout bounds the connectivity probe behind /api/chat/status.
	ProbeTimeout time.Duration
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	bc           *broadcast.Broadcaster
	mgr          *chat.Manager
	store        *settings.Store
	probeTimeout time.Duration
}

// NewHandlers creates a Handlers instance with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	h := &Handlers{
		bc:           deps.Broadcaster,
		mgr:          deps.Manager,
		store:        deps.Store,
		probeTimeout: deps.ProbeTimeout,
	}
	if h.probeTimeout <= 0 {
		h.probeTimeout = 8 * time.Second
	}
	return h
}
