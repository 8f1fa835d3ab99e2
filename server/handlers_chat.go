package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/onnwee/streambridge/broadcast"
	"github.com/onnwee/streambridge/chat"
	"github.com/onnwee/streambridge/telemetry"
)

// HandleChatStream streams history replay plus live chat entries over
// Server-Sent Events. Clear signals arrive as a separate "clear" event type.
func (h *Handlers) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := h.bc.Subscribe()
	defer h.bc.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ctx := r.Context()
	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-sub.C:
			if !open {
				return
			}
			if ev.Kind == broadcast.EventClear {
				if _, err := w.Write([]byte("event: clear\ndata: {}\n\n")); err != nil {
					return
				}
				flusher.Flush()
				continue
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if err := enc.Encode(ev.Entry); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HandleChatHistory returns the current history snapshot in append order.
func (h *Handlers) HandleChatHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.bc.History())
}

// HandleChatClear empties history and signals subscribers to reset.
func (h *Handlers) HandleChatClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.bc.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// HandleChatSend accepts a local chat entry. Outgoing entries on the live
// transport are additionally relayed to the remote service; when the relay
// fails the entry
// is still stored (flagged as queued) and a system notice follows it, so an
// outbound message is never silently dropped.
func (h *Handlers) HandleChatSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var raw broadcast.RawEntry
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if raw.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	entry := h.bc.Normalize(raw)
	var sendErr error
	if entry.Direction == broadcast.DirectionOutgoing && entry.Transport == h.bc.DefaultTransport() {
		if sendErr = h.mgr.SendMessage(entry.Message); sendErr != nil {
			entry.Queued = true
			if telemetry.SendFailures != nil {
				telemetry.SendFailures.Inc()
			}
		}
	}
	h.bc.Append(entry)
	if sendErr != nil {
		h.bc.Append(h.bc.Normalize(broadcast.RawEntry{
			Username:  "system",
			Message:   "message not delivered: " + sendErr.Error(),
			Direction: string(broadcast.DirectionSystem),
			Transport: entry.Transport,
		}))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(entry)
}

// HandleChatStatus runs the non-disruptive connectivity probe.
func (h *Handlers) HandleChatStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.probeTimeout)
	defer cancel()

	status := "connected"
	message := "chat connection established"
	switch err := h.mgr.CheckConnectivity(ctx); {
	case err == nil:
	case errors.Is(err, chat.ErrInvalidConfig), errors.Is(err, chat.ErrTransportDisabled):
		status = "unconfigured"
		message = err.Error()
	default:
		status = "offline"
		message = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
