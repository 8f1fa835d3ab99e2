package server

import "net/http"

// HandleHealthz responds to liveness probe requests. The broadcaster lives in
// process, so a reachable handler means the service is alive; chat
// connectivity is reported separately by /api/chat/status.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
