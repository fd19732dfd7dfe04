package httpsession

import (
	"net/http"
	"strconv"
)

// handleGet implements spec §4.5's GET /mcp SSE pull: requires an existing
// session, optionally replays buffered events newer than Last-Event-ID,
// then attaches as the session's live sender.
func (e *Engine) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get("Mcp-Session-Id")
	if id == "" {
		writeErrorStatus(w, http.StatusNotFound, "session_not_found", "HTTP session not found or expired", "")
		return
	}
	sess, err := e.store.Get(id)
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "session_not_found", "HTTP session not found or expired", "")
		return
	}
	sess.Touch()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, "internal_error", "streaming unsupported by this connection", "")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if lastEventIDStr := r.Header.Get("Last-Event-ID"); lastEventIDStr != "" {
		lastEventID, err := strconv.ParseUint(lastEventIDStr, 10, 64)
		if err == nil {
			for _, ev := range sess.ReplaySince(lastEventID) {
				writeSSE(w, ev)
			}
			flusher.Flush()
		}
	}

	ch := sess.Attach()
	defer sess.Detach(ch)
	streamEvents(r.Context(), w, flusher, ch, e.metricsOrNoop())
}
