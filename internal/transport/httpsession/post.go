package httpsession

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/mcphub/mcphubd/internal/domain/session"
	"github.com/mcphub/mcphubd/internal/jsonrpc"
)

// streamingMethods is the explicit method set spec §4.5 names for "smart
// response selection"; any notifications/* method also streams.
var streamingMethods = map[string]bool{
	"initialize":              true,
	"initialized":             true,
	"sampling/createMessage":  true,
	"roots/list_changed":      true,
	"notifications/cancelled": true,
	"notifications/progress":  true,
}

func isStreamingMethod(method string) bool {
	return streamingMethods[method] || strings.HasPrefix(method, "notifications/")
}

// handlePost implements spec §4.5's POST /mcp smart response selection.
func (e *Engine) handlePost(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/json") {
		writeErrorStatus(w, http.StatusUnsupportedMediaType, "internal_error", "Content-Type must be application/json", "")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "parse_error", "failed to read request body", "")
		return
	}

	frame, err := jsonrpc.Parse(body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(jsonrpc.BuildErrorFrame(nil, jsonrpc.NewRouterError(jsonrpc.KindParseError, "", err.Error())))
		return
	}

	sess, created, err := e.resolveSession(r, frame)
	if err != nil {
		writeErrorStatus(w, http.StatusNotFound, "session_not_found", "HTTP session not found or expired", "")
		return
	}
	sess.Touch()
	if name, ok := frame.TargetServerName(); ok {
		sess.BindServer(name)
	}

	if created {
		w.Header().Set("Mcp-Session-Id", sess.ID)
	}

	if isStreamingMethod(frame.Method) {
		e.serveStreamingPost(w, r, sess, body)
		return
	}

	reply := e.dispatcher.Dispatch(r.Context(), body)
	w.Header().Set("Content-Type", "application/json")
	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(reply)
}

// resolveSession implements spec §4.5's session resolution: an existing
// Mcp-Session-Id must resolve or the request fails session_not_found; an
// absent header is only accepted when the method is "initialize", which
// implicitly creates a session.
func (e *Engine) resolveSession(r *http.Request, frame *jsonrpc.Frame) (sess *session.Session, created bool, err error) {
	if id := r.Header.Get("Mcp-Session-Id"); id != "" {
		sess, err := e.store.Get(id)
		return sess, false, err
	}
	if frame.Method != "initialize" {
		return nil, false, session.ErrSessionNotFound
	}
	sess = session.New()
	e.store.Create(sess)
	e.metricsOrNoop().SessionOpened()
	return sess, true, nil
}

// serveStreamingPost implements spec §4.5's streaming POST response: an
// immediately-opened SSE stream carrying a session event, then the
// dispatched reply (or error), emitted as the backend responds.
func (e *Engine) serveStreamingPost(w http.ResponseWriter, r *http.Request, sess *session.Session, body []byte) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, "internal_error", "streaming unsupported by this connection", "")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := sess.Attach()
	defer sess.Detach(ch)

	// Emit queues the session event on ch, so streamEvents below writes it
	// first, ahead of the dispatched reply.
	sess.Emit(session.KindSession, fmt.Sprintf(`{"sessionId":%q}`, sess.ID), e.metricsOrNoop().ReplayTrimmed, nil)

	go func() {
		reply := e.dispatcher.Dispatch(r.Context(), body)
		if reply == nil {
			return
		}
		var probe struct {
			Error json.RawMessage `json:"error"`
		}
		_ = json.Unmarshal(reply, &probe)
		if probe.Error != nil {
			sess.Emit(session.KindError, string(reply), e.metricsOrNoop().ReplayTrimmed, nil)
		} else {
			sess.Emit(session.KindData, string(reply), e.metricsOrNoop().ReplayTrimmed, nil)
		}
	}()

	streamEvents(r.Context(), w, flusher, ch, e.metricsOrNoop())
}

// streamEvents writes every event received on ch as an SSE frame until the
// request context is canceled (client disconnect) or ch is closed (session
// replaced or dropped).
func streamEvents(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, ch <-chan session.BufferedEvent, m Metrics) {
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
			m.EventEmitted(string(ev.Kind))
		case <-ctx.Done():
			return
		}
	}
}

// writeSSE renders one BufferedEvent as an SSE frame, per spec §6: id,
// optional event, and a single-line JSON-RPC object as data.
func writeSSE(w http.ResponseWriter, ev session.BufferedEvent) {
	fmt.Fprintf(w, "id: %s\n", strconv.FormatUint(ev.ID, 10))
	if ev.Kind != session.KindData {
		fmt.Fprintf(w, "event: %s\n", ev.Kind)
	}
	fmt.Fprintf(w, "data: %s\n\n", ev.Payload)
}
