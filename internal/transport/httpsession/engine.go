// Package httpsession implements the Streamable HTTP + SSE transport, per
// spec §4.5.
//
// Grounded on modelcontextprotocol-go-sdk's mcp/streamable.go for the
// overall shape (a session map keyed by the Mcp-Session-Id header, an SSE
// writer loop per logical connection) combined with the teacher's
// internal/adapter/inbound/http package conventions (small single-purpose
// files, constructor taking a logger and a metrics sink) and
// internal/domain/session for session bookkeeping, retargeted from
// authenticated gateway sessions to anonymous Streamable HTTP sessions.
package httpsession

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcphub/mcphubd/internal/domain/session"
)

// reapInterval is how often the idle-session reaper runs, per spec §4.5.
const reapInterval = 60 * time.Second

// allowedProtocolVersions is the set of MCP-Protocol-Version values this
// engine accepts, per spec §4.5/§6.
var allowedProtocolVersions = map[string]bool{
	"2025-06-18": true,
	"2025-03-26": true,
}

// allowedOriginHosts is the set of Origin hosts this engine accepts, per
// spec §4.5.
var allowedOriginHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

// Dispatcher is the subset of router.Router the engine depends on.
type Dispatcher interface {
	Dispatch(ctx context.Context, frame []byte) []byte
}

// Metrics receives session lifecycle and SSE events. A nil Metrics is
// valid; every call site here guards against it.
type Metrics interface {
	SessionOpened()
	SessionClosed()
	EventEmitted(kind string)
	ReplayTrimmed()
}

// Engine serves the Streamable HTTP /mcp endpoint, per spec §4.5.
type Engine struct {
	dispatcher Dispatcher
	store      *session.Store
	logger     *slog.Logger
	metrics    Metrics

	stopCh chan struct{}
}

// New creates an Engine. idleTimeout <= 0 uses session.DefaultIdleTimeout.
func New(dispatcher Dispatcher, logger *slog.Logger, metrics Metrics, idleTimeout time.Duration) *Engine {
	return &Engine{
		dispatcher: dispatcher,
		store:      session.NewStore(idleTimeout),
		logger:     logger,
		metrics:    metrics,
		stopCh:     make(chan struct{}),
	}
}

func (e *Engine) metricsOrNoop() Metrics {
	if e.metrics == nil {
		return noopMetrics{}
	}
	return e.metrics
}

// StartReaper runs the idle-session reaper in the background until ctx is
// canceled, per spec §4.5's 60s reaping interval.
func (e *Engine) StartReaper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(reapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := e.store.Reap(); n > 0 {
					e.logger.Info("reaped idle http sessions", "count", n)
					for i := 0; i < n; i++ {
						e.metricsOrNoop().SessionClosed()
					}
				}
			case <-ctx.Done():
				return
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop halts the reaper.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// ServeHTTP implements http.Handler for the single /mcp endpoint.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !checkProtocolVersion(r) {
		writeErrorStatus(w, http.StatusBadRequest, "protocol_mismatch", "Unsupported MCP-Protocol-Version", "")
		return
	}
	if !checkOrigin(r) {
		writeErrorStatus(w, http.StatusForbidden, "origin_forbidden", "Origin header failed validation", "")
		return
	}

	switch r.Method {
	case http.MethodPost:
		e.handlePost(w, r)
	case http.MethodGet:
		e.handleGet(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type noopMetrics struct{}

func (noopMetrics) SessionOpened()      {}
func (noopMetrics) SessionClosed()      {}
func (noopMetrics) EventEmitted(string) {}
func (noopMetrics) ReplayTrimmed()      {}
