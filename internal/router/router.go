// Package router resolves a JSON-RPC frame's target backend and forwards it
// through a Supervisor, per spec §4.3.
//
// Grounded on internal/domain/proxy/upstream_router.go from the teacher
// repo: that file parses the incoming frame, resolves an upstream by name,
// and hand-builds a JSON-RPC error envelope on failure rather than relying
// on the MCP go-sdk's jsonrpc.Response (whose ID field does not marshal
// correctly through an interface{} — see that file's own comment on
// message.go). internal/jsonrpc mirrors this by construction.
package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mcphub/mcphubd/internal/domain/backend"
	"github.com/mcphub/mcphubd/internal/jsonrpc"
)

// Supervisor is the subset of supervisor.Supervisor the Router depends on.
type Supervisor interface {
	Route(ctx context.Context, name string, frame []byte) ([]byte, *jsonrpc.RouterError)
	Notify(ctx context.Context, name string, frame []byte) *jsonrpc.RouterError
}

// Router dispatches one frame at a time to its resolved backend.
type Router struct {
	supervisor Supervisor
	logger     *slog.Logger
}

// New creates a Router forwarding through supervisor.
func New(supervisor Supervisor, logger *slog.Logger) *Router {
	return &Router{supervisor: supervisor, logger: logger}
}

// Dispatch resolves frameBytes' target backend and forwards it, per spec
// §4.3. It returns nil for a notification that forwarded successfully
// (per §6, notifications receive no reply); transports must treat a nil
// return as "write nothing back," not as an error.
func (r *Router) Dispatch(ctx context.Context, frameBytes []byte) []byte {
	frame, err := jsonrpc.Parse(frameBytes)
	if err != nil {
		return jsonrpc.BuildErrorFrame(nil, jsonrpc.NewRouterError(jsonrpc.KindParseError, "", err.Error()))
	}

	name, forward, rerr := resolve(frame)
	if rerr != nil {
		return jsonrpc.BuildErrorFrame(frame.ID, rerr)
	}

	if frame.IsNotification() {
		if rerr := r.supervisor.Notify(ctx, name, forward); rerr != nil {
			r.logger.Warn("notification delivery failed", "backend", name, "error", rerr)
		}
		return nil
	}

	reply, rerr := r.supervisor.Route(ctx, name, forward)
	if rerr != nil {
		return jsonrpc.BuildErrorFrame(frame.ID, rerr)
	}
	return reply
}

// resolve implements spec §4.3's name resolution order and returns the
// frame bytes to forward (method-rewritten when resolved via prefix form).
func resolve(frame *jsonrpc.Frame) (name string, forward []byte, rerr *jsonrpc.RouterError) {
	if server, ok := frame.ServerParam(); ok {
		if err := backend.ValidateName(server); err != nil {
			return "", nil, jsonrpc.NewRouterError(jsonrpc.KindServerNotFound, server, "")
		}
		return server, frame.Raw, nil
	}

	if prefix, rest, ok := splitMethodPrefix(frame.Method); ok {
		if err := backend.ValidateName(prefix); err != nil {
			return "", nil, jsonrpc.NewRouterError(jsonrpc.KindServerNotFound, prefix, "")
		}
		rewritten, err := frame.WithMethod(rest)
		if err != nil {
			return "", nil, jsonrpc.NewRouterError(jsonrpc.KindInternalError, prefix, err.Error())
		}
		return prefix, rewritten, nil
	}

	return "", nil, jsonrpc.NewRouterError(jsonrpc.KindServerNotFound, "", "")
}

// splitMethodPrefix splits "alpha/tools/list" into ("alpha", "tools/list").
// ok is false if method contains no "/".
func splitMethodPrefix(method string) (prefix, rest string, ok bool) {
	i := strings.IndexByte(method, '/')
	if i < 0 {
		return "", "", false
	}
	return method[:i], method[i+1:], true
}
