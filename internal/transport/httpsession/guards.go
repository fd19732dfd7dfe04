package httpsession

import (
	"encoding/json"
	"net/http"
	"net/url"
)

// checkProtocolVersion enforces spec §4.5: if MCP-Protocol-Version is
// present it must be one of allowedProtocolVersions; absent is accepted.
func checkProtocolVersion(r *http.Request) bool {
	v := r.Header.Get("MCP-Protocol-Version")
	if v == "" {
		return true
	}
	return allowedProtocolVersions[v]
}

// checkOrigin enforces spec §4.5: if Origin is present it must parse to a
// host in allowedOriginHosts (any port), or be the literal "null".
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return allowedOriginHosts[u.Hostname()]
}

// errorBody mirrors the data.{type,server} shape of internal/jsonrpc's
// error frames, for HTTP-level guard failures that precede any JSON-RPC
// parse attempt (and so have no id to echo).
type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Server  string `json:"server,omitempty"`
}

// writeErrorStatus writes a JSON error body with the given HTTP status,
// per spec §7's "session-level errors are surfaced as HTTP 4xx."
func writeErrorStatus(w http.ResponseWriter, status int, kind, message, server string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Message: message, Type: kind, Server: server})
}
