// Package jsonrpc provides frame parsing, name resolution helpers, and the
// error taxonomy shared by the router, the supervisor, and both transports.
package jsonrpc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Frame wraps one decoded JSON-RPC 2.0 message together with its raw bytes.
// Raw is kept around so a frame can be forwarded to a backend byte-for-byte
// when no rewriting is needed, and so the original request ID can be echoed
// without round-tripping it through a Go value (see ID).
type Frame struct {
	Raw json.RawMessage

	// Decoded fields, valid only when parse succeeded.
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

// ErrNotJSONRPC2 is returned by Parse when the "jsonrpc" field is missing or
// not exactly "2.0".
var ErrNotJSONRPC2 = fmt.Errorf("not a JSON-RPC 2.0 message")

// Parse decodes a single newline-delimited JSON-RPC frame. It requires the
// "jsonrpc" field to be exactly "2.0"; anything else is a parse_error per
// spec §4.3 step 1.
func Parse(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if f.Version != "2.0" {
		return nil, ErrNotJSONRPC2
	}
	f.Raw = json.RawMessage(raw)
	return &f, nil
}

// IsNotification reports whether the frame carries no id — a notification
// never receives a reply per spec §6.
func (f *Frame) IsNotification() bool {
	return len(f.ID) == 0 || string(f.ID) == "null"
}

// ServerParam extracts params.server when present and is a JSON string.
// Returns ok=false if params is absent, not an object, or lacks a string
// "server" field.
func (f *Frame) ServerParam() (name string, ok bool) {
	if len(f.Params) == 0 {
		return "", false
	}
	var p struct {
		Server string `json:"server"`
	}
	if err := json.Unmarshal(f.Params, &p); err != nil {
		return "", false
	}
	if p.Server == "" {
		return "", false
	}
	return p.Server, true
}

// TargetServerName best-effort extracts the backend name this frame would
// resolve to, per spec §4.3's name resolution steps 2-3 (params.server, or
// the method-prefix form) — without the validation or method-rewriting a
// full Router.Dispatch performs. It is used by the HTTP session engine to
// bind a session's server_name per spec §3, independently of whether the
// frame ultimately routes successfully.
func (f *Frame) TargetServerName() (name string, ok bool) {
	if server, ok := f.ServerParam(); ok {
		return server, true
	}
	if i := strings.IndexByte(f.Method, '/'); i >= 0 {
		return f.Method[:i], true
	}
	return "", false
}

// WithMethod returns a copy of the raw frame bytes with "method" rewritten
// to newMethod, used when resolving the method-prefix routing form
// ("alpha/tools/list" -> backend "alpha", method "tools/list").
func (f *Frame) WithMethod(newMethod string) ([]byte, error) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(f.Raw, &generic); err != nil {
		return nil, fmt.Errorf("rewrite method: %w", err)
	}
	encodedMethod, err := json.Marshal(newMethod)
	if err != nil {
		return nil, err
	}
	generic["method"] = encodedMethod
	return json.Marshal(generic)
}
