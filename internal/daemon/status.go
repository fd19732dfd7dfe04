package daemon

import (
	"encoding/json"
	"os"
	"time"
)

// Status is the JSON object spec §4.6 says is written to the status file
// every 30s: {pid, server_count, uptime_seconds, socket_path, timestamp}.
type Status struct {
	PID           int    `json:"pid"`
	ServerCount   int    `json:"server_count"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	SocketPath    string `json:"socket_path"`
	Timestamp     string `json:"timestamp"`
}

// StatusWriter periodically writes a Status snapshot to a file.
type StatusWriter struct {
	path        string
	socketPath  string
	startedAt   time.Time
	serverCount func() int
}

// NewStatusWriter constructs a StatusWriter. serverCount is called at each
// write to report the current connected-backend count.
func NewStatusWriter(path, socketPath string, startedAt time.Time, serverCount func() int) *StatusWriter {
	return &StatusWriter{path: path, socketPath: socketPath, startedAt: startedAt, serverCount: serverCount}
}

// Write renders and persists one Status snapshot.
func (w *StatusWriter) Write() error {
	st := Status{
		PID:           os.Getpid(),
		ServerCount:   w.serverCount(),
		UptimeSeconds: int64(time.Since(w.startedAt).Seconds()),
		SocketPath:    w.socketPath,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return os.WriteFile(w.path, data, 0644)
}

// ReadStatus reads and parses a previously written status file, used by
// the "status" CLI subcommand (spec.md's supplemented feature, the
// counterpart to "stop" reading the PID file).
func ReadStatus(path string) (*Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
