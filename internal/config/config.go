// Package config provides the configuration schema for mcphubd: the set of
// backend descriptors to supervise plus the ambient daemon/transport knobs
// named in spec.md §6 (HTTP config, request timeout, socket path, log level,
// PID/status file paths). Host-specific discovery of backend descriptors
// (scanning installed IDE configs, etc.) is explicitly out of scope; this
// package only loads the declarative list a CLI hands it.
package config

import (
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/mcphub/mcphubd/internal/domain/backend"
)

// Config is the top-level configuration for mcphubd.
type Config struct {
	// Backends is the fleet of MCP backend processes to supervise.
	Backends []*backend.Descriptor `yaml:"backends" mapstructure:"backends" validate:"required,min=1,dive"`

	// Socket configures the local Unix domain stream transport.
	Socket SocketConfig `yaml:"socket" mapstructure:"socket"`

	// HTTP configures the Streamable HTTP + SSE transport.
	HTTP HTTPConfig `yaml:"http" mapstructure:"http"`

	// RequestTimeout bounds each Router.Route round trip (e.g. "30s").
	RequestTimeout string `yaml:"request_timeout" mapstructure:"request_timeout" validate:"omitempty"`

	// Daemon configures the PID/status file paths and log level.
	Daemon DaemonConfig `yaml:"daemon" mapstructure:"daemon"`
}

// SocketConfig configures the local stream transport's Unix domain socket.
type SocketConfig struct {
	// Path is the filesystem path of the stream socket.
	// Defaults to "/tmp/mcphubd.sock" if empty.
	Path string `yaml:"path" mapstructure:"path"`
}

// HTTPConfig configures the Streamable HTTP + SSE transport.
type HTTPConfig struct {
	// Enabled controls whether the HTTP transport is started.
	// Default: true.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Host is the bind address. Defaults to "127.0.0.1" (loopback only;
	// spec.md §1 assumes no authentication, so binding off-loopback is
	// the operator's explicit choice).
	Host string `yaml:"host" mapstructure:"host"`
	// Port is the listen port. Defaults to 8787.
	Port int `yaml:"port" mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	// IdleTimeoutSeconds bounds HTTP session idle time before reaping.
	// Defaults to 3600 (1h, per spec.md §3's HttpSession invariant).
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds" mapstructure:"idle_timeout_seconds" validate:"omitempty,min=1"`
}

// DaemonConfig configures the daemon lifecycle's file paths and logging.
type DaemonConfig struct {
	// PIDFile is the path to the PID file. Defaults to "/tmp/mcphubd.pid".
	PIDFile string `yaml:"pid_file" mapstructure:"pid_file"`
	// StatusFile is the path to the status file. Defaults to "/tmp/mcphubd.status.json".
	StatusFile string `yaml:"status_file" mapstructure:"status_file"`
	// LogLevel sets the minimum log level: "debug", "info", "warn", "error".
	// Defaults to "info" if empty.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// SetDefaults applies sensible default values, mirroring the teacher's
// OSSConfig.SetDefaults: called after unmarshal, before Validate.
func (c *Config) SetDefaults() {
	if c.Socket.Path == "" {
		c.Socket.Path = "/tmp/mcphubd.sock"
	}
	if c.HTTP.Host == "" {
		c.HTTP.Host = "127.0.0.1"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8787
	}
	if c.HTTP.IdleTimeoutSeconds == 0 {
		c.HTTP.IdleTimeoutSeconds = 3600
	}
	if c.RequestTimeout == "" {
		c.RequestTimeout = "30s"
	}
	if c.Daemon.PIDFile == "" {
		c.Daemon.PIDFile = "/tmp/mcphubd.pid"
	}
	if c.Daemon.StatusFile == "" {
		c.Daemon.StatusFile = "/tmp/mcphubd.status.json"
	}
	if c.Daemon.LogLevel == "" {
		c.Daemon.LogLevel = "info"
	}
}

// Addr returns the HTTP listen address, "host:port".
func (c *HTTPConfig) Addr() string {
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return host + ":" + strconv.Itoa(c.Port)
}

// Dump renders the effective configuration as YAML, for startup debug
// logging, mirroring the teacher's admin handler use of yaml.Marshal to
// render its own config for display.
func (c *Config) Dump() ([]byte, error) {
	return yaml.Marshal(c)
}
