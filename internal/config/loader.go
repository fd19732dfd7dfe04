package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables, mirroring the teacher's InitViper: an explicit configFile wins,
// otherwise standard locations are searched for an explicit YAML extension
// (so Viper's SetConfigName never matches the "mcphubd" binary itself).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("mcphubd")
		viper.SetConfigType("yaml")
	}

	// MCPHUBD_HTTP_PORT overrides http.port, etc.
	viper.SetEnvPrefix("MCPHUBD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// A bool's zero value cannot mark "unset", so the HTTP transport's
	// default of enabled is set here rather than in SetDefaults.
	viper.SetDefault("http.enabled", true)

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for mcphubd.yaml or .yml.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".mcphubd"),
		"/etc/mcphubd",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "mcphubd"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds the scalar config keys for environment variable
// support. Backends is an array and is left to the config file, matching
// the teacher's treatment of its own array-valued config fields.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("socket.path")
	_ = viper.BindEnv("http.enabled")
	_ = viper.BindEnv("http.host")
	_ = viper.BindEnv("http.port")
	_ = viper.BindEnv("http.idle_timeout_seconds")
	_ = viper.BindEnv("request_timeout")
	_ = viper.BindEnv("daemon.pid_file")
	_ = viper.BindEnv("daemon.status_file")
	_ = viper.BindEnv("daemon.log_level")
}

// Load reads the configuration file, applies environment overrides, sets
// defaults, validates, and returns the Config. Mirrors the teacher's
// LoadConfig, minus the dev-mode permissive-defaults step this domain has
// no equivalent of.
func Load() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or "" if running on environment variables and defaults only.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
