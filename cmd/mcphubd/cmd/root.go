// Package cmd provides the CLI commands for mcphubd.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcphub/mcphubd/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mcphubd",
	Short: "mcphubd - a multiplexing router for MCP backend processes",
	Long: `mcphubd supervises a fleet of MCP backend subprocesses and routes
JSON-RPC 2.0 requests to them by name, over a local Unix domain socket and
a Streamable HTTP+SSE endpoint.

Configuration is loaded from mcphubd.yaml in the current directory,
$HOME/.mcphubd/, or /etc/mcphubd/.

Environment variables can override scalar config values with the MCPHUBD_
prefix. Example: MCPHUBD_HTTP_PORT=9090

Commands:
  run         Run the daemon in the foreground
  stop        Stop the running daemon
  status      Print the running daemon's status
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./mcphubd.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
