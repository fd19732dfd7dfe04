package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mcphub/mcphubd/internal/config"
	"github.com/mcphub/mcphubd/internal/daemon"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running mcphubd daemon",
	Long: `Stop a running mcphubd daemon by reading its PID file and sending SIGTERM.

Examples:
  mcphubd stop`,
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	var cfg config.Config
	_ = viper.Unmarshal(&cfg)
	cfg.SetDefaults()

	pidPath := cfg.Daemon.PIDFile

	data, err := os.ReadFile(pidPath)
	if err != nil {
		return fmt.Errorf("no daemon PID file found at %s\nIs mcphubd running?", pidPath)
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil || pid == 0 {
		return fmt.Errorf("invalid PID file at %s", pidPath)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		os.Remove(pidPath)
		return fmt.Errorf("invalid PID %d: %w", pid, err)
	}

	if !daemon.ProcessAlive(pid) {
		os.Remove(pidPath)
		return fmt.Errorf("daemon process %d is not running (stale PID file removed)", pid)
	}

	if err := daemon.StopProcess(pid, proc, os.Stderr); err != nil {
		return err
	}
	os.Remove(pidPath)
	return nil
}
