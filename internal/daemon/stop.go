package daemon

import (
	"fmt"
	"io"
	"os"
	"time"
)

// stopPollInterval/stopPollAttempts bound how long StopProcess waits for a
// graceful exit before escalating to SIGKILL, mirroring the teacher's
// cmd/stop.go "poll every 200ms, max 10s" comment.
const (
	stopPollInterval = 200 * time.Millisecond
	stopPollAttempts = 50
)

// StopProcess sends the platform graceful-stop signal to proc, polls until
// it exits or the poll budget is spent, and falls back to SIGKILL, per
// spec §4.6's "graceful shutdown on interrupt/termination signals" and the
// teacher's cmd/stop.go sequencing. Progress is written to out so the
// caller (the "stop" CLI command) can surface it to the operator.
func StopProcess(pid int, proc *os.Process, out io.Writer) error {
	fmt.Fprintf(out, "Stopping mcphubd (PID %d)...\n", pid)
	if err := SendGracefulStop(proc); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	for i := 0; i < stopPollAttempts; i++ {
		time.Sleep(stopPollInterval)
		if !processAlive(pid) {
			fmt.Fprintf(out, "mcphubd stopped.\n")
			return nil
		}
	}

	fmt.Fprintf(out, "mcphubd did not stop gracefully, sending SIGKILL...\n")
	_ = proc.Kill()
	fmt.Fprintf(out, "mcphubd killed.\n")
	return nil
}
