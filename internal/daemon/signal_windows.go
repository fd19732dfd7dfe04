//go:build windows

package daemon

import (
	"os"

	"golang.org/x/sys/windows"
)

// shutdownSignals returns the OS signals that trigger graceful shutdown.
// Windows only reliably delivers os.Interrupt; SIGTERM doesn't exist.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// processAlive probes pid by opening a handle and checking the exit code.
func processAlive(pid int) bool {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(handle)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false
	}
	return exitCode == 259 // STILL_ACTIVE
}

// ProcessAlive is the exported form of processAlive, for the "stop" CLI
// command's liveness probe.
func ProcessAlive(pid int) bool {
	return processAlive(pid)
}

// SendGracefulStop terminates the process. Windows has no SIGTERM
// equivalent; Kill() calls TerminateProcess.
func SendGracefulStop(proc *os.Process) error {
	return proc.Kill()
}
