//go:build !windows

package process

import "syscall"

// gracefulStopSignal is the signal Terminate sends for a graceful shutdown.
// Grounded on cmd/sentinel-gate/cmd/process_unix.go's sendGracefulStop.
var gracefulStopSignal = syscall.SIGTERM
