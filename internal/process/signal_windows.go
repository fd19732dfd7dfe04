//go:build windows

package process

import "os"

// gracefulStopSignal on Windows is os.Interrupt, the closest portable
// approximation; os.Process.Signal does not implement it there and returns
// an error, so the supervisor's StopAll force-kills the process after its
// grace period.
var gracefulStopSignal = os.Interrupt
