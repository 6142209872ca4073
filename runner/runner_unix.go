//go:build unix

package runner

import (
	"os"
	"syscall"
)

// interrupt asks the process to stop gracefully.
func interrupt(proc *os.Process) error {
	return proc.Signal(syscall.SIGTERM)
}
