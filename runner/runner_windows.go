//go:build windows

package runner

import (
	"os"
	"os/exec"
	"syscall"
)

// createNoWindow prevents the chromedriver console window from appearing.
// chromedriver is a console application on Windows, so without this flag
// every launch pops up a visible window. The window carries no information
// we need: stdout and stderr are captured through pipes regardless.
const createNoWindow = 0x08000000

func applySysProcAttr(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = new(syscall.SysProcAttr)
	}
	cmd.SysProcAttr.CreationFlags |= createNoWindow
	cmd.SysProcAttr.HideWindow = true
}

// interrupt reports that graceful interruption is unavailable: Windows has
// no equivalent of SIGTERM for a windowless child, so Terminate proceeds
// straight to the kill phase.
func interrupt(proc *os.Process) error {
	return errInterruptUnsupported
}
