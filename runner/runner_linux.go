//go:build linux

package runner

import (
	"os/exec"
	"syscall"
)

func applySysProcAttr(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = new(syscall.SysProcAttr)
	}
	// When the parent process dies, kill chromedriver as well.
	cmd.SysProcAttr.Pdeathsig = syscall.SIGKILL
}
