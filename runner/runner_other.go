//go:build !linux && !windows

package runner

import "os/exec"

func applySysProcAttr(cmd *exec.Cmd) {}
