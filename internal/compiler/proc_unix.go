//go:build unix

package compiler

import (
	"os/exec"
	"syscall"
)

// isolate starts the command in its own process group so that a timeout
// kills everything the toolchain spawned, not only the direct child.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
