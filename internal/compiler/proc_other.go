//go:build !unix

package compiler

import (
	"os"
	"os/exec"
)

func isolate(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Kill)
	}
}
