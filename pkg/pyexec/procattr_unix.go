//go:build unix

package pyexec

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup puts the interpreter in its own process group so
// cancellation also reaches processes it spawned.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}

	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
