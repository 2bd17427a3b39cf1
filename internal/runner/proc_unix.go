//go:build unix

package runner

import (
	"os/exec"
	"syscall"
)

// setProcessGroup запускает процесс в собственной группе.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup посылает SIGTERM (или SIGKILL) всей группе процессов.
func signalGroup(cmd *exec.Cmd, kill bool) {
	if cmd.Process == nil {
		return
	}
	sig := syscall.SIGTERM
	if kill {
		sig = syscall.SIGKILL
	}
	// Отрицательный PID — вся группа
	_ = syscall.Kill(-cmd.Process.Pid, sig)
}
