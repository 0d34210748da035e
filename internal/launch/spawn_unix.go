//go:build !windows

package launch

import (
	"os/exec"
	"syscall"
)

// setProcAttr puts the child in its own process group so that signals sent
// to the daemon's group do not reach it.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
