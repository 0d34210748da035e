//go:build windows

package launch

import "os/exec"

func setProcAttr(cmd *exec.Cmd) {}
