//go:build !windows

package cdp

import (
	"os/exec"
	"syscall"
)

// detachProcess puts the browser in its own process group so it survives the
// CLI's exit and terminal signals.
func detachProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
