//go:build !windows

package runner

import (
	"os"
	"os/exec"
	"syscall"
)

// configureProcessGroup puts the child in its own process group so a
// timeout can terminate the whole subtree, not just the direct child, and
// arranges for the child to die if this process does.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

func terminateProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

// peakMemoryKB reports the child's peak resident set size. This is
// best-effort only: without cgroups it is recorded, never enforced.
func peakMemoryKB(state *os.ProcessState) int64 {
	if state == nil {
		return 0
	}
	usage, ok := state.SysUsage().(*syscall.Rusage)
	if !ok {
		return 0
	}
	// Maxrss is in KB on Linux, bytes on Darwin; Linux is the primary
	// deployment target so no further conversion is applied.
	return int64(usage.Maxrss)
}

func terminatingSignal(state *os.ProcessState) (int, bool) {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return 0, false
	}
	if ws.Signaled() {
		return int(ws.Signal()), true
	}
	return 0, false
}
