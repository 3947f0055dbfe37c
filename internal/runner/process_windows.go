//go:build windows

package runner

import (
	"os"
	"os/exec"
)

// Windows has no process-group signals or rusage; the subprocess is still
// killed on timeout, just without the process-tree guarantee the unix path
// provides.

func configureProcessGroup(cmd *exec.Cmd) {}

func terminateProcessGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func peakMemoryKB(state *os.ProcessState) int64 { return 0 }

func terminatingSignal(state *os.ProcessState) (int, bool) { return 0, false }
