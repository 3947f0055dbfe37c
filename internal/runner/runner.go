// Package runner executes one compiled solution against one test case as a
// subprocess under resource limits, producing a RunOutcome. The runner
// never retries; a killed process is reported and the Judge decides the
// final result.
package runner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"hammurabi/internal/model"
	appErr "hammurabi/pkg/errors"

	"github.com/google/shlex"
	"github.com/google/uuid"
)

// GracePeriod is the interval between the graceful termination signal and
// the forced kill after a wall-clock timeout.
const GracePeriod = 500 * time.Millisecond

// Limits are the resource limits in effect for one run, already resolved
// from problem/language defaults and the time_limit_multiplier.
type Limits struct {
	WallTimeLimit time.Duration
	MemoryMB      int64 // recorded only; Run does not apply or enforce it
}

// Request describes one execution of a compiled build against one testcase.
type Request struct {
	Build      *model.BuildArtifact
	Solution   *model.Solution
	Testcase   *model.Testcase
	Limits     Limits
	ScratchDir string // root scratch directory; Run creates a per-solution subdirectory under it
}

// Run instantiates the language's run recipe and executes it as a
// subprocess, enforcing the wall-clock deadline.
func Run(ctx context.Context, req Request) (*model.RunOutcome, error) {
	scratchDir := solutionScratchDir(req.ScratchDir, req.Solution)
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "create scratch dir")
	}

	lang := req.Solution.Language
	artifactDir := filepath.Dir(req.Build.ArtifactPath)

	cmdArgs, err := buildCommand(lang.RunRecipe, req.Build.ArtifactPath, req.Testcase, scratchDir)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	stdoutPath := filepath.Join(scratchDir, runID+".stdout")
	stderrPath := filepath.Join(scratchDir, runID+".stderr")

	stdoutFile, err := os.Create(stdoutPath)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "create stdout capture file")
	}
	defer stdoutFile.Close()

	stderrFile, err := os.Create(stderrPath)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "create stderr capture file")
	}
	defer stderrFile.Close()

	inputFile, err := os.Open(req.Testcase.InputPath)
	if err != nil {
		return &model.RunOutcome{
			ExitKind:  model.ExitLaunchError,
			LaunchErr: err.Error(),
		}, nil
	}
	defer inputFile.Close()

	cmd := exec.Command(cmdArgs[0], cmdArgs[1:]...)
	cmd.Dir = artifactDir
	cmd.Stdin = inputFile
	cmd.Stdout = stdoutFile
	cmd.Stderr = stderrFile
	configureProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return &model.RunOutcome{
			ExitKind:   model.ExitLaunchError,
			LaunchErr:  err.Error(),
			StdoutPath: stdoutPath,
			StderrPath: stderrPath,
		}, nil
	}
	launched := time.Now()

	timedOut := waitWithDeadline(ctx, cmd, req.Limits.WallTimeLimit)
	end := time.Now()

	outcome := &model.RunOutcome{
		StdoutPath:    stdoutPath,
		StderrPath:    stderrPath,
		WallElapsedMs: end.Sub(start).Milliseconds(),
		LeanElapsedMs: end.Sub(launched).Milliseconds(),
		PeakMemoryKB:  peakMemoryKB(cmd.ProcessState),
	}

	classifyExit(cmd, timedOut, outcome)
	return outcome, nil
}

// waitWithDeadline waits for cmd to exit, killing its process group if
// wallLimit elapses first or ctx is cancelled. It reports whether the wall
// timeout fired.
func waitWithDeadline(ctx context.Context, cmd *exec.Cmd, wallLimit time.Duration) bool {
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	var timer <-chan time.Time
	if wallLimit > 0 {
		timer = time.After(wallLimit)
	}

	select {
	case <-done:
		return false
	case <-timer:
		terminateProcessGroup(cmd)
		select {
		case <-done:
		case <-time.After(GracePeriod):
			killProcessGroup(cmd)
			<-done
		}
		return true
	case <-ctx.Done():
		terminateProcessGroup(cmd)
		select {
		case <-done:
		case <-time.After(GracePeriod):
			killProcessGroup(cmd)
			<-done
		}
		return false
	}
}

func classifyExit(cmd *exec.Cmd, timedOut bool, outcome *model.RunOutcome) {
	if timedOut {
		outcome.ExitKind = model.ExitTimeout
		return
	}

	state := cmd.ProcessState
	if state == nil {
		outcome.ExitKind = model.ExitLaunchError
		outcome.LaunchErr = "process state unavailable"
		return
	}

	if sig, ok := terminatingSignal(state); ok {
		outcome.ExitKind = model.ExitSignaled
		outcome.Signal = sig
		return
	}

	outcome.ExitKind = model.ExitNormal
	outcome.ExitCode = state.ExitCode()
}

// solutionScratchDir gives each solution its own run-scratch subdirectory
// under root, mirroring the compiler's per-solution build scratch layout.
func solutionScratchDir(root string, sol *model.Solution) string {
	name := sol.Author
	if sol.Problem != nil {
		name = sol.Problem.Name + "/" + sol.Author
	}
	safe := strings.NewReplacer("/", "_", " ", "_").Replace(name)
	return filepath.Join(root, safe)
}

// buildCommand materializes a recipe template with {artifact}, {artifact_dir},
// {input_file}, {output_file} and tokenizes it POSIX-shell-style. {source}
// and {source_dir} are not substituted in run recipes.
func buildCommand(tpl, artifactPath string, tc *model.Testcase, scratchDir string) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("run recipe is required")
	}

	expanded := tpl
	expanded = strings.ReplaceAll(expanded, "{artifact_dir}", filepath.Dir(artifactPath))
	expanded = strings.ReplaceAll(expanded, "{artifact}", artifactPath)
	expanded = strings.ReplaceAll(expanded, "{input_file}", tc.InputPath)
	expanded = strings.ReplaceAll(expanded, "{output_file}", filepath.Join(scratchDir, "output.txt"))

	fields, err := shlex.Split(expanded)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse run recipe")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("run recipe is empty after expansion")
	}
	return fields, nil
}
