// Package compiler turns a discovered Solution into a runnable
// BuildArtifact, caching results by solution identity for the lifetime of
// one grading run so a solution is never compiled twice.
package compiler

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"hammurabi/internal/model"
	appErr "hammurabi/pkg/errors"

	"github.com/google/shlex"
)

// CompileTimeout is the fixed compile deadline, generous enough to cover
// slow toolchains without letting one solution stall a run indefinitely.
const CompileTimeout = 60 * time.Second

type buildEntry struct {
	done     chan struct{}
	artifact *model.BuildArtifact
}

// Compiler builds solutions into BuildArtifacts and memoizes the result per
// solution identity. The cache is a get-or-compute-under-lock primitive:
// N concurrent callers trigger exactly one compile.
type Compiler struct {
	scratchRoot string

	mu    sync.Mutex
	cache map[string]*buildEntry
}

// New returns a Compiler that places per-solution build artifacts under
// scratchRoot.
func New(scratchRoot string) *Compiler {
	return &Compiler{
		scratchRoot: scratchRoot,
		cache:       make(map[string]*buildEntry),
	}
}

// Build returns the cached BuildArtifact for sol, compiling it on the first
// call and blocking concurrent callers on the in-flight compile.
func (c *Compiler) Build(ctx context.Context, sol *model.Solution) *model.BuildArtifact {
	key := sol.Identity()

	c.mu.Lock()
	entry, exists := c.cache[key]
	if exists {
		c.mu.Unlock()
		<-entry.done
		return entry.artifact
	}
	entry = &buildEntry{done: make(chan struct{})}
	c.cache[key] = entry
	c.mu.Unlock()

	entry.artifact = c.compile(ctx, sol)
	close(entry.done)
	return entry.artifact
}

func (c *Compiler) compile(ctx context.Context, sol *model.Solution) *model.BuildArtifact {
	lang := sol.Language

	if !lang.HasCompileStep() {
		return &model.BuildArtifact{
			Solution:     sol,
			Status:       model.BuildOK,
			ArtifactPath: sol.EntryFile,
		}
	}

	scratchDir := c.solutionScratchDir(sol)
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return &model.BuildArtifact{
			Solution:       sol,
			Status:         model.BuildFailed,
			CompilerOutput: err.Error(),
		}
	}

	artifactPath := filepath.Join(scratchDir, "artifact")
	cmdArgs, err := buildCompileCommand(lang.CompileRecipe, sol, artifactPath, scratchDir)
	if err != nil {
		return &model.BuildArtifact{
			Solution:       sol,
			Status:         model.BuildFailed,
			CompilerOutput: err.Error(),
		}
	}

	compileCtx, cancel := context.WithTimeout(ctx, CompileTimeout)
	defer cancel()

	cmd := exec.CommandContext(compileCtx, cmdArgs[0], cmdArgs[1:]...)
	cmd.Dir = scratchDir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	artifact := &model.BuildArtifact{
		Solution:         sol,
		ArtifactPath:     artifactPath,
		CompilerOutput:   output.String(),
		CompileElapsedMs: elapsed.Milliseconds(),
	}
	if runErr == nil {
		artifact.Status = model.BuildOK
	} else {
		artifact.Status = model.BuildFailed
	}
	return artifact
}

func (c *Compiler) solutionScratchDir(sol *model.Solution) string {
	safe := strings.NewReplacer("/", "_", " ", "_").Replace(sol.Identity())
	return filepath.Join(c.scratchRoot, safe)
}

// buildCompileCommand materializes the compile recipe template with
// {source}, {source_dir}, {artifact}, {artifact_dir} and tokenizes it
// POSIX-shell-style.
func buildCompileCommand(tpl string, sol *model.Solution, artifactPath, scratchDir string) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("compile recipe is required")
	}

	expanded := tpl
	expanded = strings.ReplaceAll(expanded, "{source_dir}", filepath.Dir(sol.EntryFile))
	expanded = strings.ReplaceAll(expanded, "{source}", sol.EntryFile)
	expanded = strings.ReplaceAll(expanded, "{artifact_dir}", scratchDir)
	expanded = strings.ReplaceAll(expanded, "{artifact}", artifactPath)

	fields, err := shlex.Split(expanded)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse compile recipe")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("compile recipe is empty after expansion")
	}
	return fields, nil
}
