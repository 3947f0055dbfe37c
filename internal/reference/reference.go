// Package reference generates expected-answer files from a problem's
// _reference solution: in --reference mode, Discovery has already excluded
// every other author, and Generate builds and runs the _reference solution
// against each testcase, copying its stdout to answers/<testcase>.out
// instead of grading it.
package reference

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"hammurabi/internal/compiler"
	"hammurabi/internal/discovery"
	"hammurabi/internal/judge"
	"hammurabi/internal/model"
	"hammurabi/internal/runner"
	"hammurabi/pkg/logger"

	"go.uber.org/zap"
)

// Options configures one answer-generation pass.
type Options struct {
	Compiler            *compiler.Compiler
	ScratchDir          string
	TimeLimitMultiplier float64
	MemoryLimitMB       int64

	// FailOnCompileError, when true, aborts the whole run if a _reference
	// solution fails to compile; when false the affected problem is skipped
	// with a warning and its answers are left ungenerated.
	FailOnCompileError bool
}

// Generate walks inv's problems and, for each one's _reference solution,
// compiles it and runs it against every discovered testcase, writing its
// captured stdout to answers/<testcase>.out under the problem root.
func Generate(ctx context.Context, inv discovery.Inventory, opts Options) error {
	for _, problem := range inv.Problems {
		sol := referenceSolution(problem)
		if sol == nil {
			logger.Warn("no _reference solution found, skipping answer generation", zap.String("problem", problem.Name))
			continue
		}
		if sol.LanguageAmbiguous {
			logger.Warn("_reference solution language is ambiguous, skipping", zap.String("problem", problem.Name))
			continue
		}

		if err := generateProblem(ctx, problem, sol, opts); err != nil {
			return err
		}
	}
	return nil
}

func generateProblem(ctx context.Context, problem *model.Problem, sol *model.Solution, opts Options) error {
	build := opts.Compiler.Build(ctx, sol)
	if build.Status == model.BuildFailed {
		if opts.FailOnCompileError {
			return fmt.Errorf("_reference solution for problem %q failed to compile: %s", problem.Name, build.CompilerOutput)
		}
		logger.Warn("_reference solution failed to compile, skipping problem",
			zap.String("problem", problem.Name), zap.String("output", build.CompilerOutput))
		return nil
	}

	answersDir := filepath.Join(problem.RootPath, "answers")
	if err := os.MkdirAll(answersDir, 0755); err != nil {
		return fmt.Errorf("create answers dir for %q: %w", problem.Name, err)
	}

	limit := judge.EffectiveTimeLimit(problem, sol.Language, opts.TimeLimitMultiplier)

	for _, tc := range problem.Testcases {
		outcome, err := runner.Run(ctx, runner.Request{
			Build:      build,
			Solution:   sol,
			Testcase:   tc,
			Limits:     runner.Limits{WallTimeLimit: limit, MemoryMB: opts.MemoryLimitMB},
			ScratchDir: opts.ScratchDir,
		})
		if err != nil {
			return fmt.Errorf("run _reference solution for %s/%s: %w", problem.Name, tc.Name, err)
		}
		if outcome.ExitKind != model.ExitNormal || outcome.ExitCode != 0 {
			logger.Warn("_reference solution did not exit cleanly, no answer generated",
				zap.String("problem", problem.Name), zap.String("testcase", tc.Name),
				zap.String("exit_kind", string(outcome.ExitKind)))
			continue
		}

		if err := copyFile(outcome.StdoutPath, filepath.Join(answersDir, tc.Name+".out")); err != nil {
			return fmt.Errorf("write generated answer for %s/%s: %w", problem.Name, tc.Name, err)
		}
	}
	return nil
}

func referenceSolution(problem *model.Problem) *model.Solution {
	for _, sol := range problem.Solutions {
		if sol.IsReference() {
			return sol
		}
	}
	return nil
}

func copyFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
