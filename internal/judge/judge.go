// Package judge composes Compiler -> Runner -> Verifier for one
// (solution, testcase) pair into a single typed TestRun.
package judge

import (
	"context"
	"os"
	"time"

	"hammurabi/internal/compiler"
	"hammurabi/internal/model"
	"hammurabi/internal/runner"
	"hammurabi/internal/verifier"
)

// Judge composes the pipeline for one (solution, testcase) pair.
type Judge struct {
	Compiler   *compiler.Compiler
	Verifiers  *verifier.Registry
	ScratchDir string

	// TimeLimitMultiplier and MemoryLimitMB come from EffectiveConfig:
	// base[language] x time_limit_multiplier x problem_override_factor.
	TimeLimitMultiplier float64
	MemoryLimitMB       int64
}

// Run executes the full pipeline and returns the resulting TestRun.
// judge_start_time/judge_end_time bracket the whole composition, including
// build on cache miss and run.
func (j *Judge) Run(ctx context.Context, sol *model.Solution, tc *model.Testcase) *model.TestRun {
	start := time.Now()
	tr := &model.TestRun{Solution: sol, Testcase: tc, JudgeStartTime: start}

	if sol.LanguageAmbiguous {
		tr.Result = model.Result{Kind: model.ResultSkipped, StatusCode: model.StatusSkip, Detail: "solution language is ambiguous or unsupported"}
		tr.JudgeEndTime = time.Now()
		return tr
	}

	if tc.MissingAnswer() {
		tr.Result = model.Result{Kind: model.ResultMissingAnswer, StatusCode: model.StatusMA, Detail: "no expected answer file"}
		tr.JudgeEndTime = time.Now()
		return tr
	}

	build := j.Compiler.Build(ctx, sol)
	tr.Build = build
	if build.Status == model.BuildFailed {
		tr.Result = model.Result{Kind: model.ResultCompilationError, StatusCode: model.StatusCE, Detail: build.CompilerOutput}
		tr.JudgeEndTime = time.Now()
		return tr
	}

	limit := EffectiveTimeLimit(sol.Problem, sol.Language, j.TimeLimitMultiplier)
	outcome, err := runner.Run(ctx, runner.Request{
		Build:      build,
		Solution:   sol,
		Testcase:   tc,
		Limits:     runner.Limits{WallTimeLimit: limit, MemoryMB: j.MemoryLimitMB},
		ScratchDir: j.ScratchDir,
	})
	if err != nil {
		tr.Result = model.Result{Kind: model.ResultInternalError, StatusCode: model.StatusIE, Detail: err.Error()}
		tr.JudgeEndTime = time.Now()
		return tr
	}
	tr.RunOutcome = outcome

	if result, done := resultFromExitKind(outcome); done {
		tr.Result = result
		tr.JudgeEndTime = time.Now()
		return tr
	}

	if _, err := os.Stat(outcome.StdoutPath); err != nil {
		tr.Result = model.Result{Kind: model.ResultOutputFormat, StatusCode: model.StatusOF, Detail: "no output"}
		tr.JudgeEndTime = time.Now()
		return tr
	}

	v, ok := j.Verifiers.Lookup(sol.Problem.VerifierName)
	if !ok {
		tr.Result = model.Result{Kind: model.ResultInternalError, StatusCode: model.StatusIE, Detail: "unknown verifier: " + sol.Problem.VerifierName}
		tr.JudgeEndTime = time.Now()
		return tr
	}

	verdict, err := v.Verify(tc.ExpectedAnswerPath, outcome.StdoutPath)
	if err != nil {
		tr.Result = model.Result{Kind: model.ResultInternalError, StatusCode: model.StatusIE, Detail: err.Error()}
		tr.JudgeEndTime = time.Now()
		return tr
	}
	tr.Verdict = &verdict

	if !verdict.Correct {
		if verdict.FormatIssue {
			tr.Result = model.Result{Kind: model.ResultOutputFormat, StatusCode: model.StatusOF, Detail: verdict.Detail}
		} else {
			tr.Result = model.Result{Kind: model.ResultWrongAnswer, StatusCode: model.StatusWA, Detail: verdict.Detail}
		}
		tr.JudgeEndTime = time.Now()
		return tr
	}

	tr.Result = model.CorrectResult(tc.Score)
	tr.JudgeEndTime = time.Now()
	return tr
}

// resultFromExitKind classifies a RunOutcome's exit kind into a final
// Result where possible. The bool return reports whether the exit kind
// alone determined the final result.
func resultFromExitKind(outcome *model.RunOutcome) (model.Result, bool) {
	switch outcome.ExitKind {
	case model.ExitLaunchError:
		return model.Result{Kind: model.ResultInternalError, StatusCode: model.StatusIE, Detail: outcome.LaunchErr}, true
	case model.ExitTimeout:
		return model.Result{Kind: model.ResultTimeLimit, StatusCode: model.StatusTLE}, true
	case model.ExitSignaled:
		return model.Result{Kind: model.ResultRuntimeError, StatusCode: model.StatusRE, Signal: outcome.Signal}, true
	case model.ExitNormal:
		if outcome.ExitCode != 0 {
			return model.Result{Kind: model.ResultRuntimeError, StatusCode: model.StatusRE, ExitCode: outcome.ExitCode}, true
		}
	}
	return model.Result{}, false
}

// EffectiveTimeLimit is base[language] x time_limit_multiplier x
// problem_override_factor; the per-problem override already folds into
// Problem.TimeLimitFor. Shared with the reference-answer generation path so
// both use the same resolved limit.
func EffectiveTimeLimit(p *model.Problem, lang model.Language, multiplier float64) time.Duration {
	seconds := p.TimeLimitFor(lang)
	if multiplier <= 0 {
		multiplier = 1
	}
	return time.Duration(seconds * multiplier * float64(time.Second))
}
