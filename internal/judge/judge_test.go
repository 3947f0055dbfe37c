package judge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"hammurabi/internal/compiler"
	"hammurabi/internal/model"
	"hammurabi/internal/verifier"
)

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
}

func newJudge(t *testing.T, dir string) *Judge {
	t.Helper()
	return &Judge{
		Compiler:            compiler.New(filepath.Join(dir, "scratch")),
		Verifiers:           verifier.NewRegistry(),
		ScratchDir:          filepath.Join(dir, "run"),
		TimeLimitMultiplier: 1,
	}
}

func newProblemAndTestcase(t *testing.T, dir, answer string) (*model.Problem, *model.Testcase) {
	t.Helper()
	problem := &model.Problem{Name: "p", VerifierName: "exact_bytes"}
	inPath := filepath.Join(dir, "01.in")
	writeFile(t, inPath, "3\n", 0644)
	var outPath string
	if answer != "" {
		outPath = filepath.Join(dir, "01.out")
		writeFile(t, outPath, answer, 0644)
	}
	return problem, &model.Testcase{Problem: problem, Name: "01", InputPath: inPath, ExpectedAnswerPath: outPath, Score: 1}
}

func TestJudgeCorrectAnswer(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "sol", "main.sh")
	writeFile(t, script, "#!/bin/sh\necho ok\n", 0644)

	problem, tc := newProblemAndTestcase(t, dir, "ok\n")
	sol := &model.Solution{
		Problem:   problem,
		Author:    "alice",
		EntryFile: script,
		Language:  model.Language{ID: "sh", RunRecipe: "sh {artifact}"},
	}

	tr := newJudge(t, dir).Run(context.Background(), sol, tc)
	if tr.Result.StatusCode != model.StatusOK || tr.Result.Score != 1 {
		t.Fatalf("expected OK with score 1, got %+v", tr.Result)
	}
}

func TestJudgeWrongAnswer(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "sol", "main.sh")
	writeFile(t, script, "#!/bin/sh\necho nope\n", 0644)

	problem, tc := newProblemAndTestcase(t, dir, "ok\n")
	sol := &model.Solution{
		Problem:   problem,
		Author:    "alice",
		EntryFile: script,
		Language:  model.Language{ID: "sh", RunRecipe: "sh {artifact}"},
	}

	tr := newJudge(t, dir).Run(context.Background(), sol, tc)
	if tr.Result.StatusCode != model.StatusWA {
		t.Fatalf("expected WA, got %+v", tr.Result)
	}
}

func TestJudgeCompilationError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "sol", "main.c")
	writeFile(t, src, "int main( { return 0; }", 0644)

	problem, tc := newProblemAndTestcase(t, dir, "ok\n")
	sol := &model.Solution{
		Problem:   problem,
		Author:    "alice",
		EntryFile: src,
		Language:  model.Language{ID: "shc", CompileRecipe: "false", RunRecipe: "{artifact}"},
	}

	tr := newJudge(t, dir).Run(context.Background(), sol, tc)
	if tr.Result.StatusCode != model.StatusCE {
		t.Fatalf("expected CE, got %+v", tr.Result)
	}
	if tr.RunOutcome != nil {
		t.Fatalf("expected no run_outcome for a compilation error, got %+v", tr.RunOutcome)
	}
}

func TestJudgeMissingAnswer(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "sol", "main.sh")
	writeFile(t, script, "#!/bin/sh\necho ok\n", 0644)

	problem, tc := newProblemAndTestcase(t, dir, "")
	sol := &model.Solution{
		Problem:   problem,
		Author:    "alice",
		EntryFile: script,
		Language:  model.Language{ID: "sh", RunRecipe: "sh {artifact}"},
	}

	tr := newJudge(t, dir).Run(context.Background(), sol, tc)
	if tr.Result.StatusCode != model.StatusMA {
		t.Fatalf("expected MA, got %+v", tr.Result)
	}
}

func TestJudgeLanguageAmbiguousSkipped(t *testing.T) {
	dir := t.TempDir()
	problem, tc := newProblemAndTestcase(t, dir, "ok\n")
	sol := &model.Solution{Problem: problem, Author: "bob", LanguageAmbiguous: true}

	tr := newJudge(t, dir).Run(context.Background(), sol, tc)
	if tr.Result.StatusCode != model.StatusSkip {
		t.Fatalf("expected SKIP, got %+v", tr.Result)
	}
}

func TestJudgeUnknownVerifier(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "sol", "main.sh")
	writeFile(t, script, "#!/bin/sh\necho ok\n", 0644)

	problem, tc := newProblemAndTestcase(t, dir, "ok\n")
	problem.VerifierName = "nonexistent"
	sol := &model.Solution{
		Problem:   problem,
		Author:    "alice",
		EntryFile: script,
		Language:  model.Language{ID: "sh", RunRecipe: "sh {artifact}"},
	}

	tr := newJudge(t, dir).Run(context.Background(), sol, tc)
	if tr.Result.StatusCode != model.StatusIE {
		t.Fatalf("expected IE for unknown verifier, got %+v", tr.Result)
	}
}
