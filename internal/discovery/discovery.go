// Package discovery walks the problem root and builds the structured
// inventory: problems, their authors' solutions, and their testcases, in
// stable lexicographic order.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hammurabi/internal/config"
	"hammurabi/internal/model"
	"hammurabi/internal/registry"
	"hammurabi/pkg/logger"

	"go.uber.org/zap"
)

// Inventory is the complete discovered tree for one grading run.
type Inventory struct {
	Problems []*model.Problem
}

// Filter decides whether a (problem, author, testcase) triple is in scope
// for this run. A nil Filter matches every triple.
type Filter func(problemName, authorName, testcaseName string) bool

// Discover walks problemRoot and builds an Inventory. reference selects
// whether the _reference author is included (true) or excluded from
// grading (false).
func Discover(root string, reg *registry.LanguageRegistry, base config.EffectiveConfig, reference bool) (Inventory, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return Inventory{}, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var inv Inventory
	for _, name := range names {
		problemDir := filepath.Join(root, name)
		solutionsDir := filepath.Join(problemDir, "solutions")
		testcasesDir := filepath.Join(problemDir, "testcases")

		if !isDir(solutionsDir) || !isDir(testcasesDir) {
			logger.Warn("skipping problem directory: missing solutions/ or testcases/", zap.String("problem", name))
			continue
		}

		problem, err := buildProblem(problemDir, name, base)
		if err != nil {
			logger.Warn("skipping problem directory: bad config", zap.String("problem", name), zap.Error(err))
			continue
		}

		problem.Solutions = discoverSolutions(problem, solutionsDir, reg, reference)
		problem.Testcases = discoverTestcases(problem, testcasesDir, filepath.Join(problemDir, "answers"))

		inv.Problems = append(inv.Problems, problem)
	}
	return inv, nil
}

func buildProblem(problemDir, name string, base config.EffectiveConfig) (*model.Problem, error) {
	override, err := config.LoadProblemOverride(problemDir)
	if err != nil {
		return nil, err
	}

	p := &model.Problem{
		Name:               name,
		RootPath:           problemDir,
		InputFilename:      firstNonEmpty(override.ProblemInputFile, "input.txt"),
		OutputFilename:     firstNonEmpty(override.ProblemOutputFile, "output.txt"),
		VerifierName:       firstNonEmpty(override.Verifier, "exact_bytes"),
		TestcaseScores:     override.TestcaseScore,
		TimeLimitOverrides: mergeTimeLimits(base.Limits.TimePerLanguage, override.TimePerLanguage()),
	}
	return p, nil
}

func mergeTimeLimits(base, override map[string]float64) map[string]float64 {
	merged := make(map[string]float64, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func discoverSolutions(problem *model.Problem, solutionsDir string, reg *registry.LanguageRegistry, reference bool) []*model.Solution {
	entries, err := os.ReadDir(solutionsDir)
	if err != nil {
		logger.Warn("read solutions dir failed", zap.String("dir", solutionsDir), zap.Error(err))
		return nil
	}

	authors := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			authors = append(authors, e.Name())
		}
	}
	sort.Strings(authors)

	var solutions []*model.Solution
	for _, author := range authors {
		if strings.HasPrefix(author, "_") && author != model.ReferenceAuthor {
			// Authors starting with "_" are reserved; only _reference is
			// recognized.
			continue
		}
		if reference {
			// Reference-answer-generation runs only exercise _reference;
			// every other author is excluded from grading.
			if author != model.ReferenceAuthor {
				continue
			}
		} else if author == model.ReferenceAuthor {
			continue
		}

		authorDir := filepath.Join(solutionsDir, author)
		sources := collectSourceFiles(authorDir)
		sort.Strings(sources)
		if len(sources) == 0 {
			continue
		}

		lang, classification := reg.Classify(sources)
		sol := &model.Solution{
			Problem: problem,
			Author:  author,
			Sources: sources,
		}
		switch classification {
		case registry.ClassifyUnique:
			sol.Language = lang
			sol.EntryFile = sources[0]
		case registry.ClassifyAmbiguous:
			sol.LanguageAmbiguous = true
		case registry.ClassifyUnknown:
			sol.LanguageAmbiguous = true
		}
		solutions = append(solutions, sol)
	}
	return solutions
}

func collectSourceFiles(dir string) []string {
	var files []string
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d == nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files
}

func discoverTestcases(problem *model.Problem, testcasesDir, answersDir string) []*model.Testcase {
	entries, err := os.ReadDir(testcasesDir)
	if err != nil {
		logger.Warn("read testcases dir failed", zap.String("dir", testcasesDir), zap.Error(err))
		return nil
	}

	var inputs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".in") {
			inputs = append(inputs, e.Name())
		}
	}
	sort.Strings(inputs)

	var testcases []*model.Testcase
	for _, inName := range inputs {
		base := strings.TrimSuffix(inName, ".in")
		answerPath := filepath.Join(answersDir, base+".out")
		if _, err := os.Stat(answerPath); err != nil {
			answerPath = "" // missing answer; pair will be marked MA by the Judge
		}
		testcases = append(testcases, &model.Testcase{
			Problem:            problem,
			Name:               base,
			InputPath:          filepath.Join(testcasesDir, inName),
			ExpectedAnswerPath: answerPath,
			Score:              problem.ScoreFor(base),
		})
	}
	return testcases
}
