// Command hammurabi runs one grading pass over a problem tree: discover,
// compile, execute, verify, and print a TestRun summary per pair.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"hammurabi/internal/compiler"
	"hammurabi/internal/config"
	"hammurabi/internal/discovery"
	"hammurabi/internal/dispatcher"
	"hammurabi/internal/judge"
	"hammurabi/internal/model"
	"hammurabi/internal/reference"
	"hammurabi/internal/registry"
	"hammurabi/internal/verifier"
	"hammurabi/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML effective config file")
	root := flag.String("root", "", "problem root directory (overrides locations.problem_root)")
	parallel := flag.Int("parallel", 1, "number of concurrent judging workers")
	problemFilter := flag.String("problem", "", "only grade this problem name")
	authorFilter := flag.String("author", "", "only grade this author's solutions")
	referenceMode := flag.Bool("reference", false, "exclude all other authors and generate answers/ from the _reference solution instead of grading")
	flag.Parse()

	if err := logger.Init(logger.Config{Level: "info", Format: "console", Service: "hammurabi"}); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*configPath, *root, *parallel, *problemFilter, *authorFilter, *referenceMode); err != nil {
		logger.Error("grading run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(configPath, root string, parallel int, problemFilter, authorFilter string, referenceMode bool) error {
	var cfg config.EffectiveConfig
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if root != "" {
		cfg.Locations.ProblemRoot = root
	}
	if cfg.Locations.ProblemRoot == "" {
		return fmt.Errorf("problem root is required: pass -root or set locations.problem_root in -config")
	}

	reg := registry.New()

	inv, err := discovery.Discover(cfg.Locations.ProblemRoot, reg, cfg, referenceMode)
	if err != nil {
		return err
	}

	scratchRoot, err := os.MkdirTemp("", "hammurabi-scratch-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratchRoot)

	comp := compiler.New(filepath.Join(scratchRoot, "build"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("received interrupt, cancelling in-flight runs")
		cancel()
	}()

	if referenceMode {
		return reference.Generate(ctx, inv, reference.Options{
			Compiler:            comp,
			ScratchDir:          filepath.Join(scratchRoot, "run"),
			TimeLimitMultiplier: cfg.Limits.TimeLimitMultiplier,
			MemoryLimitMB:       cfg.Limits.MemoryMB,
			FailOnCompileError:  cfg.Reference.FailOnCompileError,
		})
	}

	j := &judge.Judge{
		Compiler:            comp,
		Verifiers:           verifier.NewRegistry(),
		ScratchDir:          filepath.Join(scratchRoot, "run"),
		TimeLimitMultiplier: cfg.Limits.TimeLimitMultiplier,
		MemoryLimitMB:       cfg.Limits.MemoryMB,
	}

	d := dispatcher.New(j, parallel)

	filter := buildFilter(problemFilter, authorFilter)

	results := d.Run(ctx, inv, filter)

	enc := json.NewEncoder(os.Stdout)
	for _, tr := range results {
		if err := enc.Encode(summarize(tr)); err != nil {
			return err
		}
	}
	return nil
}

func buildFilter(problemFilter, authorFilter string) discovery.Filter {
	if problemFilter == "" && authorFilter == "" {
		return nil
	}
	return func(problemName, authorName, testcaseName string) bool {
		if problemFilter != "" && problemFilter != problemName {
			return false
		}
		if authorFilter != "" && authorFilter != authorName {
			return false
		}
		return true
	}
}

// summary is the stable, report-visible shape printed per TestRun.
type summary struct {
	Problem   string `json:"problem"`
	Author    string `json:"author"`
	Testcase  string `json:"testcase"`
	Status    string `json:"status"`
	Score     int    `json:"score"`
	Detail    string `json:"detail,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

func summarize(tr *model.TestRun) summary {
	return summary{
		Problem:   tr.Testcase.Problem.Name,
		Author:    tr.Solution.Author,
		Testcase:  tr.Testcase.Name,
		Status:    string(tr.Result.StatusCode),
		Score:     tr.Result.Score,
		Detail:    tr.Result.Detail,
		Cancelled: tr.Cancelled,
	}
}
