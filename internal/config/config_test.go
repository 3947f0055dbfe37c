package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
locations:
  problem_root: /problems
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Locations.ReportFolderTemplate != "{dt}-{hostname}" {
		t.Fatalf("expected default report folder template, got %q", cfg.Locations.ReportFolderTemplate)
	}
	if cfg.Runner.Name != "subprocess" {
		t.Fatalf("expected default runner name, got %q", cfg.Runner.Name)
	}
	if cfg.Limits.TimeLimitMultiplier != 1.0 {
		t.Fatalf("expected default time limit multiplier 1.0, got %v", cfg.Limits.TimeLimitMultiplier)
	}
}

func TestLoadParsesNestedTimeLimits(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
locations:
  problem_root: /problems
limits:
  memory: 256
  time_limit_multiplier: 2
  time:
    cpp: 1.0
    python: 3.0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v, ok := cfg.TimeLimitFor("python"); !ok || v != 3.0 {
		t.Fatalf("expected python time limit 3.0, got %v (ok=%v)", v, ok)
	}
	if v, ok := cfg.TimeLimitFor("cpp"); !ok || v != 1.0 {
		t.Fatalf("expected cpp time limit 1.0, got %v (ok=%v)", v, ok)
	}
}

// TestProblemOverrideNestedLimitsTime guards against a yaml.v3 footgun: a
// dotted tag like `yaml:"limits.time"` does not expand into nested YAML
// structure, it only binds a literal top-level key named "limits.time".
// Per-problem overrides must nest a real Limits struct to parse a normally
// structured limits: / time: block.
func TestProblemOverrideNestedLimitsTime(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "problem.yaml", `
verifier: exact_bytes
limits:
  time:
    cpp: 0.5
    java: 4.0
`)
	override, err := LoadProblemOverride(dir)
	if err != nil {
		t.Fatalf("LoadProblemOverride: %v", err)
	}
	got := override.TimePerLanguage()
	if got["cpp"] != 0.5 {
		t.Fatalf("expected cpp override 0.5, got %v", got["cpp"])
	}
	if got["java"] != 4.0 {
		t.Fatalf("expected java override 4.0, got %v", got["java"])
	}
}

func TestLoadProblemOverrideMissingFileIsNotError(t *testing.T) {
	dir := t.TempDir()
	override, err := LoadProblemOverride(dir)
	if err != nil {
		t.Fatalf("expected no error for missing override file, got %v", err)
	}
	if len(override.TimePerLanguage()) != 0 {
		t.Fatalf("expected empty overrides, got %v", override.TimePerLanguage())
	}
}
