// Package config materializes the typed EffectiveConfig the grading core
// consumes, in place of an open config mapping, so downstream components
// receive only the fields they need from a single struct.
package config

import (
	"os"
	"path/filepath"

	appErr "hammurabi/pkg/errors"

	"gopkg.in/yaml.v3"
)

// Locations groups filesystem roots.
type Locations struct {
	ProblemRoot          string `yaml:"problem_root"`
	ReportRoot           string `yaml:"report_root"`
	ReportFolderTemplate string `yaml:"report_folder_template"` // {dt}, {hostname}
}

// Security controls what the (out-of-scope) report renderer may embed.
type Security struct {
	ReportStdout bool `yaml:"report_stdout"`
	ReportStderr bool `yaml:"report_stderr"`
}

// Runner selects the runner implementation; the core ships one.
type Runner struct {
	Name   string            `yaml:"name"`
	Params map[string]string `yaml:"params"`
}

// Limits groups resource limits and their language-specific overrides.
type Limits struct {
	MemoryMB            int64              `yaml:"memory"`
	TimeLimitMultiplier float64            `yaml:"time_limit_multiplier"`
	TimePerLanguage     map[string]float64 `yaml:"time"`
}

// Reporting groups banner text for the (out-of-scope) report renderer.
type Reporting struct {
	AlertBanner   string `yaml:"alert_banner"`
	WarningBanner string `yaml:"warning_banner"`
	InfoBanner    string `yaml:"info_banner"`
}

// Reference controls what happens when a _reference solution fails to
// compile in --reference mode.
type Reference struct {
	// FailOnCompileError, when true, aborts the whole run; when false
	// (default) the affected problem is skipped with a warning.
	FailOnCompileError bool `yaml:"fail_on_compile_error"`
}

// ProblemLimits is the nested limits.time.<language> block of a per-problem
// override file.
type ProblemLimits struct {
	Time map[string]float64 `yaml:"time"`
}

// ProblemOverride is the optional per-problem config file (problem.<ext>).
type ProblemOverride struct {
	Verifier          string         `yaml:"verifier"`
	ProblemInputFile  string         `yaml:"problem_input_file"`
	ProblemOutputFile string         `yaml:"problem_output_file"`
	TestcaseScore     map[string]int `yaml:"testcase_score"`
	Limits            ProblemLimits  `yaml:"limits"`
}

// TimePerLanguage returns the per-problem time-limit overrides keyed by
// language, i.e. the limits.time.<language> block.
func (o ProblemOverride) TimePerLanguage() map[string]float64 {
	return o.Limits.Time
}

// EffectiveConfig is the fully materialized configuration the grading core
// consumes, produced by reading the top-level config file. Per-problem
// overrides are read separately by LoadProblemOverride and merged into each
// Problem by Discovery; they are not merged into EffectiveConfig.
type EffectiveConfig struct {
	Locations Locations `yaml:"locations"`
	Security  Security  `yaml:"security"`
	Runner    Runner    `yaml:"runner"`
	Limits    Limits    `yaml:"limits"`
	Reporting Reporting `yaml:"reporting"`
	Reference Reference `yaml:"reference"`
}

// Load reads the root YAML config file and fills in defaults after
// unmarshalling.
func Load(path string) (EffectiveConfig, error) {
	var cfg EffectiveConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, appErr.Wrapf(err, appErr.ConfigUnreadable, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, appErr.Wrapf(err, appErr.ConfigInvalid, "parse config %s", path)
	}

	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *EffectiveConfig) {
	if cfg.Locations.ReportFolderTemplate == "" {
		cfg.Locations.ReportFolderTemplate = "{dt}-{hostname}"
	}
	if cfg.Runner.Name == "" {
		cfg.Runner.Name = "subprocess"
	}
	if cfg.Limits.TimeLimitMultiplier <= 0 {
		cfg.Limits.TimeLimitMultiplier = 1.0
	}
	if cfg.Reporting.InfoBanner == "" {
		cfg.Reporting.InfoBanner = ""
	}
}

// LoadProblemOverride reads the optional per-problem config file
// (problem.yaml / problem.yml) under problemDir. A missing file is not an
// error: it just means no overrides apply.
func LoadProblemOverride(problemDir string) (ProblemOverride, error) {
	for _, name := range []string{"problem.yaml", "problem.yml"} {
		path := filepath.Join(problemDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return ProblemOverride{}, appErr.Wrapf(err, appErr.ConfigUnreadable, "read problem override %s", path)
		}
		var override ProblemOverride
		if err := yaml.Unmarshal(data, &override); err != nil {
			return ProblemOverride{}, appErr.Wrapf(err, appErr.ConfigInvalid, "parse problem override %s", path)
		}
		return override, nil
	}
	return ProblemOverride{}, nil
}

// TimeLimitFor returns the effective per-language time limit override from
// the root config, if any.
func (c EffectiveConfig) TimeLimitFor(languageID string) (float64, bool) {
	v, ok := c.Limits.TimePerLanguage[languageID]
	return v, ok
}
