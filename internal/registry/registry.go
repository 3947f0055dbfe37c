// Package registry implements LanguageRegistry: a static, pluggable catalog
// of supported languages together with extension detection and solution
// classification.
package registry

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"hammurabi/internal/model"
	appErr "hammurabi/pkg/errors"
)

// LanguageRegistry is a plugin-style catalog of supported languages.
// Recipes are declarative templates, not code: adding a language requires
// only registering a new descriptor.
type LanguageRegistry struct {
	byID  map[string]model.Language
	order []string // registration order; Detect checks languages in this order
}

// New returns a registry pre-populated with the built-in languages.
func New() *LanguageRegistry {
	r := &LanguageRegistry{byID: make(map[string]model.Language)}
	for _, l := range defaultLanguages() {
		r.Register(l)
	}
	return r
}

// Register adds or replaces a language descriptor.
func (r *LanguageRegistry) Register(l model.Language) {
	if _, exists := r.byID[l.ID]; !exists {
		r.order = append(r.order, l.ID)
	}
	r.byID[l.ID] = l
}

// Detect returns the language matching a file's extension, or false if none
// does. It is a pure function of the file path.
func (r *LanguageRegistry) Detect(filePath string) (model.Language, bool) {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, id := range r.order {
		if r.byID[id].MatchesExtension(ext) {
			return r.byID[id], true
		}
	}
	return model.Language{}, false
}

// ClassifyResult is the outcome of Classify.
type ClassifyResult int

const (
	ClassifyUnique ClassifyResult = iota
	ClassifyAmbiguous
	ClassifyUnknown
)

// Classify returns the unique language shared by all sourceFiles, or
// reports Ambiguous/Unknown.
func (r *LanguageRegistry) Classify(sourceFiles []string) (model.Language, ClassifyResult) {
	var found model.Language
	seen := false
	for _, f := range sourceFiles {
		lang, ok := r.Detect(f)
		if !ok {
			return model.Language{}, ClassifyUnknown
		}
		if !seen {
			found = lang
			seen = true
			continue
		}
		if lang.ID != found.ID {
			return model.Language{}, ClassifyAmbiguous
		}
	}
	if !seen {
		return model.Language{}, ClassifyUnknown
	}
	return found, ClassifyUnique
}

// Available probes each registered language's toolchain by running its
// version command with a short timeout, reporting success/failure. The only
// side effect is spawning the probe subprocesses.
func (r *LanguageRegistry) Available(ctx context.Context) []model.ToolchainProbe {
	probes := make([]model.ToolchainProbe, 0, len(r.order))
	for _, id := range r.order {
		probes = append(probes, r.probe(ctx, r.byID[id]))
	}
	sort.Slice(probes, func(i, j int) bool { return probes[i].Language < probes[j].Language })
	return probes
}

func (r *LanguageRegistry) probe(ctx context.Context, lang model.Language) model.ToolchainProbe {
	bin, versionArgs := probeCommand(lang.ID)
	if bin == "" {
		return model.ToolchainProbe{Language: lang.ID, OK: false, Detail: "no probe command registered"}
	}

	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, bin, versionArgs...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	path, lookErr := exec.LookPath(bin)
	if lookErr != nil {
		return model.ToolchainProbe{Language: lang.ID, OK: false, Detail: lookErr.Error()}
	}

	if err := cmd.Run(); err != nil {
		return model.ToolchainProbe{Language: lang.ID, CompilerPath: path, OK: false, Detail: err.Error()}
	}
	return model.ToolchainProbe{
		Language:     lang.ID,
		CompilerPath: path,
		Version:      strings.TrimSpace(firstLine(out.String())),
		OK:           true,
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func probeCommand(languageID string) (bin string, args []string) {
	switch languageID {
	case "c":
		return "gcc", []string{"--version"}
	case "cpp":
		return "g++", []string{"--version"}
	case "csharp":
		return "mcs", []string{"--version"}
	case "java":
		return "javac", []string{"-version"}
	case "javascript":
		return "node", []string{"--version"}
	case "python":
		return "python3", []string{"--version"}
	case "ruby":
		return "ruby", []string{"--version"}
	default:
		return "", nil
	}
}

// Lookup returns a registered language by id.
func (r *LanguageRegistry) Lookup(id string) (model.Language, error) {
	l, ok := r.byID[id]
	if !ok {
		return model.Language{}, appErr.Newf(appErr.LanguageUnsupported, "unknown language id %q", id)
	}
	return l, nil
}

// defaultLanguages covers the supported ids: c, cpp, csharp, java,
// javascript, python, ruby.
func defaultLanguages() []model.Language {
	return []model.Language{
		{
			ID:                      "c",
			Extensions:              []string{".c"},
			CompileRecipe:           "gcc -O2 -o {artifact} {source}",
			RunRecipe:               "{artifact}",
			DefaultTimeLimitSeconds: 2,
		},
		{
			ID:                      "cpp",
			Extensions:              []string{".cpp", ".cc", ".cxx"},
			CompileRecipe:           "g++ -O2 -std=gnu++17 -o {artifact} {source}",
			RunRecipe:               "{artifact}",
			DefaultTimeLimitSeconds: 2,
		},
		{
			ID:                      "csharp",
			Extensions:              []string{".cs"},
			CompileRecipe:           "mcs -out:{artifact}.exe {source}",
			RunRecipe:               "mono {artifact}.exe",
			DefaultTimeLimitSeconds: 4,
		},
		{
			ID:                      "java",
			Extensions:              []string{".java"},
			CompileRecipe:           "javac -d {artifact_dir} {source}",
			RunRecipe:               "java -cp {artifact_dir} Main",
			DefaultTimeLimitSeconds: 6,
		},
		{
			ID:                      "javascript",
			Extensions:              []string{".js"},
			CompileRecipe:           "",
			RunRecipe:               "node {artifact}",
			DefaultTimeLimitSeconds: 4,
		},
		{
			ID:                      "python",
			Extensions:              []string{".py"},
			CompileRecipe:           "",
			RunRecipe:               "python3 {artifact}",
			DefaultTimeLimitSeconds: 6,
		},
		{
			ID:                      "ruby",
			Extensions:              []string{".rb"},
			CompileRecipe:           "",
			RunRecipe:               "ruby {artifact}",
			DefaultTimeLimitSeconds: 6,
		},
	}
}
