// Package config is the out-of-core loader: it parses a suite's YAML
// manifest and its per-case YAML files on disk into the typed suite.Config/
// suite.CaseConfig records the core consumes. Grounded on the teacher's own
// YAML/JSON-first generated-service config style (gopkg.in/yaml.v3), per
// SPEC_FULL.md §8.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"goa.design/runledger/assertion"
	"goa.design/runledger/budget"
	"goa.design/runledger/suite"
)

// LoadError reports a malformed or unreadable config file.
type LoadError struct {
	Path   string
	Reason string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("config: %s (path=%s)", e.Reason, e.Path)
}

type assertionFile struct {
	Type       string   `yaml:"type"`
	Fields     []string `yaml:"fields,omitempty"`
	SchemaPath string   `yaml:"schema_path,omitempty"`
	Tools      []string `yaml:"tools,omitempty"`
}

func (f assertionFile) toSpec() assertion.Spec {
	return assertion.Spec{
		Type:       assertion.Type(f.Type),
		Fields:     f.Fields,
		SchemaPath: f.SchemaPath,
		Tools:      f.Tools,
	}
}

type budgetFile struct {
	MaxWallMS     *int64   `yaml:"max_wall_ms,omitempty"`
	MaxToolCalls  *int64   `yaml:"max_tool_calls,omitempty"`
	MaxToolErrors *int64   `yaml:"max_tool_errors,omitempty"`
	MaxTokensOut  *int64   `yaml:"max_tokens_out,omitempty"`
	MaxCostUSD    *float64 `yaml:"max_cost_usd,omitempty"`
}

func (f *budgetFile) toSpec() *budget.Spec {
	if f == nil {
		return nil
	}
	return &budget.Spec{
		MaxWallMS:     f.MaxWallMS,
		MaxToolCalls:  f.MaxToolCalls,
		MaxToolErrors: f.MaxToolErrors,
		MaxTokensOut:  f.MaxTokensOut,
		MaxCostUSD:    f.MaxCostUSD,
	}
}

type regressionThresholdsFile struct {
	MinPassRate          *float64 `yaml:"min_pass_rate,omitempty"`
	MaxAvgWallMSDeltaPct *float64 `yaml:"max_avg_wall_ms_delta_pct,omitempty"`
	MaxP95WallMSDeltaPct *float64 `yaml:"max_p95_wall_ms_delta_pct,omitempty"`
}

// suiteFile is the on-disk shape of a suite manifest (suite.yaml).
type suiteFile struct {
	Name              string                    `yaml:"name"`
	Argv              []string                  `yaml:"argv"`
	Mode              string                    `yaml:"mode"`
	CasesDir          string                    `yaml:"cases_dir"`
	AllowedTools      []string                  `yaml:"allowed_tools"`
	UserToolModule    string                    `yaml:"user_tool_module,omitempty"`
	Assertions        []assertionFile           `yaml:"assertions,omitempty"`
	Budget            *budgetFile               `yaml:"budget,omitempty"`
	Regression        *regressionThresholdsFile `yaml:"regression,omitempty"`
	BaselinePath      string                    `yaml:"baseline_path,omitempty"`
	OutputDir         string                    `yaml:"output_dir,omitempty"`
	ReceiveDeadlineMS int64                     `yaml:"receive_deadline_ms,omitempty"`
}

// caseFile is the on-disk shape of one case file.
type caseFile struct {
	ID           string          `yaml:"id"`
	Description  string          `yaml:"description,omitempty"`
	Input        map[string]any  `yaml:"input"`
	CassettePath string          `yaml:"cassette_path,omitempty"`
	Assertions   []assertionFile `yaml:"assertions,omitempty"`
	Budget       *budgetFile     `yaml:"budget,omitempty"`
}

// LoadSuite reads suitePath (a YAML manifest) and every *.yaml/*.yml file in
// its declared cases directory, returning the suite's Config and its
// CaseConfig list sorted by id. Relative paths (cases_dir, baseline_path,
// output_dir) are resolved against suitePath's directory, and each case's
// cassette_path against the cases directory, at load time, matching §5's
// "paths resolved once, at config load time" rule.
func LoadSuite(suitePath string) (suite.Config, []suite.CaseConfig, error) {
	suiteDir := filepath.Dir(suitePath)

	b, err := os.ReadFile(suitePath) // #nosec G304 -- operator-supplied CLI path
	if err != nil {
		return suite.Config{}, nil, &LoadError{Path: suitePath, Reason: err.Error()}
	}
	var sf suiteFile
	if err := yaml.Unmarshal(b, &sf); err != nil {
		return suite.Config{}, nil, &LoadError{Path: suitePath, Reason: "malformed YAML: " + err.Error()}
	}
	if sf.Name == "" {
		return suite.Config{}, nil, &LoadError{Path: suitePath, Reason: "missing required field \"name\""}
	}
	if len(sf.Argv) == 0 {
		return suite.Config{}, nil, &LoadError{Path: suitePath, Reason: "missing required field \"argv\""}
	}

	allowed := make(map[string]struct{}, len(sf.AllowedTools))
	for _, t := range sf.AllowedTools {
		allowed[t] = struct{}{}
	}
	assertions := make([]assertion.Spec, 0, len(sf.Assertions))
	for _, a := range sf.Assertions {
		assertions = append(assertions, a.toSpec())
	}

	cfg := suite.Config{
		Name:              sf.Name,
		Argv:              sf.Argv,
		Mode:              suite.Mode(sf.Mode),
		CasesDir:          resolve(suiteDir, sf.CasesDir),
		SuiteDir:          suiteDir,
		AllowedTools:      allowed,
		UserToolModule:    sf.UserToolModule,
		Assertions:        assertions,
		Budget:            sf.Budget.toSpec(),
		BaselinePath:      resolveOptional(suiteDir, sf.BaselinePath),
		OutputDir:         resolveOptional(suiteDir, sf.OutputDir),
		ReceiveDeadlineMS: sf.ReceiveDeadlineMS,
	}
	if sf.Regression != nil {
		cfg.RegressionThresh = &suite.RegressionThresholds{
			MinPassRate:          sf.Regression.MinPassRate,
			MaxAvgWallMSDeltaPct: sf.Regression.MaxAvgWallMSDeltaPct,
			MaxP95WallMSDeltaPct: sf.Regression.MaxP95WallMSDeltaPct,
		}
	}

	cases, err := loadCases(cfg.CasesDir)
	if err != nil {
		return suite.Config{}, nil, err
	}
	return cfg, cases, nil
}

func loadCases(casesDir string) ([]suite.CaseConfig, error) {
	entries, err := os.ReadDir(casesDir)
	if err != nil {
		return nil, &LoadError{Path: casesDir, Reason: "read cases directory: " + err.Error()}
	}

	var cases []suite.CaseConfig
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		path := filepath.Join(casesDir, name)
		b, err := os.ReadFile(path) // #nosec G304 -- path enumerated from the configured cases directory
		if err != nil {
			return nil, &LoadError{Path: path, Reason: err.Error()}
		}
		var cf caseFile
		if err := yaml.Unmarshal(b, &cf); err != nil {
			return nil, &LoadError{Path: path, Reason: "malformed YAML: " + err.Error()}
		}
		if cf.ID == "" {
			cf.ID = strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		}

		caseAssertions := make([]assertion.Spec, 0, len(cf.Assertions))
		for _, a := range cf.Assertions {
			caseAssertions = append(caseAssertions, a.toSpec())
		}
		cases = append(cases, suite.CaseConfig{
			ID:           cf.ID,
			Description:  cf.Description,
			Input:        cf.Input,
			CassettePath: resolveOptional(casesDir, cf.CassettePath),
			Assertions:   caseAssertions,
			Budget:       cf.Budget.toSpec(),
		})
	}
	sort.SliceStable(cases, func(i, j int) bool { return cases[i].ID < cases[j].ID })
	return cases, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func resolveOptional(base, path string) string {
	if path == "" {
		return ""
	}
	return resolve(base, path)
}
