// Package baseline loads and writes the baseline summary document: the JSON
// file a future run's regression engine diffs against. Grounded on the
// teacher's cmd/regolden pattern of "read current, write formatted JSON file"
// for golden-file updates, adapted from Goa codegen goldens to run summaries.
package baseline

import (
	"encoding/json"
	"fmt"
	"os"

	"goa.design/runledger/summary"
)

// LoadError reports a missing or malformed baseline file.
type LoadError struct {
	Path   string
	Reason string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("baseline: %s (path=%s)", e.Reason, e.Path)
}

var requiredKeys = []string{"schema_version", "generated_at", "runledger_version", "run", "suite", "aggregates", "cases"}

// Load reads and decodes the baseline file at path, checking only that the
// required top-level keys from §6 are present; unknown fields are tolerated.
func Load(path string) (summary.Summary, error) {
	b, err := os.ReadFile(path) // #nosec G304 -- path is an operator-supplied CLI flag
	if err != nil {
		return summary.Summary{}, &LoadError{Path: path, Reason: err.Error()}
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return summary.Summary{}, &LoadError{Path: path, Reason: "malformed JSON: " + err.Error()}
	}
	for _, k := range requiredKeys {
		if _, ok := raw[k]; !ok {
			return summary.Summary{}, &LoadError{Path: path, Reason: fmt.Sprintf("missing required key %q", k)}
		}
	}

	var doc summary.Summary
	if err := json.Unmarshal(b, &doc); err != nil {
		return summary.Summary{}, &LoadError{Path: path, Reason: "decode: " + err.Error()}
	}
	return doc, nil
}

// Write serializes s as indented JSON to path, creating or truncating it.
// Baselines are only ever written explicitly by an operator action (never
// automatically by a suite run), per §1's non-goal "modifying baselines
// automatically".
func Write(path string, s summary.Summary) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("baseline: marshal: %w", err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("baseline: write %s: %w", path, err)
	}
	return nil
}
