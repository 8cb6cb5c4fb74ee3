package baseline_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/runledger/baseline"
	"goa.design/runledger/summary"
)

func TestWriteThenLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "baseline.json")
	s := summary.Summary{
		SchemaVersion:    1,
		GeneratedAt:      "2026-01-01T00:00:00Z",
		RunledgerVersion: "0.1.0",
		Run:              summary.RunInfo{RunID: "r1"},
		Suite:            summary.SuiteMeta{Name: "demo"},
		Aggregates:       summary.Aggregates{CasesTotal: 1, CasesPass: 1, PassRate: 1},
		Cases:            []summary.CaseRecord{{CaseID: "t1", Status: "pass", Passed: true}},
	}

	require.NoError(t, baseline.Write(path, s))
	loaded, err := baseline.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", loaded.Suite.Name)
	assert.Equal(t, 1, loaded.Aggregates.CasesTotal)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := baseline.Load("/nonexistent/baseline.json")
	require.Error(t, err)
}

func TestLoad_MissingRequiredKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "baseline.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schema_version":1}`), 0o600))
	_, err := baseline.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generated_at")
}

func TestLoad_TolerratesUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "baseline.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"schema_version": 1, "generated_at": "2026-01-01T00:00:00Z", "runledger_version": "0.1.0",
		"run": {}, "suite": {"name": "demo"}, "aggregates": {"cases_total": 1}, "cases": [],
		"totally_unknown_field": true
	}`), 0o600))
	loaded, err := baseline.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", loaded.Suite.Name)
}
