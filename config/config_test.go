package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/runledger/config"
	"goa.design/runledger/suite"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadSuite_ResolvesRelativePathsAgainstSuiteDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "suite.yaml"), `
name: demo
argv: ["./agent"]
mode: replay
cases_dir: cases
allowed_tools: ["search_docs"]
baseline_path: baseline.json
`)
	writeFile(t, filepath.Join(dir, "cases", "t1.yaml"), `
input:
  ticket: "reset password"
cassette_path: t1.jsonl
`)

	cfg, cases, err := config.LoadSuite(filepath.Join(dir, "suite.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, suite.ModeReplay, cfg.Mode)
	assert.Equal(t, filepath.Join(dir, "cases"), cfg.CasesDir)
	assert.Equal(t, filepath.Join(dir, "baseline.json"), cfg.BaselinePath)
	_, allowed := cfg.AllowedTools["search_docs"]
	assert.True(t, allowed)

	require.Len(t, cases, 1)
	assert.Equal(t, "t1", cases[0].ID)
	assert.Equal(t, filepath.Join(dir, "cases", "t1.jsonl"), cases[0].CassettePath)
	assert.Equal(t, "reset password", cases[0].Input["ticket"])
}

func TestLoadSuite_CaseIDExplicitOverridesFilename(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "suite.yaml"), `
name: demo
argv: ["./agent"]
mode: live
cases_dir: cases
allowed_tools: []
`)
	writeFile(t, filepath.Join(dir, "cases", "weird_file.yaml"), `
id: t1
input: {}
`)

	_, cases, err := config.LoadSuite(filepath.Join(dir, "suite.yaml"))
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "t1", cases[0].ID)
}

func TestLoadSuite_CasesSortedByID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "suite.yaml"), `
name: demo
argv: ["./agent"]
mode: live
cases_dir: cases
allowed_tools: []
`)
	writeFile(t, filepath.Join(dir, "cases", "b.yaml"), `input: {}`)
	writeFile(t, filepath.Join(dir, "cases", "a.yaml"), `input: {}`)

	_, cases, err := config.LoadSuite(filepath.Join(dir, "suite.yaml"))
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "a", cases[0].ID)
	assert.Equal(t, "b", cases[1].ID)
}

func TestLoadSuite_MissingNameFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "suite.yaml"), `argv: ["./agent"]`)
	_, _, err := config.LoadSuite(filepath.Join(dir, "suite.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestLoadSuite_MissingFile(t *testing.T) {
	_, _, err := config.LoadSuite("/nonexistent/suite.yaml")
	require.Error(t, err)
}
