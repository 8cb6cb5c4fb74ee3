package artifact_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/runledger/artifact"
	"goa.design/runledger/suite"
	"goa.design/runledger/summary"
)

func sampleSummary() summary.Summary {
	return summary.Build(
		suite.SuiteResult{
			SuiteName: "demo",
			Cases: []suite.CaseResult{
				{CaseID: "t1", WallMS: 100, ToolCalls: 2},
				{CaseID: "t2", WallMS: 200, Failure: &suite.Failure{Type: suite.FailureAssertionFailed, Message: "missing field `ticket_id`"}},
			},
		},
		summary.SuiteMeta{Name: "demo"},
		summary.RunMeta{RunID: "20260101-000000Z-abc123", Mode: "replay", RunledgerVersion: "test"},
		"2026-01-01T00:00:00Z",
		nil,
	)
}

func sampleResult() suite.SuiteResult {
	return suite.SuiteResult{
		SuiteName: "demo",
		Cases: []suite.CaseResult{
			{
				CaseID: "t1",
				Trace: []suite.TraceEvent{
					{Kind: suite.EventTaskStart, Data: map[string]any{"input": map[string]any{"ticket": "reset password"}}},
					{Kind: suite.EventToolCall, Data: map[string]any{"name": "search_docs", "api_key": "sk-should-be-redacted-1234567890"}},
					{Kind: suite.EventCaseEnd, Data: map[string]any{"status": "pass"}},
				},
			},
		},
	}
}

func TestWriteJUnit_OneTestcasePerCaseWithFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "junit.xml")
	require.NoError(t, artifact.WriteJUnit(path, sampleSummary()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(b)
	assert.Contains(t, body, `name="t1"`)
	assert.Contains(t, body, `name="t2"`)
	assert.Contains(t, body, "<failure")
	assert.Contains(t, body, "missing field")
}

func TestWriteRunJSONL_RedactsSensitiveKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.jsonl")
	require.NoError(t, artifact.WriteRunJSONL(path, sampleResult()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(b)
	assert.Contains(t, body, `"case_id":"t1"`)
	assert.Contains(t, body, `"kind":"task_start"`)
	assert.NotContains(t, body, "sk-should-be-redacted")
	assert.Contains(t, body, "[REDACTED]")
}

func TestWriteHTMLReport_RendersSuiteAndCaseRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.html")
	require.NoError(t, artifact.WriteHTMLReport(path, sampleSummary()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(b)
	assert.Contains(t, body, "demo")
	assert.Contains(t, body, "t1")
	assert.Contains(t, body, "t2")
	assert.Contains(t, body, "status-fail")
}
