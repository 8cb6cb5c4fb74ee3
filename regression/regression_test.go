package regression_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/runledger/regression"
	"goa.design/runledger/summary"
)

func f64(v float64) *float64 { return &v }

func sum(passRate, mean, p95 float64, cases ...summary.CaseRecord) summary.Summary {
	return summary.Summary{
		SchemaVersion: 1,
		Aggregates: summary.Aggregates{
			PassRate: passRate,
			WallMS:   summary.MetricSummary{Mean: mean, P95: p95},
		},
		Cases: cases,
	}
}

func TestDiff_S6RegressionScenario(t *testing.T) {
	baselineSummary := sum(1.0, 100, 100)
	currentSummary := sum(1.0, 140, 140)
	thresholds := regression.Thresholds{
		MinPassRate:          f64(1.0),
		MaxAvgWallMSDeltaPct: f64(0.2),
		MaxP95WallMSDeltaPct: f64(0.2),
	}

	res := regression.Diff("baseline.json", baselineSummary, currentSummary, thresholds)

	require.False(t, res.Passed)
	byID := map[string]regression.Check{}
	for _, c := range res.Checks {
		byID[c.ID] = c
	}
	assert.Equal(t, regression.CheckPass, byID["min_pass_rate"].Status)
	assert.Equal(t, regression.CheckFail, byID["max_avg_wall_ms_delta_pct"].Status)
	require.NotNil(t, byID["max_avg_wall_ms_delta_pct"].DeltaPct)
	assert.InDelta(t, 0.4, *byID["max_avg_wall_ms_delta_pct"].DeltaPct, 1e-9)
	assert.Equal(t, regression.CheckFail, byID["max_p95_wall_ms_delta_pct"].Status)

	require.Contains(t, res.Metrics, "max_avg_wall_ms_delta_pct")
	assert.Equal(t, regression.MetricPoint{Baseline: 100, Current: 140}, res.Metrics["max_avg_wall_ms_delta_pct"])
	assert.Equal(t, regression.MetricPoint{Baseline: 1.0, Current: 1.0}, res.Metrics["min_pass_rate"])
}

func TestDiff_NilThresholdsSkipAllChecks(t *testing.T) {
	res := regression.Diff("b.json", sum(0.5, 10, 10), sum(0.9, 10, 10), regression.Thresholds{})
	require.True(t, res.Passed)
	for _, c := range res.Checks {
		assert.Equal(t, regression.CheckSkipped, c.Status)
	}
}

func TestDiff_ZeroBaselineMeanSkipsDeltaCheck(t *testing.T) {
	res := regression.Diff("b.json", sum(1, 0, 0), sum(1, 50, 50), regression.Thresholds{MaxAvgWallMSDeltaPct: f64(0.1)})
	byID := map[string]regression.Check{}
	for _, c := range res.Checks {
		byID[c.ID] = c
	}
	assert.Equal(t, regression.CheckSkipped, byID["max_avg_wall_ms_delta_pct"].Status)
}

func TestDiff_SchemaVersionMismatchWarns(t *testing.T) {
	baselineSummary := sum(1, 10, 10)
	baselineSummary.SchemaVersion = 0
	res := regression.Diff("b.json", baselineSummary, sum(1, 10, 10), regression.Thresholds{})
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "schema_version")
}

func TestDiff_CaseDiffsSortedAndBucketed(t *testing.T) {
	baselineSummary := sum(1, 10, 10,
		summary.CaseRecord{CaseID: "b1", Status: "pass"},
		summary.CaseRecord{CaseID: "shared", Status: "pass"},
		summary.CaseRecord{CaseID: "was_pass", Status: "pass"},
	)
	currentSummary := sum(1, 10, 10,
		summary.CaseRecord{CaseID: "shared", Status: "pass"},
		summary.CaseRecord{CaseID: "was_pass", Status: "fail"},
		summary.CaseRecord{CaseID: "new1", Status: "pass"},
	)

	res := regression.Diff("b.json", baselineSummary, currentSummary, regression.Thresholds{})
	assert.Equal(t, []string{"b1"}, res.CaseDiffs.MissingInCurrent)
	assert.Equal(t, []string{"new1"}, res.CaseDiffs.NewInCurrent)
	require.Len(t, res.CaseDiffs.StatusChanged, 1)
	assert.Equal(t, "was_pass", res.CaseDiffs.StatusChanged[0].CaseID)
	assert.Equal(t, "pass", res.CaseDiffs.StatusChanged[0].BaselineStatus)
	assert.Equal(t, "fail", res.CaseDiffs.StatusChanged[0].CurrentStatus)
}
