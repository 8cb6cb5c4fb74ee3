// Package regression diffs a current run summary against a stored baseline:
// thresholded checks over pass rate and latency percentiles, plus per-case
// status diffs. Grounded on the teacher's features/policy/basic engine for
// the "evaluate an ordered list of named rules against two inputs, each
// producing a typed, explainable verdict" shape, adapted from request-time
// allow/deny decisions to a post-hoc baseline-vs-current diff.
package regression

import (
	"sort"

	"goa.design/runledger/summary"
)

// Thresholds mirrors suite.RegressionThresholds: the optional ceilings a
// regression diff checks. A nil field skips that check.
type Thresholds struct {
	MinPassRate          *float64
	MaxAvgWallMSDeltaPct *float64
	MaxP95WallMSDeltaPct *float64
}

// CheckStatus is the three-valued outcome of one threshold check.
type CheckStatus string

const (
	CheckPass    CheckStatus = "pass"
	CheckFail    CheckStatus = "fail"
	CheckSkipped CheckStatus = "skipped"
)

// Check reports one named threshold evaluation.
type Check struct {
	ID        string
	Status    CheckStatus
	Threshold *float64
	Baseline  float64
	Current   float64
	Delta     *float64
	DeltaPct  *float64
	Note      string
}

// CaseDiffs buckets case ids by how their presence/status changed between
// baseline and current, each sorted ascending.
type CaseDiffs struct {
	MissingInCurrent []string
	NewInCurrent     []string
	StatusChanged    []StatusChange
}

// StatusChange reports one case id present in both runs whose status
// differs.
type StatusChange struct {
	CaseID         string
	BaselineStatus string
	CurrentStatus  string
}

// MetricPoint is one metric's baseline-vs-current values, keyed by check id
// in Result.Metrics.
type MetricPoint struct {
	Baseline float64
	Current  float64
}

// Result is the full regression diff document.
type Result struct {
	BaselinePath string
	Passed       bool
	Checks       []Check
	Metrics      map[string]MetricPoint
	CaseDiffs    CaseDiffs
	Warnings     []string
}

// Diff compares current against baseline under thresholds, per SPEC_FULL.md
// §4.10.
func Diff(baselinePath string, baselineSummary, currentSummary summary.Summary, thresholds Thresholds) Result {
	res := Result{BaselinePath: baselinePath}

	if baselineSummary.SchemaVersion != currentSummary.SchemaVersion {
		res.Warnings = append(res.Warnings, "schema_version differs between baseline and current")
	}

	res.CaseDiffs = diffCases(baselineSummary.Cases, currentSummary.Cases)

	res.Checks = append(res.Checks, minPassRateCheck(thresholds.MinPassRate, baselineSummary.Aggregates.PassRate, currentSummary.Aggregates.PassRate))
	res.Checks = append(res.Checks, deltaPctCheck(
		"max_avg_wall_ms_delta_pct", thresholds.MaxAvgWallMSDeltaPct,
		baselineSummary.Aggregates.WallMS.Mean, currentSummary.Aggregates.WallMS.Mean,
	))
	res.Checks = append(res.Checks, deltaPctCheck(
		"max_p95_wall_ms_delta_pct", thresholds.MaxP95WallMSDeltaPct,
		baselineSummary.Aggregates.WallMS.P95, currentSummary.Aggregates.WallMS.P95,
	))

	res.Metrics = make(map[string]MetricPoint, len(res.Checks))
	for _, c := range res.Checks {
		res.Metrics[c.ID] = MetricPoint{Baseline: c.Baseline, Current: c.Current}
	}

	res.Passed = true
	for _, c := range res.Checks {
		if c.Status == CheckFail {
			res.Passed = false
		}
	}
	return res
}

func minPassRateCheck(threshold *float64, baselinePassRate, currentPassRate float64) Check {
	c := Check{ID: "min_pass_rate", Threshold: threshold, Baseline: baselinePassRate, Current: currentPassRate}
	if threshold == nil {
		c.Status = CheckSkipped
		c.Note = "no min_pass_rate threshold configured"
		return c
	}
	if currentPassRate >= *threshold {
		c.Status = CheckPass
	} else {
		c.Status = CheckFail
	}
	return c
}

func deltaPctCheck(id string, threshold *float64, baselineValue, currentValue float64) Check {
	c := Check{ID: id, Threshold: threshold, Baseline: baselineValue, Current: currentValue}
	if threshold == nil {
		c.Status = CheckSkipped
		c.Note = "no threshold configured"
		return c
	}
	if baselineValue == 0 {
		c.Status = CheckSkipped
		c.Note = "baseline value is zero or missing"
		return c
	}
	deltaPct := (currentValue - baselineValue) / baselineValue
	c.DeltaPct = &deltaPct
	if deltaPct <= *threshold {
		c.Status = CheckPass
	} else {
		c.Status = CheckFail
	}
	return c
}

func diffCases(baselineCases, currentCases []summary.CaseRecord) CaseDiffs {
	baseByID := make(map[string]summary.CaseRecord, len(baselineCases))
	for _, c := range baselineCases {
		baseByID[c.CaseID] = c
	}
	curByID := make(map[string]summary.CaseRecord, len(currentCases))
	for _, c := range currentCases {
		curByID[c.CaseID] = c
	}

	var diffs CaseDiffs
	for id, b := range baseByID {
		c, ok := curByID[id]
		if !ok {
			diffs.MissingInCurrent = append(diffs.MissingInCurrent, id)
			continue
		}
		if b.Status != c.Status {
			diffs.StatusChanged = append(diffs.StatusChanged, StatusChange{
				CaseID: id, BaselineStatus: b.Status, CurrentStatus: c.Status,
			})
		}
	}
	for id := range curByID {
		if _, ok := baseByID[id]; !ok {
			diffs.NewInCurrent = append(diffs.NewInCurrent, id)
		}
	}

	sort.Strings(diffs.MissingInCurrent)
	sort.Strings(diffs.NewInCurrent)
	sort.SliceStable(diffs.StatusChanged, func(i, j int) bool {
		return diffs.StatusChanged[i].CaseID < diffs.StatusChanged[j].CaseID
	})
	return diffs
}
