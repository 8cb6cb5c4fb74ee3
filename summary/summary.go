// Package summary folds a SuiteResult into the serializable Summary
// document: percentile aggregates, one record per case, and the derived
// exit status. Grounded on the teacher's features/run aggregation shape
// (fold a run's steps into a persisted document) adapted from per-session
// token/latency rollups to per-suite pass/fail/percentile rollups.
package summary

import (
	"math"
	"sort"

	"goa.design/runledger/assertion"
	"goa.design/runledger/suite"
)

const SchemaVersion = 1

// RunMeta carries the run-level metadata the core itself cannot derive
// (git commit, CI flag, a version string) — it is supplied by the caller
// (the reference CLI) at build time.
type RunMeta struct {
	RunID            string
	Mode             string
	GitCommit        string
	CI               bool
	RunledgerVersion string
}

// SuiteMeta carries the suite-level metadata mirrored into the summary.
type SuiteMeta struct {
	Name           string   `json:"name"`
	Path           string   `json:"path"`
	Argv           []string `json:"argv"`
	ToolMode       string   `json:"tool_mode"`
	SuiteConfigSHA string   `json:"suite_config_hash"`
}

// MetricSummary is a five-number summary (min, p50, p95, mean, max) over the
// numeric subset of one metric's values across cases.
type MetricSummary struct {
	Min  float64 `json:"min"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
}

// Aggregates is the suite-wide rollup over every case's CaseResult.
type Aggregates struct {
	CasesTotal int     `json:"cases_total"`
	CasesPass  int     `json:"cases_pass"`
	CasesFail  int     `json:"cases_fail"`
	CasesError int     `json:"cases_error"`
	PassRate   float64 `json:"pass_rate"`

	WallMS     MetricSummary `json:"wall_ms"`
	ToolCalls  MetricSummary `json:"tool_calls"`
	ToolErrors MetricSummary `json:"tool_errors"`
	TokensIn   MetricSummary `json:"tokens_in"`
	TokensOut  MetricSummary `json:"tokens_out"`
	CostUSD    MetricSummary `json:"cost_usd"`
	Steps      MetricSummary `json:"steps"`
}

// CaseRecord mirrors one CaseResult in the shape the Summary document
// serializes.
type CaseRecord struct {
	CaseID            string               `json:"case_id"`
	Status            string               `json:"status"`
	Passed            bool                 `json:"passed"`
	Output            map[string]any       `json:"output,omitempty"`
	WallMS            int64                `json:"wall_ms"`
	ToolCalls         int64                `json:"tool_calls"`
	ToolErrors        int64                `json:"tool_errors"`
	AssertionsTotal   int                  `json:"assertions_total"`
	AssertionsFailed  int                  `json:"assertions_failed"`
	AssertionFailures []assertion.Failure  `json:"assertion_failures,omitempty"`
	TokensIn          *int64               `json:"tokens_in,omitempty"`
	TokensOut         *int64               `json:"tokens_out,omitempty"`
	CostUSD           *float64             `json:"cost_usd,omitempty"`
	Steps             *int64               `json:"steps,omitempty"`
	CassettePath      string               `json:"cassette_path,omitempty"`
	CassetteSHA256    string               `json:"cassette_sha256,omitempty"`
	FailureType       string               `json:"failure_type,omitempty"`
	FailureMessage    string               `json:"failure_message,omitempty"`
}

// PolicySnapshot echoes the regression thresholds that would apply on a
// future diff against this summary as a baseline.
type PolicySnapshot struct {
	MinPassRate          *float64 `json:"min_pass_rate,omitempty"`
	MaxAvgWallMSDeltaPct *float64 `json:"max_avg_wall_ms_delta_pct,omitempty"`
	MaxP95WallMSDeltaPct *float64 `json:"max_p95_wall_ms_delta_pct,omitempty"`
}

// Summary is the serializable document: the sole input to the regression
// engine and external artifact writers.
type Summary struct {
	SchemaVersion    int       `json:"schema_version"`
	GeneratedAt      string    `json:"generated_at"`
	RunledgerVersion string    `json:"runledger_version"`
	Run              RunInfo   `json:"run"`
	Suite            SuiteMeta `json:"suite"`

	Aggregates Aggregates   `json:"aggregates"`
	Cases      []CaseRecord `json:"cases"`

	PolicySnapshot *PolicySnapshot `json:"policy_snapshot,omitempty"`
}

// RunInfo is the "run" block of the summary document: run_id, mode,
// exit_status, git commit, ci.
type RunInfo struct {
	RunID      string `json:"run_id"`
	Mode       string `json:"mode"`
	ExitStatus string `json:"exit_status"`
	GitCommit  string `json:"git_commit,omitempty"`
	CI         bool   `json:"ci"`
}

// errorFailureTypes is the subset of suite.FailureKind that derives case
// status "error" rather than "fail", mirrored from suite.FailureKind.Status
// so the summary builder does not need to import suite's private table.
var errorFailureTypes = map[suite.FailureKind]struct{}{
	suite.FailureAgentError:    {},
	suite.FailureCassetteError: {},
	suite.FailureTaskError:     {},
}

// Build folds result into a Summary. generatedAt must already be formatted
// RFC-3339 with a "Z" suffix; the builder does not read the clock itself so
// callers control determinism in tests.
func Build(result suite.SuiteResult, sm SuiteMeta, rm RunMeta, generatedAt string, policy *PolicySnapshot) Summary {
	cases := append([]suite.CaseResult(nil), result.Cases...)
	sort.SliceStable(cases, func(i, j int) bool { return cases[i].CaseID < cases[j].CaseID })

	records := make([]CaseRecord, 0, len(cases))
	var wallMS, toolCalls, toolErrors, tokensIn, tokensOut, costUSD, steps []float64
	hasError, hasFail := false, false

	for _, c := range cases {
		status := caseStatus(c)
		switch status {
		case "error":
			hasError = true
		case "fail":
			hasFail = true
		}
		rec := CaseRecord{
			CaseID:            c.CaseID,
			Status:            status,
			Passed:            status == "pass",
			Output:            c.Output,
			WallMS:            c.WallMS,
			ToolCalls:         c.ToolCalls,
			ToolErrors:        c.ToolErrors,
			AssertionsTotal:   c.AssertionsTotal,
			AssertionsFailed:  c.AssertionsFailed,
			AssertionFailures: c.AssertionFailures,
			TokensIn:          c.TokensIn,
			TokensOut:         c.TokensOut,
			CostUSD:           c.CostUSD,
			Steps:             c.Steps,
			CassettePath:      c.CassettePath,
			CassetteSHA256:    c.CassetteSHA256,
		}
		if c.Failure != nil {
			rec.FailureType = string(c.Failure.Type)
			rec.FailureMessage = c.Failure.Message
		}
		records = append(records, rec)

		wallMS = append(wallMS, float64(c.WallMS))
		toolCalls = append(toolCalls, float64(c.ToolCalls))
		toolErrors = append(toolErrors, float64(c.ToolErrors))
		if c.TokensIn != nil {
			tokensIn = append(tokensIn, float64(*c.TokensIn))
		}
		if c.TokensOut != nil {
			tokensOut = append(tokensOut, float64(*c.TokensOut))
		}
		if c.CostUSD != nil {
			costUSD = append(costUSD, *c.CostUSD)
		}
		if c.Steps != nil {
			steps = append(steps, float64(*c.Steps))
		}
	}

	agg := Aggregates{
		CasesTotal: len(cases),
		CasesPass:  result.CasesPass(),
		CasesFail:  result.CasesFail(),
		CasesError: result.CasesError(),
		PassRate:   result.PassRate(),
		WallMS:     summarize(wallMS),
		ToolCalls:  summarize(toolCalls),
		ToolErrors: summarize(toolErrors),
		TokensIn:   summarize(tokensIn),
		TokensOut:  summarize(tokensOut),
		CostUSD:    summarize(costUSD),
		Steps:      summarize(steps),
	}

	exitStatus := "success"
	if hasError {
		exitStatus = "error"
	} else if hasFail {
		exitStatus = "failed"
	}

	return Summary{
		SchemaVersion:    SchemaVersion,
		GeneratedAt:      generatedAt,
		RunledgerVersion: rm.RunledgerVersion,
		Run: RunInfo{
			RunID:      rm.RunID,
			Mode:       rm.Mode,
			ExitStatus: exitStatus,
			GitCommit:  rm.GitCommit,
			CI:         rm.CI,
		},
		Suite:          sm,
		Aggregates:     agg,
		Cases:          records,
		PolicySnapshot: policy,
	}
}

// ApplyRegressionFailure marks exit status "failed" when the suite itself
// passed but a regression diff did not, per §4.9's exit-status rule.
func (s *Summary) ApplyRegressionFailure(regressionPassed bool) {
	if !regressionPassed && s.Run.ExitStatus == "success" {
		s.Run.ExitStatus = "failed"
	}
}

func caseStatus(c suite.CaseResult) string {
	if c.Failure == nil {
		return "pass"
	}
	if _, ok := errorFailureTypes[c.Failure.Type]; ok {
		return "error"
	}
	return "fail"
}

func summarize(values []float64) MetricSummary {
	if len(values) == 0 {
		return MetricSummary{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return MetricSummary{
		Min:  sorted[0],
		P50:  percentile(sorted, 50),
		P95:  percentile(sorted, 95),
		Mean: sum / float64(len(sorted)),
		Max:  sorted[len(sorted)-1],
	}
}

// percentile implements §4.9's rank rule: rank = clamp(ceil(p*n/100)-1, 0, n-1).
// sorted must already be ascending.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	rank := int(math.Ceil(p*float64(n)/100)) - 1
	if rank < 0 {
		rank = 0
	}
	if rank > n-1 {
		rank = n - 1
	}
	return sorted[rank]
}
