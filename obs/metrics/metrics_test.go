package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/runledger/obs/metrics"
)

func TestPrometheus_IncCasesIncrementsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheus(reg)

	rec.IncCases("pass")
	rec.IncCases("pass")
	rec.IncCases("fail")

	families, err := reg.Gather()
	require.NoError(t, err)

	var passCount, failCount float64
	for _, fam := range families {
		if fam.GetName() != "runledger_cases_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" {
					switch l.GetValue() {
					case "pass":
						passCount = m.GetCounter().GetValue()
					case "fail":
						failCount = m.GetCounter().GetValue()
					}
				}
			}
		}
	}
	assert.Equal(t, float64(2), passCount)
	assert.Equal(t, float64(1), failCount)
}

func TestPrometheus_SetPassRate(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheus(reg)
	rec.SetPassRate(0.75)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, fam := range families {
		if fam.GetName() != "runledger_suite_pass_rate" {
			continue
		}
		found = true
		require.Len(t, fam.GetMetric(), 1)
		assert.InDelta(t, 0.75, fam.GetMetric()[0].GetGauge().GetValue(), 1e-9)
	}
	assert.True(t, found)
}

func TestNoop_DoesNotPanic(t *testing.T) {
	var rec metrics.Recorder = metrics.Noop{}
	rec.IncCases("pass")
	rec.ObserveCaseWallMS(10)
	rec.SetPassRate(1)
}
