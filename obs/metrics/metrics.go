// Package metrics is the reference CLI's narrow metrics seam: a Recorder
// interface with a Prometheus-backed implementation and a Noop
// implementation, mirroring the teacher's telemetry.Metrics/ClueMetrics/
// NoopMetrics trio, but backed directly by prometheus/client_golang rather
// than an OTel meter since nothing here needs OTLP export.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder is the metrics surface cmd/runledger depends on; the suite engine
// itself records no metrics.
type Recorder interface {
	IncCases(status string)
	ObserveCaseWallMS(v float64)
	SetPassRate(v float64)
}

// Prometheus records suite-run metrics into a prometheus.Registerer: a
// counter vector for cases by status, a histogram for per-case wall-clock
// time, and a gauge for the most recent suite pass rate.
type Prometheus struct {
	cases      *prometheus.CounterVec
	caseWallMS prometheus.Histogram
	passRate   prometheus.Gauge
}

// NewPrometheus registers and returns a Prometheus recorder. Call once per
// process; registering the same collectors twice on the same registerer
// panics, matching prometheus/client_golang's own contract.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runledger",
			Name:      "cases_total",
			Help:      "Count of cases run, labeled by status (pass, fail, error).",
		}, []string{"status"}),
		caseWallMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "runledger",
			Name:      "case_wall_ms",
			Help:      "Per-case wall-clock duration in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 12),
		}),
		passRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "runledger",
			Name:      "suite_pass_rate",
			Help:      "Pass rate of the most recently completed suite run.",
		}),
	}
	reg.MustRegister(p.cases, p.caseWallMS, p.passRate)
	return p
}

func (p *Prometheus) IncCases(status string)      { p.cases.WithLabelValues(status).Inc() }
func (p *Prometheus) ObserveCaseWallMS(v float64)  { p.caseWallMS.Observe(v) }
func (p *Prometheus) SetPassRate(v float64)        { p.passRate.Set(v) }

// Noop discards every call.
type Noop struct{}

func (Noop) IncCases(string)          {}
func (Noop) ObserveCaseWallMS(float64) {}
func (Noop) SetPassRate(float64)       {}
