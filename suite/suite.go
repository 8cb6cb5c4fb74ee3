package suite

import (
	"context"
	"time"

	"goa.design/runledger/transport"
)

// OpenAgentTransport is the production OpenTransportFunc, opening one real
// subprocess per case via the transport package.
func OpenAgentTransport(deadlineMS int64) OpenTransportFunc {
	return func(ctx context.Context, argv []string) (Transport, error) {
		var deadline time.Duration
		if deadlineMS > 0 {
			deadline = time.Duration(deadlineMS) * time.Millisecond
		}
		return transport.Open(ctx, transport.Options{Command: argv, Deadline: deadline})
	}
}

// Run drives every case in cases sequentially against e.Config and returns
// the aggregated SuiteResult. Cases do not share transport or cassette
// state; a case's failure never aborts the remaining cases, matching §7's
// rule that subsequent cases still run.
func (e *Engine) Run(ctx context.Context, cases []CaseConfig) SuiteResult {
	result := SuiteResult{SuiteName: e.Config.Name}
	for _, cc := range cases {
		result.Cases = append(result.Cases, e.RunCase(ctx, cc))
	}
	return result
}
