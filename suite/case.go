package suite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"goa.design/runledger/assertion"
	"goa.design/runledger/budget"
	"goa.design/runledger/cassette"
	"goa.design/runledger/protocol"
	"goa.design/runledger/toolregistry"
)

// Transport is the narrow view of transport.Transport the case engine
// depends on. Tests inject a fake; production wires *transport.Transport,
// which already satisfies this interface.
type Transport interface {
	Send(protocol.Message) error
	Receive(ctx context.Context) (protocol.Message, error)
	Close() error
	StderrTail() []string
}

// OpenTransportFunc opens a Transport for one case's agent subprocess.
type OpenTransportFunc func(ctx context.Context, argv []string) (Transport, error)

// Engine drives cases for one suite run. It is constructed once per suite;
// the tool registry (record/live mode only) is resolved once and reused
// across every case, matching §4.4's "immutable after resolution" rule,
// while a fresh Transport is opened per case, matching §5's
// "no cross-case state leaks" rule.
type Engine struct {
	Config        Config
	Registry      *toolregistry.Registry // nil in replay mode
	OpenTransport OpenTransportFunc
}

// RunCase drives one case end-to-end per SPEC_FULL.md §4.5's algorithm: the
// first failure encountered wins, and later conditions are not checked.
func (e *Engine) RunCase(ctx context.Context, cc CaseConfig) CaseResult {
	start := time.Now()
	res := CaseResult{
		CaseID:           cc.ID,
		ToolCallsByName:  ToolCallHistogram{},
		ToolErrorsByName: ToolCallHistogram{},
		AssertionsTotal:  len(e.Config.Assertions) + len(cc.Assertions),
		CassettePath:     cc.CassettePath,
	}

	var tape *cassette.Cassette
	var writer *cassette.Writer

	switch e.Config.Mode {
	case ModeReplay:
		var err error
		tape, err = cassette.Load(cc.CassettePath)
		if err != nil {
			res.Failure = &Failure{Type: FailureCassetteError, Message: err.Error()}
			res.Trace = append(res.Trace, TraceEvent{Kind: EventCaseEnd, Data: map[string]any{"passed": false, "wall_ms": elapsedMS(start)}})
			res.WallMS = elapsedMS(start)
			return res
		}
	case ModeRecord:
		var err error
		writer, err = cassette.NewWriter(cc.CassettePath)
		if err != nil {
			res.Failure = &Failure{Type: FailureCassetteError, Message: err.Error()}
			res.Trace = append(res.Trace, TraceEvent{Kind: EventCaseEnd, Data: map[string]any{"passed": false, "wall_ms": elapsedMS(start)}})
			res.WallMS = elapsedMS(start)
			return res
		}
		defer func() { _ = writer.Close() }()
	case ModeLive:
		// no cassette file touched at all, so none is reported either
		res.CassettePath = ""
	}

	if e.Config.Mode != ModeReplay && e.Registry == nil {
		res.Failure = &Failure{Type: FailureToolRegistry, Message: "tool registry was not resolved for record/live mode"}
		res.WallMS = elapsedMS(start)
		return res
	}

	taskID := cc.ID
	tr, err := e.OpenTransport(ctx, e.Config.Argv)
	if err != nil {
		res.Failure = &Failure{Type: FailureAgentError, Message: fmt.Sprintf("open agent transport: %v", err)}
		res.WallMS = elapsedMS(start)
		return res
	}
	defer func() { _ = tr.Close() }()

	if err := tr.Send(protocol.NewTaskStart(taskID, cc.Input)); err != nil {
		res.Failure = &Failure{Type: FailureAgentError, Message: fmt.Sprintf("send task_start: %v", err)}
		res.WallMS = elapsedMS(start)
		return res
	}
	res.Trace = append(res.Trace, TraceEvent{Kind: EventTaskStart, Data: map[string]any{"task_id": taskID, "input": cc.Input}})

	var toolCallOrder []string

loop:
	for {
		msg, err := tr.Receive(ctx)
		if err != nil {
			res.Failure = &Failure{Type: FailureAgentError, Message: err.Error()}
			break loop
		}

		switch msg.Type {
		case protocol.TypeToolCall:
			tc := msg.ToolCall
			res.Trace = append(res.Trace, TraceEvent{Kind: EventToolCall, Data: map[string]any{"name": tc.Name, "call_id": tc.CallID, "args": tc.Args}})
			res.ToolCalls++
			res.ToolCallsByName[tc.Name]++
			toolCallOrder = append(toolCallOrder, tc.Name)

			if _, allowed := e.Config.AllowedTools[tc.Name]; !allowed {
				res.Failure = &Failure{Type: FailureToolNotAllowed, Message: fmt.Sprintf("tool %q is not in the suite's allow-list %v", tc.Name, sortedAllowed(e.Config.AllowedTools))}
				break loop
			}

			var ok bool
			var result map[string]any
			var errMsg string

			switch e.Config.Mode {
			case ModeReplay:
				entry, matchErr := tape.Match(tc.Name, tc.Args)
				if matchErr != nil {
					var diag *cassette.MismatchDiagnostic
					if errors.As(matchErr, &diag) {
						res.Failure = &Failure{Type: FailureCassetteMismatch, Message: diag.Error()}
					} else {
						res.Failure = &Failure{Type: FailureCassetteMismatch, Message: matchErr.Error()}
					}
					break loop
				}
				ok, result, errMsg = entry.OK, entry.Result, entry.Error
			case ModeRecord, ModeLive:
				invoked, invokeErr := e.Registry.Invoke(tc.Name, tc.Args)
				if invokeErr != nil {
					if errors.Is(invokeErr, toolregistry.ErrNotRegistered) {
						res.Failure = &Failure{Type: FailureToolNotRegd, Message: invokeErr.Error()}
						break loop
					}
					ok, errMsg = false, invokeErr.Error()
				} else {
					ok, result = true, invoked
				}
				if e.Config.Mode == ModeRecord {
					if appendErr := writer.Append(cassette.Entry{Tool: tc.Name, Args: tc.Args, OK: ok, Result: result, Error: errMsg}); appendErr != nil {
						res.Failure = &Failure{Type: FailureAgentError, Message: fmt.Sprintf("append cassette entry: %v", appendErr)}
						break loop
					}
				}
			}

			if sendErr := tr.Send(protocol.NewToolResult(tc.CallID, ok, result, errMsg)); sendErr != nil {
				res.Failure = &Failure{Type: FailureAgentError, Message: fmt.Sprintf("send tool_result: %v", sendErr)}
				break loop
			}
			res.Trace = append(res.Trace, TraceEvent{Kind: EventToolResult, Data: map[string]any{"call_id": tc.CallID, "ok": ok, "result": result, "error": errMsg}})
			if !ok {
				res.ToolErrors++
				res.ToolErrorsByName[tc.Name]++
			}

		case protocol.TypeFinalOutput:
			res.Output = msg.FinalOutput.Output
			if u := msg.FinalOutput.Usage; u != nil {
				res.TokensIn = u.TokensIn
				res.TokensOut = u.TokensOut
				res.CostUSD = u.CostUSD
				res.Steps = u.Steps
			}
			res.Trace = append(res.Trace, TraceEvent{Kind: EventFinalOutput, Data: map[string]any{"output": msg.FinalOutput.Output, "usage": msg.FinalOutput.Usage}})
			break loop

		case protocol.TypeLog:
			res.Trace = append(res.Trace, TraceEvent{Kind: EventLog, Data: map[string]any{"level": msg.Log.Level, "message": msg.Log.Message, "data": msg.Log.Data}})
			continue

		case protocol.TypeTaskError:
			res.Trace = append(res.Trace, TraceEvent{Kind: EventTaskError, Data: map[string]any{"message": msg.TaskError.Message, "data": msg.TaskError.Data}})
			res.Failure = &Failure{Type: FailureTaskError, Message: msg.TaskError.Message}
			break loop

		default:
			res.Failure = &Failure{Type: FailureAgentError, Message: fmt.Sprintf("unexpected message type %q", msg.Type)}
			break loop
		}
	}

	// Step 6: assertions run only if no prior failure and output is present.
	if res.Failure == nil && res.Output != nil {
		failures := assertion.Evaluate(e.Config.Assertions, cc.Assertions, res.Output, toolCallOrder, e.Config.SuiteDir)
		if len(failures) > 0 {
			res.AssertionFailures = failures
			res.AssertionsFailed = len(failures)
			msgs := make([]string, 0, len(failures))
			for _, f := range failures {
				msgs = append(msgs, f.Message)
			}
			res.Failure = &Failure{Type: FailureAssertionFailed, Message: joinLines(msgs)}
			res.Trace = append(res.Trace, TraceEvent{Kind: EventAssertionFailure, Data: map[string]any{"failures": failures}})
		}
	}

	res.WallMS = elapsedMS(start)

	// Step 7: budgets are checked in every mode, but only when no failure was
	// already recorded (first failure wins).
	if res.Failure == nil {
		merged := budget.Merge(e.Config.Budget, cc.Budget)
		violations := budget.Check(merged, budget.Counters{
			WallMS:     res.WallMS,
			ToolCalls:  res.ToolCalls,
			ToolErrors: res.ToolErrors,
			TokensOut:  valueOrZero(res.TokensOut),
			CostUSD:    valueOrZeroF(res.CostUSD),
		})
		if len(violations) > 0 {
			res.Trace = append(res.Trace, TraceEvent{Kind: EventBudgetFailure, Data: map[string]any{"violations": violations}})
			res.Failure = &Failure{Type: FailureBudgetExceeded, Message: budget.Summary(violations)}
		}
	}

	// Step 8: cassette SHA-256 if the file exists on disk.
	if cc.CassettePath != "" && e.Config.Mode != ModeLive {
		if b, readErr := os.ReadFile(cc.CassettePath); readErr == nil { // #nosec G304 -- path resolved at config load time
			sum := sha256.Sum256(b)
			res.CassetteSHA256 = hex.EncodeToString(sum[:])
		}
	}

	res.Passed = res.Failure == nil
	res.Trace = append(res.Trace, TraceEvent{Kind: EventCaseEnd, Data: map[string]any{"passed": res.Passed, "wall_ms": res.WallMS}})
	return res
}

func elapsedMS(start time.Time) int64 {
	return int64(time.Since(start).Seconds()*1000 + 0.5)
}

func sortedAllowed(allowed map[string]struct{}) []string {
	out := make([]string, 0, len(allowed))
	for t := range allowed {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func valueOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func valueOrZeroF(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
