// Package log is the reference CLI's narrow logging seam: a Logger interface
// with a Clue-backed implementation and a Noop implementation, mirroring the
// teacher's runtime/agent/telemetry.Logger/ClueLogger/NoopLogger trio.
package log

import (
	"context"

	clue "goa.design/clue/log"
)

// Logger is the logging surface cmd/runledger depends on; the suite engine
// itself does not log. Field pairs are
// passed as alternating key/value arguments, same convention as the
// teacher's telemetry.Logger.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Clue delegates to goa.design/clue/log. The logger reads formatting and
// debug settings from the context, set once at process start via
// clue.Context/clue.WithFormat/clue.WithDebug.
type Clue struct{}

// NewClue constructs a Logger backed by clue/log.
func NewClue() Logger { return Clue{} }

func (Clue) Debug(ctx context.Context, msg string, keyvals ...any) {
	clue.Debug(ctx, fielders(msg, keyvals)...)
}

func (Clue) Info(ctx context.Context, msg string, keyvals ...any) {
	clue.Info(ctx, fielders(msg, keyvals)...)
}

func (Clue) Warn(ctx context.Context, msg string, keyvals ...any) {
	clue.Warn(ctx, fielders(msg, keyvals)...)
}

func (Clue) Error(ctx context.Context, msg string, keyvals ...any) {
	clue.Error(ctx, nil, fielders(msg, keyvals)...)
}

func fielders(msg string, keyvals []any) []clue.Fielder {
	out := make([]clue.Fielder, 0, 1+len(keyvals)/2)
	out = append(out, clue.KV{K: "msg", V: msg})
	for i := 0; i+1 < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		out = append(out, clue.KV{K: k, V: keyvals[i+1]})
	}
	return out
}

// Noop discards every call, used by tests and library consumers that don't
// want log output.
type Noop struct{}

// NewNoop constructs a Logger that discards all messages.
func NewNoop() Logger { return Noop{} }

func (Noop) Debug(context.Context, string, ...any) {}
func (Noop) Info(context.Context, string, ...any)  {}
func (Noop) Warn(context.Context, string, ...any)  {}
func (Noop) Error(context.Context, string, ...any) {}
