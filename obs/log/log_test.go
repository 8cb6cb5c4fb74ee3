package log_test

import (
	"context"
	"testing"

	clue "goa.design/clue/log"

	"goa.design/runledger/obs/log"
)

func TestNoop_DoesNotPanic(t *testing.T) {
	var l log.Logger = log.Noop{}
	ctx := context.Background()
	l.Debug(ctx, "debug message", "key", "value")
	l.Info(ctx, "info message")
	l.Warn(ctx, "warn message", "odd")
	l.Error(ctx, "error message", "key", 1)
}

func TestClue_DoesNotPanicWithConfiguredContext(t *testing.T) {
	var l log.Logger = log.Clue{}
	ctx := clue.Context(context.Background(), clue.WithFormat(clue.FormatJSON))
	l.Info(ctx, "case started", "case_id", "t1", "mode", "replay")
	l.Error(ctx, "case failed", "case_id", "t1")
}
