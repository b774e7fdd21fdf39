package telemetry

import (
	"context"
	"testing"
)

func TestNewProducesUsableInstruments(t *testing.T) {
	m := New()
	ctx := context.Background()

	m.RecordPublish(ctx, "c1", "ISSUE_OPENED")
	m.RecordTaskDuration(ctx, "c1", "agent-1", 1.5, true)

	spanCtx, span := m.StartTaskSpan(ctx, "c1", "agent-1")
	if spanCtx == nil {
		t.Fatal("StartTaskSpan returned nil context")
	}
	span.End()
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	m.RecordPublish(ctx, "c1", "ISSUE_OPENED")
	m.RecordTaskDuration(ctx, "c1", "agent-1", 1.5, true)

	spanCtx, span := m.StartTaskSpan(ctx, "c1", "agent-1")
	if spanCtx == nil {
		t.Fatal("StartTaskSpan returned nil context for nil Metrics")
	}
	span.End()
}
