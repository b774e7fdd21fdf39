// Package telemetry provides the orchestrator's ambient OpenTelemetry
// instrumentation: a counter of published messages, a histogram of
// task-executor cycle durations, and a tracer used to span one
// task-executor cycle end to end.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/orc-run/orc/internal/orchestrator"

// Metrics holds the counter and histogram the orchestrator updates on
// every message publish and every completed task cycle.
type Metrics struct {
	messagesPublished metric.Int64Counter
	taskDuration       metric.Float64Histogram
	tracer             trace.Tracer
}

// New builds Metrics from the global MeterProvider. Callers that never
// call otel.SetMeterProvider get the SDK's no-op meter, so instrument
// creation here never fails in a way worth surfacing to callers; a
// construction error falls back to no-op instruments instead of
// propagating, since missing metrics should never block a cluster from
// booting.
func New() *Metrics {
	meter := otel.GetMeterProvider().Meter(instrumentationName)

	counter, err := meter.Int64Counter(
		"messages_published_total",
		metric.WithDescription("messages published to the cluster bus"),
	)
	if err != nil {
		counter, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter("messages_published_total")
	}

	hist, err := meter.Float64Histogram(
		"task_duration_seconds",
		metric.WithDescription("wall-clock duration of one task-executor cycle"),
		metric.WithUnit("s"),
	)
	if err != nil {
		hist, _ = noop.NewMeterProvider().Meter(instrumentationName).Float64Histogram("task_duration_seconds")
	}

	return &Metrics{
		messagesPublished: counter,
		taskDuration:       hist,
		tracer:             otel.GetTracerProvider().Tracer(instrumentationName),
	}
}

// RecordPublish increments the published-message counter, tagged by
// topic so an operator can break down bus traffic per control or
// domain topic.
func (m *Metrics) RecordPublish(ctx context.Context, clusterID, topic string) {
	if m == nil {
		return
	}
	m.messagesPublished.Add(ctx, 1, metric.WithAttributes(
		attrClusterID(clusterID),
		attrTopic(topic),
	))
}

// RecordTaskDuration records one completed task-executor cycle's
// duration in seconds, tagged by agent and success.
func (m *Metrics) RecordTaskDuration(ctx context.Context, clusterID, agentID string, seconds float64, success bool) {
	if m == nil {
		return
	}
	m.taskDuration.Record(ctx, seconds, metric.WithAttributes(
		attrClusterID(clusterID),
		attrAgentID(agentID),
		attrSuccess(success),
	))
}

// StartTaskSpan opens a span covering one task-executor cycle: spawn,
// stream, parse. Callers must end the returned span.
func (m *Metrics) StartTaskSpan(ctx context.Context, clusterID, agentID string) (context.Context, trace.Span) {
	if m == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return m.tracer.Start(ctx, "agent.task_cycle", trace.WithAttributes(
		attrClusterID(clusterID),
		attrAgentID(agentID),
	))
}
