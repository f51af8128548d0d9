// Package observe provides application-wide observability primitives for
// narrator: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all narrator metrics.
const meterName = "github.com/duskward/narrator"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Bus / pipeline throughput ---

	// EnvelopeThroughput counts envelopes processed. Use with attributes:
	//   attribute.String("stage", ...), attribute.String("status", ...)
	EnvelopeThroughput metric.Int64Counter

	// ActionStepFailures counts action pipeline step failures by step and
	// reason (spec.md §4.5's ordered steps).
	ActionStepFailures metric.Int64Counter

	// RendererDuration tracks the renderer worker's (C10) AI call latency.
	RendererDuration metric.Float64Histogram

	// --- NPC movement / turn machine ---

	// NPCReassessments counts NPC goal reassessments by reason (stale,
	// blocked, stuck, interval-elapsed).
	NPCReassessments metric.Int64Counter

	// TurnRoundDuration tracks wall-clock time spent per completed round of
	// the turn state machine (C12).
	TurnRoundDuration metric.Float64Histogram

	// --- AI provider calls (renderer + NPC decision sourcing) ---

	// ProviderRequests counts AI provider calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("caller", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts AI provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("caller", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveNPCs tracks the number of NPCs currently tracked by the movement
	// controller (C11).
	ActiveNPCs metric.Int64UpDownCounter

	// ActiveSessions tracks the number of sessions with a live session fence.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds), spanning
// sub-tick NPC reassessment work up to multi-minute renderer AI calls.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.EnvelopeThroughput, err = m.Int64Counter("narrator.bus.envelope.throughput",
		metric.WithDescription("Total envelopes processed, by stage and status."),
	); err != nil {
		return nil, err
	}
	if met.ActionStepFailures, err = m.Int64Counter("narrator.action.step_failures",
		metric.WithDescription("Total action pipeline step failures, by step and reason."),
	); err != nil {
		return nil, err
	}
	if met.RendererDuration, err = m.Float64Histogram("narrator.renderer.duration",
		metric.WithDescription("Latency of the renderer worker's AI call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.NPCReassessments, err = m.Int64Counter("narrator.npcmove.reassessments",
		metric.WithDescription("Total NPC goal reassessments, by reason."),
	); err != nil {
		return nil, err
	}
	if met.TurnRoundDuration, err = m.Float64Histogram("narrator.turn.round_duration",
		metric.WithDescription("Wall-clock time per completed turn round."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("narrator.provider.requests",
		metric.WithDescription("Total AI provider calls by provider, caller, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("narrator.provider.errors",
		metric.WithDescription("Total AI provider errors by provider and caller."),
	); err != nil {
		return nil, err
	}

	if met.ActiveNPCs, err = m.Int64UpDownCounter("narrator.npcmove.active_npcs",
		metric.WithDescription("Number of NPCs currently tracked by the movement controller."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("narrator.bus.active_sessions",
		metric.WithDescription("Number of sessions with a live session fence."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("narrator.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordEnvelope is a convenience method that records an envelope-throughput
// counter increment with the standard attribute set.
func (m *Metrics) RecordEnvelope(ctx context.Context, stage, status string) {
	m.EnvelopeThroughput.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("status", status),
		),
	)
}

// RecordActionStepFailure is a convenience method that records an action
// pipeline step failure counter increment.
func (m *Metrics) RecordActionStepFailure(ctx context.Context, step, reason string) {
	m.ActionStepFailures.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("step", step),
			attribute.String("reason", reason),
		),
	)
}

// RecordReassessment is a convenience method that records an NPC goal
// reassessment counter increment.
func (m *Metrics) RecordReassessment(ctx context.Context, reason string) {
	m.NPCReassessments.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, caller, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("caller", caller),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, caller string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("caller", caller),
		),
	)
}
