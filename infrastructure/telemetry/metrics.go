// Package telemetry provides observability infrastructure including
// OpenTelemetry metrics support for the approval service.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsProvider provides access to metrics instruments.
type MetricsProvider struct {
	meter metric.Meter

	// Counters
	ticketsCreated   metric.Int64Counter
	ticketsResolved  metric.Int64Counter
	ticketsExpired   metric.Int64Counter
	ticketsSwept     metric.Int64Counter
	dispatchFailures metric.Int64Counter
	errors           metric.Int64Counter

	// Histograms
	dispatchDuration   metric.Float64Histogram
	resolutionDuration metric.Float64Histogram

	// Gauges (using UpDownCounter for OpenTelemetry)
	pendingTickets      metric.Int64UpDownCounter
	resolvedUndelivered metric.Int64UpDownCounter

	initOnce sync.Once
	initErr  error
}

// MetricsConfig configures the metrics provider.
type MetricsConfig struct {
	// MeterName is the name of the meter (default: "github.com/felixgeelhaar/hitl-go").
	MeterName string
	// MeterVersion is the version of the meter.
	MeterVersion string
	// Attributes are default attributes to attach to all metrics.
	Attributes []attribute.KeyValue
}

// DefaultMetricsConfig returns a default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterName:    "github.com/felixgeelhaar/hitl-go",
		MeterVersion: "1.0.0",
	}
}

// NewMetricsProvider creates a new metrics provider.
func NewMetricsProvider(config MetricsConfig) *MetricsProvider {
	if config.MeterName == "" {
		config = DefaultMetricsConfig()
	}

	provider := otel.GetMeterProvider()
	meter := provider.Meter(
		config.MeterName,
		metric.WithInstrumentationVersion(config.MeterVersion),
	)

	mp := &MetricsProvider{meter: meter}
	mp.initOnce.Do(mp.initInstruments)
	return mp
}

func (mp *MetricsProvider) initInstruments() {
	var err error

	mp.ticketsCreated, err = mp.meter.Int64Counter(
		"hitl.tickets.created",
		metric.WithDescription("Number of approval tickets created"),
		metric.WithUnit("{ticket}"),
	)
	if err != nil {
		mp.initErr = err
		return
	}

	mp.ticketsResolved, err = mp.meter.Int64Counter(
		"hitl.tickets.resolved",
		metric.WithDescription("Number of approval tickets resolved by a reviewer"),
		metric.WithUnit("{ticket}"),
	)
	if err != nil {
		mp.initErr = err
		return
	}

	mp.ticketsExpired, err = mp.meter.Int64Counter(
		"hitl.tickets.expired",
		metric.WithDescription("Number of pending tickets expired by the sweeper"),
		metric.WithUnit("{ticket}"),
	)
	if err != nil {
		mp.initErr = err
		return
	}

	mp.ticketsSwept, err = mp.meter.Int64Counter(
		"hitl.tickets.swept",
		metric.WithDescription("Number of aged terminal tickets removed by retention"),
		metric.WithUnit("{ticket}"),
	)
	if err != nil {
		mp.initErr = err
		return
	}

	mp.dispatchFailures, err = mp.meter.Int64Counter(
		"hitl.dispatch.failures",
		metric.WithDescription("Number of failed decision deliveries to the agent runtime"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		mp.initErr = err
		return
	}

	mp.errors, err = mp.meter.Int64Counter(
		"hitl.errors",
		metric.WithDescription("Number of errors by type"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		mp.initErr = err
		return
	}

	mp.dispatchDuration, err = mp.meter.Float64Histogram(
		"hitl.dispatch.duration",
		metric.WithDescription("Duration of decision delivery attempts in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		mp.initErr = err
		return
	}

	mp.resolutionDuration, err = mp.meter.Float64Histogram(
		"hitl.resolution.duration",
		metric.WithDescription("Time from ticket creation to resolution in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		mp.initErr = err
		return
	}

	mp.pendingTickets, err = mp.meter.Int64UpDownCounter(
		"hitl.tickets.pending",
		metric.WithDescription("Number of tickets currently awaiting a decision"),
		metric.WithUnit("{ticket}"),
	)
	if err != nil {
		mp.initErr = err
		return
	}

	mp.resolvedUndelivered, err = mp.meter.Int64UpDownCounter(
		"hitl.tickets.resolved_undelivered",
		metric.WithDescription("Number of resolved tickets whose decision never reached the runtime"),
		metric.WithUnit("{ticket}"),
	)
	if err != nil {
		mp.initErr = err
		return
	}
}

// Error returns any initialization error.
func (mp *MetricsProvider) Error() error {
	return mp.initErr
}

// RecordTicketCreated records the creation of an approval ticket.
func (mp *MetricsProvider) RecordTicketCreated(ctx context.Context, requestKind string) {
	attrs := []attribute.KeyValue{
		attribute.String("request.kind", requestKind),
	}

	mp.ticketsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.pendingTickets.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTicketResolved records a reviewer decision on a ticket.
func (mp *MetricsProvider) RecordTicketResolved(ctx context.Context, decision string, age time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("decision", decision),
	}

	mp.ticketsResolved.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.pendingTickets.Add(ctx, -1, metric.WithAttributes(attrs...))
	mp.resolutionDuration.Record(ctx, float64(age.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordTicketsExpired records pending tickets timed out by the sweeper.
func (mp *MetricsProvider) RecordTicketsExpired(ctx context.Context, count int64) {
	if count == 0 {
		return
	}
	mp.ticketsExpired.Add(ctx, count)
	mp.pendingTickets.Add(ctx, -count)
}

// RecordTicketsSwept records terminal tickets removed by retention.
func (mp *MetricsProvider) RecordTicketsSwept(ctx context.Context, count int64) {
	if count == 0 {
		return
	}
	mp.ticketsSwept.Add(ctx, count)
}

// RecordDispatch records a decision delivery attempt.
func (mp *MetricsProvider) RecordDispatch(ctx context.Context, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
	}

	mp.dispatchDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if !success {
		mp.dispatchFailures.Add(ctx, 1)
		mp.resolvedUndelivered.Add(ctx, 1)
		mp.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("error.type", "dispatch"),
		))
	}
}

// RecordError records an error.
func (mp *MetricsProvider) RecordError(ctx context.Context, errorType string, details map[string]string) {
	attrs := []attribute.KeyValue{
		attribute.String("error.type", errorType),
	}
	for k, v := range details {
		attrs = append(attrs, attribute.String(k, v))
	}

	mp.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// NoopMetricsProvider is a no-op metrics provider for testing or when metrics are disabled.
type NoopMetricsProvider struct{}

// RecordTicketCreated is a no-op.
func (n *NoopMetricsProvider) RecordTicketCreated(ctx context.Context, requestKind string) {}

// RecordTicketResolved is a no-op.
func (n *NoopMetricsProvider) RecordTicketResolved(ctx context.Context, decision string, age time.Duration) {
}

// RecordTicketsExpired is a no-op.
func (n *NoopMetricsProvider) RecordTicketsExpired(ctx context.Context, count int64) {}

// RecordTicketsSwept is a no-op.
func (n *NoopMetricsProvider) RecordTicketsSwept(ctx context.Context, count int64) {}

// RecordDispatch is a no-op.
func (n *NoopMetricsProvider) RecordDispatch(ctx context.Context, success bool, duration time.Duration) {
}

// RecordError is a no-op.
func (n *NoopMetricsProvider) RecordError(ctx context.Context, errorType string, details map[string]string) {
}

// Metrics defines the interface for metrics recording.
type Metrics interface {
	RecordTicketCreated(ctx context.Context, requestKind string)
	RecordTicketResolved(ctx context.Context, decision string, age time.Duration)
	RecordTicketsExpired(ctx context.Context, count int64)
	RecordTicketsSwept(ctx context.Context, count int64)
	RecordDispatch(ctx context.Context, success bool, duration time.Duration)
	RecordError(ctx context.Context, errorType string, details map[string]string)
}

// Ensure implementations satisfy the interface.
var (
	_ Metrics = (*MetricsProvider)(nil)
	_ Metrics = (*NoopMetricsProvider)(nil)
)
