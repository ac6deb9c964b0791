package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mirumirumi/JsStore/hook"
	"github.com/mirumirumi/JsStore/request"
)

// meterName is the instrumentation scope name for jsstore metrics.
const meterName = "github.com/mirumirumi/JsStore/observability"

// Compile-time interface checks.
var (
	_ hook.Extension         = (*MetricsExtension)(nil)
	_ hook.RequestQueued     = (*MetricsExtension)(nil)
	_ hook.RequestDispatched = (*MetricsExtension)(nil)
	_ hook.RequestCompleted  = (*MetricsExtension)(nil)
	_ hook.RequestFailed     = (*MetricsExtension)(nil)
	_ hook.SessionRegistered = (*MetricsExtension)(nil)
	_ hook.SessionFault      = (*MetricsExtension)(nil)
	_ hook.ProtocolViolation = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle metrics via OpenTelemetry.
// Register it as a jsstore extension to automatically track queue rates,
// completion and failure counts per execution mode, queue wait times,
// session faults, and protocol violations.
type MetricsExtension struct {
	queued     metric.Int64Counter
	dispatched metric.Int64Counter
	completed  metric.Int64Counter
	failed     metric.Int64Counter
	registered metric.Int64Counter
	faults     metric.Int64Counter
	violations metric.Int64Counter
	queueWait  metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. With no provider configured, the noop instruments make
// every hook a pass-through.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. This variant allows injecting a specific MeterProvider
// for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// On instrument creation errors the OTel API returns noop
	// instruments, so the extension degrades gracefully.
	queued, _ := meter.Int64Counter(
		"jsstore.request.queued",
		metric.WithDescription("Total requests accepted into the queue"),
		metric.WithUnit("{request}"),
	)
	dispatched, _ := meter.Int64Counter(
		"jsstore.request.dispatched",
		metric.WithDescription("Total requests dispatched for execution"),
		metric.WithUnit("{request}"),
	)
	completed, _ := meter.Int64Counter(
		"jsstore.request.completed",
		metric.WithDescription("Total requests completed successfully"),
		metric.WithUnit("{request}"),
	)
	failed, _ := meter.Int64Counter(
		"jsstore.request.failed",
		metric.WithDescription("Total requests finished with an error"),
		metric.WithUnit("{request}"),
	)
	registered, _ := meter.Int64Counter(
		"jsstore.session.registered",
		metric.WithDescription("Probe cycles that registered the background session"),
		metric.WithUnit("{probe}"),
	)
	faults, _ := meter.Int64Counter(
		"jsstore.session.faults",
		metric.WithDescription("Fault signals received from the background session"),
		metric.WithUnit("{fault}"),
	)
	violations, _ := meter.Int64Counter(
		"jsstore.protocol.violations",
		metric.WithDescription("Result frames received with nothing in flight"),
		metric.WithUnit("{frame}"),
	)
	queueWait, _ := meter.Float64Histogram(
		"jsstore.request.queue_wait",
		metric.WithDescription("Time a request spent queued before dispatch in seconds"),
		metric.WithUnit("s"),
	)

	return &MetricsExtension{
		queued:     queued,
		dispatched: dispatched,
		completed:  completed,
		failed:     failed,
		registered: registered,
		faults:     faults,
		violations: violations,
		queueWait:  queueWait,
	}
}

// Name implements hook.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func modeAttrs(mode string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("mode", mode))
}

// ── Request lifecycle hooks ─────────────────────────

// OnRequestQueued implements hook.RequestQueued.
func (m *MetricsExtension) OnRequestQueued(ctx context.Context, _ *request.Request) error {
	m.queued.Add(ctx, 1)
	return nil
}

// OnRequestDispatched implements hook.RequestDispatched.
func (m *MetricsExtension) OnRequestDispatched(ctx context.Context, req *request.Request, mode string) error {
	m.dispatched.Add(ctx, 1, modeAttrs(mode))
	if req.DispatchedAt != nil {
		m.queueWait.Record(ctx, req.DispatchedAt.Sub(req.EnqueuedAt).Seconds(), modeAttrs(mode))
	}
	return nil
}

// OnRequestCompleted implements hook.RequestCompleted.
func (m *MetricsExtension) OnRequestCompleted(ctx context.Context, _ *request.Request, mode string, _ time.Duration) error {
	m.completed.Add(ctx, 1, modeAttrs(mode))
	return nil
}

// OnRequestFailed implements hook.RequestFailed.
func (m *MetricsExtension) OnRequestFailed(ctx context.Context, _ *request.Request, mode string, _ error) error {
	m.failed.Add(ctx, 1, modeAttrs(mode))
	return nil
}

// ── Session hooks ───────────────────────────────────

// OnSessionRegistered implements hook.SessionRegistered.
func (m *MetricsExtension) OnSessionRegistered(ctx context.Context) error {
	m.registered.Add(ctx, 1)
	return nil
}

// OnSessionFault implements hook.SessionFault.
func (m *MetricsExtension) OnSessionFault(ctx context.Context, _ string) error {
	m.faults.Add(ctx, 1)
	return nil
}

// OnProtocolViolation implements hook.ProtocolViolation.
func (m *MetricsExtension) OnProtocolViolation(ctx context.Context, _ string) error {
	m.violations.Add(ctx, 1)
	return nil
}
