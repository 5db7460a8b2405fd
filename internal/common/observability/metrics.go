// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

type Observability struct {
	meterProvider  *metric.MeterProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	submitCounter  otelmetric.Int64Counter
	submitDuration otelmetric.Float64Histogram
	imageCounter   otelmetric.Int64Counter
}

// New wires an OpenTelemetry meter to a Prometheus registerer. Spans go through
// the global tracer provider, a no-op unless the process installs one.
func New(serviceName string, reg promclient.Registerer, log Logger) *Observability {
	o := &Observability{tracer: otel.Tracer(serviceName)}

	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		if log != nil {
			log.Warn("failed to create prometheus exporter, otel metrics disabled", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	meter := provider.Meter(serviceName)

	o.submitCounter, _ = meter.Int64Counter(
		"wizard.submissions",
		otelmetric.WithDescription("Number of wizard submissions"),
	)
	o.submitDuration, _ = meter.Float64Histogram(
		"wizard.submission.duration",
		otelmetric.WithDescription("Submission round-trip duration"),
		otelmetric.WithUnit("ms"),
	)
	o.imageCounter, _ = meter.Int64Counter(
		"wizard.images.generated",
		otelmetric.WithDescription("Number of room images requested"),
	)

	o.meterProvider = provider
	o.meter = meter
	return o
}

// NewNoop returns an Observability that records nothing.
func NewNoop() *Observability {
	return &Observability{tracer: otel.Tracer("noop")}
}

func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordSubmission(ctx context.Context, outcome string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	if o.submitCounter != nil {
		o.submitCounter.Add(ctx, 1, attrs)
	}
	if o.submitDuration != nil {
		o.submitDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordImage(ctx context.Context, outcome string) {
	if o.imageCounter != nil {
		o.imageCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
