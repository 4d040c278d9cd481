// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	"loan-underwriting/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider shutdowner
	meter          otelmetric.Meter
	runCounter     otelmetric.Int64Counter
	runDuration    otelmetric.Float64Histogram
	log            logger.Logger
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// New wires the OpenTelemetry meter provider to the Prometheus registry. A
// non-empty jaegerEndpoint also installs a tracer provider exporting to Jaeger.
func New(serviceName, jaegerEndpoint string, log logger.Logger) *Observability {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	o := &Observability{log: log}

	exporter, err := prometheus.New()
	if err != nil {
		log.Error("failed to create prometheus exporter", map[string]interface{}{"error": err})
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	o.meterProvider = provider
	o.meter = provider.Meter(serviceName)

	o.runCounter, _ = o.meter.Int64Counter(
		"runs.processed",
		otelmetric.WithDescription("Number of underwriting runs processed"),
	)

	o.runDuration, _ = o.meter.Float64Histogram(
		"runs.duration",
		otelmetric.WithDescription("Underwriting run duration"),
		otelmetric.WithUnit("ms"),
	)

	if jaegerEndpoint != "" {
		tp, err := newTracerProvider(serviceName, jaegerEndpoint)
		if err != nil {
			log.Warn("tracing disabled", map[string]interface{}{"error": err, "endpoint": jaegerEndpoint})
		} else {
			otel.SetTracerProvider(tp)
			o.tracerProvider = tp
		}
	}

	return o
}

func (o *Observability) RecordRunProcessed(ctx context.Context, outcome string) {
	if o.runCounter != nil {
		o.runCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) RecordRunDuration(ctx context.Context, duration time.Duration, outcome string) {
	if o.runDuration != nil {
		o.runDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			o.log.Warn("tracer provider shutdown", map[string]interface{}{"error": err})
		}
	}
	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil {
			o.log.Warn("meter provider shutdown", map[string]interface{}{"error": err})
		}
	}
}
