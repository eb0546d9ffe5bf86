// Package observability wires the OpenTelemetry meter used for conversation
// and prediction instruments. Readings are exported through the Prometheus
// registry so they appear on the same /metrics endpoint.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"

	"plant-advisor/internal/common/logger"
)

type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter

	jobCounter      otelmetric.Int64Counter
	jobDuration     otelmetric.Float64Histogram
	turnCounter     otelmetric.Int64Counter
	predictionTimer otelmetric.Float64Histogram
}

// New registers a meter provider globally. Instrument creation failures are
// logged and leave the corresponding recorder as a no-op.
func New(serviceName string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err.Error()})
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	o := &Observability{meterProvider: provider, meter: provider.Meter(serviceName)}

	if o.jobCounter, err = o.meter.Int64Counter("jobs.processed",
		otelmetric.WithDescription("Number of jobs processed")); err != nil {
		log.Warn("Instrument unavailable", map[string]interface{}{"instrument": "jobs.processed", "error": err.Error()})
	}
	if o.jobDuration, err = o.meter.Float64Histogram("jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms")); err != nil {
		log.Warn("Instrument unavailable", map[string]interface{}{"instrument": "jobs.duration", "error": err.Error()})
	}
	if o.turnCounter, err = o.meter.Int64Counter("conversation.turns",
		otelmetric.WithDescription("Conversation operations handled")); err != nil {
		log.Warn("Instrument unavailable", map[string]interface{}{"instrument": "conversation.turns", "error": err.Error()})
	}
	if o.predictionTimer, err = o.meter.Float64Histogram("prediction.duration",
		otelmetric.WithDescription("Time spent inside a predictor"),
		otelmetric.WithUnit("ms")); err != nil {
		log.Warn("Instrument unavailable", map[string]interface{}{"instrument": "prediction.duration", "error": err.Error()})
	}

	return o
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o == nil || o.jobCounter == nil {
		return
	}
	o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration) {
	if o == nil || o.jobDuration == nil {
		return
	}
	o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
	))
}

// RecordTurn counts one conversation operation and the response type it produced.
func (o *Observability) RecordTurn(ctx context.Context, operation, responseType string) {
	if o == nil || o.turnCounter == nil {
		return
	}
	o.turnCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("response_type", responseType),
	))
}

func (o *Observability) RecordPrediction(ctx context.Context, task string, duration time.Duration, ok bool) {
	if o == nil || o.predictionTimer == nil {
		return
	}
	o.predictionTimer.Record(ctx, float64(duration.Microseconds())/1000, otelmetric.WithAttributes(
		attribute.String("task", task),
		attribute.Bool("ok", ok),
	))
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return o.meterProvider.Shutdown(ctx)
}
