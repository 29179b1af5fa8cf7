package config

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/version"
)

// StdoutEndpoint as telemetry endpoint prints metrics and traces
const StdoutEndpoint = "stdout"

type Telemetry struct {
	metrics *sdkmetric.MeterProvider
	traces  *sdktrace.TracerProvider
}

func (t *Telemetry) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.metrics.Shutdown(ctx); err != nil {
		log.Warn("could not shutdown meter provider", log.ErrorField(err))
	}
	if err := t.traces.Shutdown(ctx); err != nil {
		log.Warn("could not shutdown tracer provider", log.ErrorField(err))
	}
}

// SetupTelemetry installs global meter and tracer providers which export
// to TelemetryEndpoint.
func SetupTelemetry(ctx context.Context) (*Telemetry, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", "racecontrol"),
		attribute.String("service.version", version.Version),
	)
	metricExporter, spanExporter, err := newExporters(ctx, TelemetryEndpoint)
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExporter,
				sdkmetric.WithInterval(15*time.Second))),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(spanExporter),
	)
	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)
	log.Info("telemetry enabled", log.String("endpoint", TelemetryEndpoint))
	return &Telemetry{metrics: mp, traces: tp}, nil
}

//nolint:whitespace // editor/linter issue
func newExporters(ctx context.Context, endpoint string) (
	sdkmetric.Exporter, sdktrace.SpanExporter, error,
) {
	if endpoint == StdoutEndpoint {
		me, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, err
		}
		se, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, err
		}
		return me, se, nil
	}
	me, mErr := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure())
	se, sErr := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure())
	if err := errors.Join(mErr, sErr); err != nil {
		return nil, nil, err
	}
	return me, se, nil
}
