// Package telemetry builds the OpenTelemetry tracer provider used for posting
// spans.
package telemetry

import (
    "context"
    "fmt"

    "go.opentelemetry.io/otel"
    "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
    "go.opentelemetry.io/otel/propagation"
    sdkresource "go.opentelemetry.io/otel/sdk/resource"
    sdktrace "go.opentelemetry.io/otel/sdk/trace"
    semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
    "go.uber.org/zap"
)

const (
    // ExporterNone records spans in process and exports nothing.
    ExporterNone = "none"
    // ExporterOTLP ships spans to an OTLP/gRPC collector.
    ExporterOTLP = "otlp"
)

type Options struct {
    ServiceName string
    Exporter    string
    Endpoint    string
}

type Telemetry struct {
    TracerProvider *sdktrace.TracerProvider
    logger         *zap.Logger
}

// New builds the tracer provider for opts.Exporter and installs it, together
// with the W3C propagators, as the global provider.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Telemetry, error) {
    if logger == nil {
        logger = zap.NewNop()
    }

    providerOpts := []sdktrace.TracerProviderOption{
        sdktrace.WithResource(newResource(opts.ServiceName)),
    }
    switch opts.Exporter {
    case ExporterNone, "":
    case ExporterOTLP:
        exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(opts.Endpoint), otlptracegrpc.WithInsecure())
        if err != nil {
            return nil, fmt.Errorf("can't initialize tracer exporter: %w", err)
        }
        providerOpts = append(providerOpts, sdktrace.WithBatcher(exp))
    default:
        return nil, fmt.Errorf("unknown trace exporter %q", opts.Exporter)
    }

    tp := sdktrace.NewTracerProvider(providerOpts...)
    otel.SetTracerProvider(tp)
    otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

    logger.Info("telemetry initialized",
        zap.String("exporter", opts.Exporter),
        zap.String("endpoint", opts.Endpoint))
    return &Telemetry{TracerProvider: tp, logger: logger}, nil
}

// Shutdown flushes pending spans and stops the exporter.
func (t *Telemetry) Shutdown(ctx context.Context) {
    if err := t.TracerProvider.Shutdown(ctx); err != nil {
        t.logger.Error("can't shutdown tracer provider", zap.Error(err))
    }
}

func newResource(serviceName string) *sdkresource.Resource {
    return sdkresource.NewWithAttributes(
        semconv.SchemaURL,
        semconv.ServiceName(serviceName),
        semconv.TelemetrySDKLanguageGo,
    )
}
