// Package telemetry installs the global OpenTelemetry tracer provider used by
// the advice pipeline spans.
package telemetry

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"healthadvisor/backend/internal/config"
)

type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup exports spans over OTLP/HTTP when OTEL_ENABLED is set. When disabled
// the global no-op provider stays in place.
func Setup(ctx context.Context, cfg config.Config) (ShutdownFunc, error) {
	if !cfg.OTelEnabled {
		return noopShutdown, nil
	}

	opts := []otlptracehttp.Option{}
	if cfg.OTelEndpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTelEndpoint))
	}
	if cfg.OTelInsecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", cfg.AppName),
			attribute.String("deployment.environment", cfg.AppEnv),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.OTelSampleRate)),
	)
	otel.SetTracerProvider(provider)
	log.Printf("tracing enabled endpoint=%s sample_rate=%.2f", cfg.OTelEndpoint, cfg.OTelSampleRate)
	return provider.Shutdown, nil
}

// Sampler respects the parent decision and samples root spans at rate.
func Sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}
