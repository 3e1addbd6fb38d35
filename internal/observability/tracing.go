// Package observability wires the OTLP tracing provider and the HTTP
// instrumentation middleware.
package observability

import (
	"context"
	"time"

	"github.com/voyara/voyara/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(NewTracerProvider),
	fx.Invoke(func(_ *sdktrace.TracerProvider) {}),
)

type Params struct {
	fx.In

	LC  fx.Lifecycle
	Cfg config.Config
	Log *zap.Logger
}

// NewTracerProvider builds and registers the global tracer provider. With
// tracing disabled it still returns a provider so downstream tracer lookups
// work, it just never exports.
func NewTracerProvider(p Params) (*sdktrace.TracerProvider, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(p.Cfg.AppName),
		semconv.ServiceVersion(p.Cfg.AppVersion),
		semconv.DeploymentEnvironment(p.Cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if p.Cfg.OtelEnabled && p.Cfg.OTLPEndpoint != "" {
		exporter, err := otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(p.Cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		p.Log.Info("otlp trace exporter enabled", zap.String("endpoint", p.Cfg.OTLPEndpoint))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(shutdownCtx)
		},
	})
	return provider, nil
}
