// Package telemetry wires OpenTelemetry tracing and Prometheus metrics for
// the commerce sync service.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrInvalidTracingConfig is returned when an enabled Config cannot export spans
var ErrInvalidTracingConfig = errors.New("invalid tracing config")

// Config selects where spans go and how many root spans are kept.
// Nothing is exported unless Enabled is set.
type Config struct {
	Enabled           bool
	CollectorEndpoint string // OTLP/gRPC host:port
	Insecure          bool
	SamplingRatio     float64 // applied to root spans; children follow their parent
	ServiceName       string
	ServiceVersion    string
	Environment       string
}

func (c Config) validate() error {
	if c.CollectorEndpoint == "" {
		return fmt.Errorf("%w: collector endpoint is empty", ErrInvalidTracingConfig)
	}
	if c.ServiceName == "" {
		return fmt.Errorf("%w: service name is empty", ErrInvalidTracingConfig)
	}
	if c.SamplingRatio < 0 || c.SamplingRatio > 1 {
		return fmt.Errorf("%w: sampling ratio %v outside [0, 1]", ErrInvalidTracingConfig, c.SamplingRatio)
	}
	return nil
}

// TracerProvider owns the SDK provider installed as the global one.
// A disabled provider leaves the otel no-op provider in place.
type TracerProvider struct {
	sdk    *sdktrace.TracerProvider
	logger *zap.Logger

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewTracerProvider exports spans over OTLP/gRPC when cfg.Enabled is set and
// installs the W3C trace-context propagator for admin API callers.
func NewTracerProvider(ctx context.Context, cfg Config, logger *zap.Logger) (*TracerProvider, error) {
	if !cfg.Enabled {
		logger.Info("Tracing disabled")
		return &TracerProvider{logger: logger}, nil
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create span exporter: %w", err)
	}

	res, err := serviceResource(cfg)
	if err != nil {
		return nil, err
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRatio))),
	)
	otel.SetTracerProvider(sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Tracing enabled",
		zap.String("collector", cfg.CollectorEndpoint),
		zap.String("service", cfg.ServiceName),
		zap.String("environment", cfg.Environment),
		zap.Float64("sampling_ratio", cfg.SamplingRatio),
	)
	return &TracerProvider{sdk: sdk, logger: logger}, nil
}

func serviceResource(cfg Config) (*resource.Resource, error) {
	version := cfg.ServiceVersion
	if version == "" {
		version = "dev"
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(version),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentName(cfg.Environment))
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
	if err != nil {
		return nil, fmt.Errorf("build service resource: %w", err)
	}
	return res, nil
}

// IsEnabled reports whether spans are exported
func (tp *TracerProvider) IsEnabled() bool {
	return tp.sdk != nil
}

// Tracer returns a tracer from the SDK provider, or from the global one when disabled
func (tp *TracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if tp.sdk == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return tp.sdk.Tracer(name, opts...)
}

// Shutdown flushes queued spans within ctx. Later calls return the first result.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.sdk == nil {
		return nil
	}
	tp.shutdownOnce.Do(func() {
		if err := tp.sdk.Shutdown(ctx); err != nil {
			tp.logger.Warn("Spans may have been dropped on shutdown", zap.Error(err))
			tp.shutdownErr = fmt.Errorf("shutdown tracer provider: %w", err)
		}
	})
	return tp.shutdownErr
}
