// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otel builds OpenTelemetry SDK providers from [config.Reader] values.
//
// Each provider is only built when its exporter produces a value, so an
// application without any exporter configured runs with the no-op providers.
//
// Environment variables:
//   - OTEL_SERVICE_NAME
//   - OTEL_SERVICE_VERSION
//   - OTEL_TRACES_SAMPLER_RATIO
//   - OTEL_BSP_SCHEDULE_DELAY
//   - OTEL_BSP_MAX_EXPORT_BATCH_SIZE
//   - OTEL_METRIC_EXPORT_INTERVAL
//   - OTEL_BLRP_SCHEDULE_DELAY
//   - OTEL_BLRP_MAX_EXPORT_BATCH_SIZE
package otel

import (
	"context"
	"time"

	"github.com/z5labs/loam/config"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.38.0"
	"go.opentelemetry.io/otel/trace"
)

// Resource describes the service producing telemetry.
type Resource struct {
	ServiceName    config.Reader[string]
	ServiceVersion config.Reader[string]
}

// ResourceFromEnv reads the service name and version from
// OTEL_SERVICE_NAME and OTEL_SERVICE_VERSION.
func ResourceFromEnv() Resource {
	return Resource{
		ServiceName:    config.Env("OTEL_SERVICE_NAME"),
		ServiceVersion: config.Env("OTEL_SERVICE_VERSION"),
	}
}

// Read implements the [config.Reader] interface.
func (cfg Resource) Read(ctx context.Context) (config.Value[*resource.Resource], error) {
	name, err := config.ReadOr(ctx, "loam", cfg.ServiceName)
	if err != nil {
		return config.Value[*resource.Resource]{}, err
	}
	version, err := config.ReadOr(ctx, "", cfg.ServiceVersion)
	if err != nil {
		return config.Value[*resource.Resource]{}, err
	}

	attrs := []resource.Option{
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceName(name)),
	}
	if version != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(version)))
	}

	rsc, err := resource.New(ctx, attrs...)
	if err != nil {
		return config.Value[*resource.Resource]{}, err
	}
	return config.ValueOf(rsc), nil
}

// TracerProvider configures a batching SDK tracer provider.
type TracerProvider struct {
	Resource     config.Reader[*resource.Resource]
	Exporter     config.Reader[sdktrace.SpanExporter]
	SampleRatio  config.Reader[float64]
	BatchTimeout config.Reader[time.Duration]
	MaxBatchSize config.Reader[int]
}

// TracerProviderFromEnv reads the tunables of a [TracerProvider] from the
// standard OTel environment variables.
func TracerProviderFromEnv(exporter config.Reader[sdktrace.SpanExporter]) TracerProvider {
	return TracerProvider{
		Resource:     ResourceFromEnv(),
		Exporter:     exporter,
		SampleRatio:  config.Float64FromString(config.Env("OTEL_TRACES_SAMPLER_RATIO")),
		BatchTimeout: config.DurationFromString(config.Env("OTEL_BSP_SCHEDULE_DELAY")),
		MaxBatchSize: config.IntFromString(config.Env("OTEL_BSP_MAX_EXPORT_BATCH_SIZE")),
	}
}

// Read implements the [config.Reader] interface. The value is unset if
// no span exporter is configured.
func (cfg TracerProvider) Read(ctx context.Context) (config.Value[trace.TracerProvider], error) {
	exp, ok, err := optional(ctx, cfg.Exporter)
	if err != nil || !ok {
		return config.Value[trace.TracerProvider]{}, err
	}

	rsc, err := config.Read(ctx, config.Default(resource.Default(), cfg.Resource))
	if err != nil {
		return config.Value[trace.TracerProvider]{}, err
	}
	ratio, err := config.ReadOr(ctx, 1.0, cfg.SampleRatio)
	if err != nil {
		return config.Value[trace.TracerProvider]{}, err
	}
	timeout, err := config.ReadOr(ctx, 5*time.Second, cfg.BatchTimeout)
	if err != nil {
		return config.Value[trace.TracerProvider]{}, err
	}
	size, err := config.ReadOr(ctx, 512, cfg.MaxBatchSize)
	if err != nil {
		return config.Value[trace.TracerProvider]{}, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(rsc),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithBatcher(
			exp,
			sdktrace.WithBatchTimeout(timeout),
			sdktrace.WithMaxExportBatchSize(size),
		),
	)
	return config.ValueOf[trace.TracerProvider](tp), nil
}

// MeterProvider configures an SDK meter provider with a periodic reader.
type MeterProvider struct {
	Resource config.Reader[*resource.Resource]
	Exporter config.Reader[sdkmetric.Exporter]
	Interval config.Reader[time.Duration]
}

// MeterProviderFromEnv reads the export interval from OTEL_METRIC_EXPORT_INTERVAL.
func MeterProviderFromEnv(exporter config.Reader[sdkmetric.Exporter]) MeterProvider {
	return MeterProvider{
		Resource: ResourceFromEnv(),
		Exporter: exporter,
		Interval: config.DurationFromString(config.Env("OTEL_METRIC_EXPORT_INTERVAL")),
	}
}

// Read implements the [config.Reader] interface. The value is unset if
// no metric exporter is configured.
func (cfg MeterProvider) Read(ctx context.Context) (config.Value[metric.MeterProvider], error) {
	exp, ok, err := optional(ctx, cfg.Exporter)
	if err != nil || !ok {
		return config.Value[metric.MeterProvider]{}, err
	}

	rsc, err := config.Read(ctx, config.Default(resource.Default(), cfg.Resource))
	if err != nil {
		return config.Value[metric.MeterProvider]{}, err
	}
	interval, err := config.ReadOr(ctx, time.Minute, cfg.Interval)
	if err != nil {
		return config.Value[metric.MeterProvider]{}, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(rsc),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
	)
	return config.ValueOf[metric.MeterProvider](mp), nil
}

// LoggerProvider configures a batching SDK logger provider.
type LoggerProvider struct {
	Resource       config.Reader[*resource.Resource]
	Exporter       config.Reader[sdklog.Exporter]
	ExportInterval config.Reader[time.Duration]
	MaxBatchSize   config.Reader[int]
}

// LoggerProviderFromEnv reads the tunables of a [LoggerProvider] from the
// standard OTel environment variables.
func LoggerProviderFromEnv(exporter config.Reader[sdklog.Exporter]) LoggerProvider {
	return LoggerProvider{
		Resource:       ResourceFromEnv(),
		Exporter:       exporter,
		ExportInterval: config.DurationFromString(config.Env("OTEL_BLRP_SCHEDULE_DELAY")),
		MaxBatchSize:   config.IntFromString(config.Env("OTEL_BLRP_MAX_EXPORT_BATCH_SIZE")),
	}
}

// Read implements the [config.Reader] interface. The value is unset if
// no log exporter is configured.
func (cfg LoggerProvider) Read(ctx context.Context) (config.Value[log.LoggerProvider], error) {
	exp, ok, err := optional(ctx, cfg.Exporter)
	if err != nil || !ok {
		return config.Value[log.LoggerProvider]{}, err
	}

	rsc, err := config.Read(ctx, config.Default(resource.Default(), cfg.Resource))
	if err != nil {
		return config.Value[log.LoggerProvider]{}, err
	}
	interval, err := config.ReadOr(ctx, time.Second, cfg.ExportInterval)
	if err != nil {
		return config.Value[log.LoggerProvider]{}, err
	}
	size, err := config.ReadOr(ctx, 512, cfg.MaxBatchSize)
	if err != nil {
		return config.Value[log.LoggerProvider]{}, err
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(rsc),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(
			exp,
			sdklog.WithExportInterval(interval),
			sdklog.WithExportMaxBatchSize(size),
		)),
	)
	return config.ValueOf[log.LoggerProvider](lp), nil
}

func optional[T any](ctx context.Context, r config.Reader[T]) (T, bool, error) {
	var zero T
	if r == nil {
		return zero, false, nil
	}

	val, err := r.Read(ctx)
	if err != nil {
		return zero, false, err
	}
	v, ok := val.Value()
	return v, ok, nil
}
