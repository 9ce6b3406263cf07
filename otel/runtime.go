// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otel

import (
	"context"
	"errors"

	"github.com/z5labs/loam/app"
	"github.com/z5labs/loam/config"

	"github.com/z5labs/sdk-go/try"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	lognoop "go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// SDK holds the providers registered globally by [Build].
// Unset readers fall back to the no-op providers and a
// baggage plus trace context propagator.
type SDK struct {
	TextMapPropagator config.Reader[propagation.TextMapPropagator]
	TracerProvider    config.Reader[trace.TracerProvider]
	MeterProvider     config.Reader[metric.MeterProvider]
	LoggerProvider    config.Reader[log.LoggerProvider]

	// RuntimeMetrics starts the Go runtime instrumentation on the meter provider.
	RuntimeMetrics config.Reader[bool]
}

// Runtime runs an inner [app.Runtime] and shuts the SDK providers down
// once it returns.
type Runtime struct {
	inner     app.Runtime
	providers []any
}

// Build registers the SDK providers globally before building the inner
// runtime so that anything built by builder already uses them.
func Build[T app.Runtime](sdk SDK, builder app.Builder[T]) app.Builder[Runtime] {
	return app.BuilderFunc[Runtime](func(ctx context.Context) (_ Runtime, err error) {
		tmp, err := config.ReadOr[propagation.TextMapPropagator](ctx, propagation.NewCompositeTextMapPropagator(
			propagation.Baggage{},
			propagation.TraceContext{},
		), sdk.TextMapPropagator)
		if err != nil {
			return Runtime{}, err
		}
		tp, err := config.ReadOr[trace.TracerProvider](ctx, tracenoop.NewTracerProvider(), sdk.TracerProvider)
		if err != nil {
			return Runtime{}, err
		}
		mp, err := config.ReadOr[metric.MeterProvider](ctx, metricnoop.NewMeterProvider(), sdk.MeterProvider)
		if err != nil {
			return Runtime{}, err
		}
		lp, err := config.ReadOr[log.LoggerProvider](ctx, lognoop.NewLoggerProvider(), sdk.LoggerProvider)
		if err != nil {
			return Runtime{}, err
		}
		rt := Runtime{providers: []any{tp, mp, lp}}
		defer func() {
			if err != nil {
				err = errors.Join(err, rt.shutdown())
			}
		}()

		otel.SetTextMapPropagator(tmp)
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		global.SetLoggerProvider(lp)

		runtimeMetrics, err := config.ReadOr(ctx, false, sdk.RuntimeMetrics)
		if err != nil {
			return Runtime{}, err
		}
		if runtimeMetrics {
			err = runtime.Start(runtime.WithMeterProvider(mp))
			if err != nil {
				return Runtime{}, err
			}
		}

		rt.inner, err = builder.Build(ctx)
		if err != nil {
			return Runtime{}, err
		}
		return rt, nil
	})
}

// Run implements the [app.Runtime] interface. The providers are shut down
// even if the inner runtime fails.
func (rt Runtime) Run(ctx context.Context) (err error) {
	defer try.Close(&err, closerFunc(rt.shutdown))

	return rt.inner.Run(ctx)
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

type shutdowner interface {
	Shutdown(context.Context) error
}

func (rt Runtime) shutdown() error {
	var errs []error
	for _, p := range rt.providers {
		s, ok := p.(shutdowner)
		if !ok {
			continue
		}
		errs = append(errs, s.Shutdown(context.Background()))
	}
	return errors.Join(errs...)
}
