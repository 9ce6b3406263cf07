// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app wires the bookstore resources into a server.
package app

import (
	"context"
	"io"
	"reflect"

	"github.com/z5labs/loam"
	"github.com/z5labs/loam/app"
	"github.com/z5labs/loam/config"
	"github.com/z5labs/loam/example/bookstore/book"
	"github.com/z5labs/loam/example/bookstore/endpoint"
	"github.com/z5labs/loam/example/customcontext"
	"github.com/z5labs/loam/lifecycle"
	"github.com/z5labs/loam/otel"
	"github.com/z5labs/loam/otel/otlp"
	"github.com/z5labs/loam/server"
)

// Config is the bookstore configuration document.
type Config struct {
	Server server.Config `yaml:"server"`
}

// Init creates the bookstore server without starting it.
func Init(ctx context.Context, cfg Config, opts ...server.Option) (*server.Server, error) {
	store := book.NewStore()
	bookStore := reflect.TypeFor[endpoint.BookStore]()

	opts = append([]server.Option{
		server.FromConfig(cfg.Server),
		server.Start(false),
		server.ResourceClasses(bookStore),
		server.ResourceProvider(bookStore, lifecycle.PerRequest(
			bookStore,
			lifecycle.Constructor(func(ctx context.Context) (any, error) {
				return endpoint.NewBookStore(store), nil
			}),
		)),
		server.ServiceBeans(&endpoint.Catalog{Store: store}),
		server.Providers(customcontext.CustomContextFeature{}),
		server.Features(server.Logging()),
		server.WithErrorHandler(server.ProblemDetailsErrorHandler(
			loam.Logger("github.com/z5labs/loam/example/bookstore/app"),
			server.ProblemType("https://bookstore.example.com/problems/"),
		)),
	}, opts...)

	return server.NewFactory(opts...).Create(ctx)
}

// Build reads the YAML configuration from r and builds the bookstore
// with the OTel SDK configured from the environment.
func Build[R io.Reader](r config.Reader[R]) app.Builder[otel.Runtime] {
	cfgBuilder := app.BuilderFunc[Config](func(ctx context.Context) (Config, error) {
		cfg, err := config.Read(ctx, config.UnmarshalYAML[Config](r))
		if err != nil {
			return Config{}, err
		}
		return cfg, cfg.Server.Validate()
	})

	sdk := otel.SDK{
		TracerProvider: otel.TracerProviderFromEnv(otlp.TraceExporterFromEnv()),
		MeterProvider:  otel.MeterProviderFromEnv(otlp.MetricExporterFromEnv()),
		LoggerProvider: otel.LoggerProviderFromEnv(otlp.LogExporterFromEnv()),
		RuntimeMetrics: config.Default(true, config.BoolFromString(config.Env("BOOKSTORE_RUNTIME_METRICS"))),
	}

	return otel.Build(sdk, app.Bind(cfgBuilder, func(cfg Config) app.Builder[*server.Server] {
		return app.BuilderFunc[*server.Server](func(ctx context.Context) (*server.Server, error) {
			return Init(ctx, cfg)
		})
	}))
}
