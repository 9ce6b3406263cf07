// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otlp provides OTLP exporters for traces, metrics and logs.
//
// The transport is selected by protocol, "grpc" or "http/protobuf", read
// from OTEL_EXPORTER_OTLP_<SIGNAL>_PROTOCOL with OTEL_EXPORTER_OTLP_PROTOCOL
// as fallback. The endpoint is read the same way from
// OTEL_EXPORTER_OTLP_<SIGNAL>_ENDPOINT and OTEL_EXPORTER_OTLP_ENDPOINT.
// An exporter produces no value unless a protocol is configured.
//
//	tp := otel.TracerProviderFromEnv(otlp.TraceExporterFromEnv())
package otlp

import (
	"context"
	"fmt"

	"github.com/z5labs/loam/config"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Protocol is the OTLP transport.
type Protocol string

const (
	GRPC         Protocol = "grpc"
	HTTPProtobuf Protocol = "http/protobuf"
)

// UnsupportedProtocolError is returned for any protocol other than [GRPC] or [HTTPProtobuf].
type UnsupportedProtocolError struct {
	Protocol Protocol
}

// Error implements the [error] interface.
func (e UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("otlp: unsupported protocol: %q", string(e.Protocol))
}

// Exporter configures the transport of one signal.
type Exporter struct {
	Protocol config.Reader[Protocol]

	// Endpoint is a gRPC target, e.g. "localhost:4317", or an HTTP URL,
	// e.g. "http://localhost:4318/v1/traces". If unset the exporter
	// library default is used.
	Endpoint config.Reader[string]
}

func fromEnv(signal string) Exporter {
	return Exporter{
		Protocol: config.Map(
			config.Or(
				config.Env("OTEL_EXPORTER_OTLP_"+signal+"_PROTOCOL"),
				config.Env("OTEL_EXPORTER_OTLP_PROTOCOL"),
			),
			func(_ context.Context, s string) (Protocol, error) {
				return Protocol(s), nil
			},
		),
		Endpoint: config.Or(
			config.Env("OTEL_EXPORTER_OTLP_"+signal+"_ENDPOINT"),
			config.Env("OTEL_EXPORTER_OTLP_ENDPOINT"),
		),
	}
}

// read returns the protocol and endpoint. ok is false if no protocol is
// configured, which includes an empty protocol.
func (e Exporter) read(ctx context.Context) (p Protocol, endpoint string, ok bool, err error) {
	if e.Protocol == nil {
		return "", "", false, nil
	}

	val, err := e.Protocol.Read(ctx)
	if err != nil {
		return "", "", false, err
	}
	p, ok = val.Value()
	if !ok || p == "" {
		return "", "", false, nil
	}

	endpoint, err = config.ReadOr(ctx, "", e.Endpoint)
	if err != nil {
		return "", "", false, err
	}
	switch p {
	case GRPC, HTTPProtobuf:
		return p, endpoint, true, nil
	default:
		return "", "", false, UnsupportedProtocolError{Protocol: p}
	}
}

func dial(target string) (*grpc.ClientConn, error) {
	return grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// TraceExporter produces an OTLP [sdktrace.SpanExporter].
type TraceExporter Exporter

// TraceExporterFromEnv configures a [TraceExporter] from the TRACES environment variables.
func TraceExporterFromEnv() TraceExporter {
	return TraceExporter(fromEnv("TRACES"))
}

// Read implements the [config.Reader] interface.
func (cfg TraceExporter) Read(ctx context.Context) (config.Value[sdktrace.SpanExporter], error) {
	p, endpoint, ok, err := Exporter(cfg).read(ctx)
	if err != nil || !ok {
		return config.Value[sdktrace.SpanExporter]{}, err
	}

	var exp sdktrace.SpanExporter
	switch p {
	case GRPC:
		var opts []otlptracegrpc.Option
		if endpoint != "" {
			cc, err := dial(endpoint)
			if err != nil {
				return config.Value[sdktrace.SpanExporter]{}, err
			}
			opts = append(opts, otlptracegrpc.WithGRPCConn(cc))
		}
		exp, err = otlptracegrpc.New(ctx, opts...)
	case HTTPProtobuf:
		var opts []otlptracehttp.Option
		if endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
		}
		exp, err = otlptracehttp.New(ctx, opts...)
	}
	if err != nil {
		return config.Value[sdktrace.SpanExporter]{}, err
	}
	return config.ValueOf(exp), nil
}

// MetricExporter produces an OTLP [sdkmetric.Exporter].
type MetricExporter Exporter

// MetricExporterFromEnv configures a [MetricExporter] from the METRICS environment variables.
func MetricExporterFromEnv() MetricExporter {
	return MetricExporter(fromEnv("METRICS"))
}

// Read implements the [config.Reader] interface.
func (cfg MetricExporter) Read(ctx context.Context) (config.Value[sdkmetric.Exporter], error) {
	p, endpoint, ok, err := Exporter(cfg).read(ctx)
	if err != nil || !ok {
		return config.Value[sdkmetric.Exporter]{}, err
	}

	var exp sdkmetric.Exporter
	switch p {
	case GRPC:
		var opts []otlpmetricgrpc.Option
		if endpoint != "" {
			cc, err := dial(endpoint)
			if err != nil {
				return config.Value[sdkmetric.Exporter]{}, err
			}
			opts = append(opts, otlpmetricgrpc.WithGRPCConn(cc))
		}
		exp, err = otlpmetricgrpc.New(ctx, opts...)
	case HTTPProtobuf:
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpointURL(endpoint))
		}
		exp, err = otlpmetrichttp.New(ctx, opts...)
	}
	if err != nil {
		return config.Value[sdkmetric.Exporter]{}, err
	}
	return config.ValueOf(exp), nil
}

// LogExporter produces an OTLP [sdklog.Exporter].
type LogExporter Exporter

// LogExporterFromEnv configures a [LogExporter] from the LOGS environment variables.
func LogExporterFromEnv() LogExporter {
	return LogExporter(fromEnv("LOGS"))
}

// Read implements the [config.Reader] interface.
func (cfg LogExporter) Read(ctx context.Context) (config.Value[sdklog.Exporter], error) {
	p, endpoint, ok, err := Exporter(cfg).read(ctx)
	if err != nil || !ok {
		return config.Value[sdklog.Exporter]{}, err
	}

	var exp sdklog.Exporter
	switch p {
	case GRPC:
		var opts []otlploggrpc.Option
		if endpoint != "" {
			cc, err := dial(endpoint)
			if err != nil {
				return config.Value[sdklog.Exporter]{}, err
			}
			opts = append(opts, otlploggrpc.WithGRPCConn(cc))
		}
		exp, err = otlploggrpc.New(ctx, opts...)
	case HTTPProtobuf:
		var opts []otlploghttp.Option
		if endpoint != "" {
			opts = append(opts, otlploghttp.WithEndpointURL(endpoint))
		}
		exp, err = otlploghttp.New(ctx, opts...)
	}
	if err != nil {
		return config.Value[sdklog.Exporter]{}, err
	}
	return config.ValueOf(exp), nil
}
