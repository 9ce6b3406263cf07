// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/z5labs/loam"
	"github.com/z5labs/loam/bus"
)

// Interceptor wraps the invocation of every operation of a [Server].
type Interceptor interface {
	Intercept(next func(http.ResponseWriter, *http.Request) error) func(http.ResponseWriter, *http.Request) error
}

// InterceptorFunc is a func type of the [Interceptor] interface.
type InterceptorFunc func(next func(http.ResponseWriter, *http.Request) error) func(http.ResponseWriter, *http.Request) error

// Intercept implements the [Interceptor] interface.
func (f InterceptorFunc) Intercept(next func(http.ResponseWriter, *http.Request) error) func(http.ResponseWriter, *http.Request) error {
	return f(next)
}

// Feature customizes a [Server] once it has been constructed.
type Feature interface {
	Initialize(ctx context.Context, s *Server, b *bus.Bus) error
}

// FeatureFunc is a func type of the [Feature] interface.
type FeatureFunc func(context.Context, *Server, *bus.Bus) error

// Initialize implements the [Feature] interface.
func (f FeatureFunc) Initialize(ctx context.Context, s *Server, b *bus.Bus) error {
	return f(ctx, s, b)
}

// Logging returns a [Feature] which logs every invocation.
func Logging() Feature {
	return FeatureFunc(func(ctx context.Context, s *Server, b *bus.Bus) error {
		s.Use(loggingInterceptor(loam.Logger(instrumentationName)))
		return nil
	})
}

func loggingInterceptor(log *slog.Logger) Interceptor {
	return InterceptorFunc(func(next func(http.ResponseWriter, *http.Request) error) func(http.ResponseWriter, *http.Request) error {
		return func(w http.ResponseWriter, r *http.Request) error {
			start := time.Now()
			err := next(w, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				log.LogAttrs(r.Context(), slog.LevelWarn, "invocation failed", append(attrs, slog.Any("error", err))...)
				return err
			}
			log.LogAttrs(r.Context(), slog.LevelInfo, "invocation succeeded", attrs...)
			return nil
		}
	})
}
