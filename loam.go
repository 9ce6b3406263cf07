// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package loam provides the shared logging and run helpers used by
// applications hosting RESTful resources.
package loam

import (
	"context"
	"log/slog"
	"os"

	"github.com/z5labs/loam/app"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// Logger returns a [slog.Logger] which forwards records to the
// globally registered OTel logger provider.
func Logger(name string) *slog.Logger {
	return otelslog.NewLogger(name)
}

// LogHandler returns the [slog.Handler] backing [Logger].
func LogHandler(name string) slog.Handler {
	return otelslog.NewHandler(name)
}

// ErrorHandler is called with any error returned while building or running an application.
type ErrorHandler interface {
	HandleError(error)
}

// ErrorHandlerFunc is a func type of the [ErrorHandler] interface.
type ErrorHandlerFunc func(error)

// HandleError implements the [ErrorHandler] interface.
func (f ErrorHandlerFunc) HandleError(err error) {
	f(err)
}

// RunOptions are configurable parameters of [Run].
type RunOptions struct {
	errHandler ErrorHandler
}

// RunOption sets a value on [RunOptions].
type RunOption func(*RunOptions)

// OnError registers the given [ErrorHandler] with [Run].
func OnError(eh ErrorHandler) RunOption {
	return func(ro *RunOptions) {
		ro.errHandler = eh
	}
}

// Run builds and runs the [app.Runtime] produced by builder. Errors are
// passed to the configured [ErrorHandler] which, by default, logs them as JSON to stdout.
//
// The OTel logger provider may already be shutdown when the error is handled,
// so the default handler does not use [Logger].
func Run[T app.Runtime](ctx context.Context, builder app.Builder[T], opts ...RunOption) {
	ro := &RunOptions{
		errHandler: ErrorHandlerFunc(func(err error) {
			app.LogError(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{}), err)
		}),
	}
	for _, opt := range opts {
		opt(ro)
	}

	err := app.Run(ctx, builder)
	if err == nil {
		return
	}
	ro.errHandler.HandleError(err)
}
