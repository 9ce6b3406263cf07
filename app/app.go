// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app provides the build-then-run abstraction used to start servers.
//
// A [Builder] constructs a [Runtime] from a [context.Context]. Builders are
// chained with [Bind] and decorated with post-run hooks via [WithHooks].
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/z5labs/sdk-go/try"
)

// Builder constructs a T.
type Builder[T any] interface {
	Build(context.Context) (T, error)
}

// BuilderFunc is a func type of the [Builder] interface.
type BuilderFunc[T any] func(context.Context) (T, error)

// Build implements the [Builder] interface.
func (f BuilderFunc[T]) Build(ctx context.Context) (T, error) {
	return f(ctx)
}

// Bind feeds the value built by builder into binder and builds the result.
// A panic in binder, e.g. from [config.Must], is returned as an error.
//
// [config.Must]: https://pkg.go.dev/github.com/z5labs/loam/config#Must
func Bind[A, B any](builder Builder[A], binder func(A) Builder[B]) Builder[B] {
	return BuilderFunc[B](func(ctx context.Context) (b B, err error) {
		defer try.Recover(&err)

		a, err := builder.Build(ctx)
		if err != nil {
			return b, err
		}
		return binder(a).Build(ctx)
	})
}

// Runtime is anything which runs until its context is cancelled or it fails.
type Runtime interface {
	Run(context.Context) error
}

// RuntimeFunc is a func type of the [Runtime] interface.
type RuntimeFunc func(context.Context) error

// Run implements the [Runtime] interface.
func (f RuntimeFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// BuildError is returned by [Run] when the [Runtime] could not be built.
type BuildError struct {
	Cause error
}

// Error implements the [error] interface.
func (e BuildError) Error() string {
	return fmt.Sprintf("app: failed to build runtime: %s", e.Cause)
}

// Unwrap returns the underlying cause.
func (e BuildError) Unwrap() error {
	return e.Cause
}

// Run builds the [Runtime] and runs it until ctx is cancelled or the
// process receives SIGINT or SIGTERM. A runtime which returns
// [context.Canceled] after being told to stop has stopped cleanly.
func Run[T Runtime](ctx context.Context, builder Builder[T]) error {
	sigCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := builder.Build(sigCtx)
	if err != nil {
		return BuildError{Cause: err}
	}

	err = rt.Run(sigCtx)
	if sigCtx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// LogError logs a non-nil err returned by [Run] to h.
func LogError(h slog.Handler, err error) {
	if err == nil {
		return
	}

	msg := "application failed"
	var berr BuildError
	if errors.As(err, &berr) {
		msg = "failed to build application"
		err = berr.Cause
	}
	slog.New(h).Error(msg, slog.Any("error", err))
}
