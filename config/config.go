// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config provides composable, lazily evaluated configuration values.
//
// A [Reader] produces a [Value] which may or may not be set. Readers are
// combined with helpers like [Default], [Or], [Map] and [Bind] so that
// configuration can be declared once and resolved when an application is built.
package config

import (
	"context"
	"errors"
	"fmt"
)

// ErrValueNotSet is returned by [Read] when a [Reader] succeeds but does not produce a value.
var ErrValueNotSet = errors.New("config: value not set")

// Value is an optional configuration value.
type Value[T any] struct {
	value T
	set   bool
}

// ValueOf returns a set [Value] holding v.
func ValueOf[T any](v T) Value[T] {
	return Value[T]{
		value: v,
		set:   true,
	}
}

// Value returns the underlying value and whether it was set.
func (v Value[T]) Value() (T, bool) {
	return v.value, v.set
}

// Reader lazily produces a [Value].
type Reader[T any] interface {
	Read(context.Context) (Value[T], error)
}

// ReaderFunc is a func type of the [Reader] interface.
type ReaderFunc[T any] func(context.Context) (Value[T], error)

// Read implements the [Reader] interface.
func (f ReaderFunc[T]) Read(ctx context.Context) (Value[T], error) {
	return f(ctx)
}

// EmptyReader returns a [Reader] which never produces a value.
func EmptyReader[T any]() Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return Value[T]{}, nil
	})
}

// ReaderOf returns a [Reader] which always produces v.
func ReaderOf[T any](v T) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return ValueOf(v), nil
	})
}

// Read reads r and returns its value. If r does not produce a
// value, [ErrValueNotSet] is returned.
func Read[T any](ctx context.Context, r Reader[T]) (T, error) {
	var zero T
	if r == nil {
		return zero, ErrValueNotSet
	}

	val, err := r.Read(ctx)
	if err != nil {
		return zero, err
	}

	v, ok := val.Value()
	if !ok {
		return zero, ErrValueNotSet
	}
	return v, nil
}

// ReadOr reads r and returns its value, or def if r does not produce one.
func ReadOr[T any](ctx context.Context, def T, r Reader[T]) (T, error) {
	v, err := Read(ctx, Default(def, r))
	if err != nil {
		return def, err
	}
	return v, nil
}

// ReadError is the panic value used by [Must] and [MustOr].
type ReadError struct {
	Cause error
}

// Error implements the [error] interface.
func (e ReadError) Error() string {
	return fmt.Sprintf("failed to read config value: %s", e.Cause)
}

// Unwrap returns the underlying cause.
func (e ReadError) Unwrap() error {
	return e.Cause
}

// Must is like [Read] but panics with a [ReadError] on failure.
func Must[T any](ctx context.Context, r Reader[T]) T {
	v, err := Read(ctx, r)
	if err != nil {
		panic(ReadError{Cause: err})
	}
	return v
}

// MustOr is like [ReadOr] but panics with a [ReadError] on failure.
func MustOr[T any](ctx context.Context, def T, r Reader[T]) T {
	v, err := ReadOr(ctx, def, r)
	if err != nil {
		panic(ReadError{Cause: err})
	}
	return v
}

// Default returns a [Reader] which falls back to def when r does not produce a value.
func Default[T any](def T, r Reader[T]) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		if r == nil {
			return ValueOf(def), nil
		}

		val, err := r.Read(ctx)
		if err != nil {
			return Value[T]{}, err
		}
		if _, ok := val.Value(); ok {
			return val, nil
		}
		return ValueOf(def), nil
	})
}

// Or returns a [Reader] which produces the first set value of rs.
func Or[T any](rs ...Reader[T]) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		for _, r := range rs {
			val, err := r.Read(ctx)
			if err != nil {
				return Value[T]{}, err
			}
			if _, ok := val.Value(); ok {
				return val, nil
			}
		}
		return Value[T]{}, nil
	})
}

// Map transforms the value of r with f. An unset value is passed through unset.
func Map[A, B any](r Reader[A], f func(context.Context, A) (B, error)) Reader[B] {
	return ReaderFunc[B](func(ctx context.Context) (Value[B], error) {
		val, err := r.Read(ctx)
		if err != nil {
			return Value[B]{}, err
		}

		a, ok := val.Value()
		if !ok {
			return Value[B]{}, nil
		}

		b, err := f(ctx, a)
		if err != nil {
			return Value[B]{}, err
		}
		return ValueOf(b), nil
	})
}

// Bind uses the value of r to select the next [Reader].
func Bind[A, B any](r Reader[A], f func(context.Context, A) Reader[B]) Reader[B] {
	return ReaderFunc[B](func(ctx context.Context) (Value[B], error) {
		val, err := r.Read(ctx)
		if err != nil {
			return Value[B]{}, err
		}

		a, ok := val.Value()
		if !ok {
			return Value[B]{}, nil
		}
		return f(ctx, a).Read(ctx)
	})
}
