// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package inject populates the request scoped state of resource instances.
//
// A resource declares the state it needs as struct fields. A field of type
// [Context] is a proxy which resolves its value from the request scope
// every time it is read, so it is safe to share between requests and is the
// only kind of context field a singleton resource may declare. A field
// tagged `loam:"context"` holds the resolved value itself and is assigned
// before each request is handled.
//
//	type Books struct {
//	    Tenant inject.Context[Tenant]
//	    Header http.Header `loam:"context"`
//	}
package inject

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync"
)

var (
	// ErrNotInjected is returned by [Context.Get] when the proxy was never bound.
	ErrNotInjected = errors.New("inject: context proxy has not been injected")

	// ErrNoRequestScope is returned when a context is resolved outside of a request.
	ErrNoRequestScope = errors.New("inject: no request scope in context")
)

// UnknownContextError is returned when no [ContextProvider] serves Type.
type UnknownContextError struct {
	Type reflect.Type
}

// Error implements the [error] interface.
func (e UnknownContextError) Error() string {
	return fmt.Sprintf("inject: no context provider for type: %s", e.Type)
}

// ContextError wraps a failure of the [ContextProvider] serving Type.
type ContextError struct {
	Type  reflect.Type
	Cause error
}

// Error implements the [error] interface.
func (e ContextError) Error() string {
	return fmt.Sprintf("inject: failed to provide context %s: %s", e.Type, e.Cause)
}

// Unwrap returns the underlying cause.
func (e ContextError) Unwrap() error {
	return e.Cause
}

// ContextProvider produces a context value of a single type for a request.
type ContextProvider interface {
	ContextType() reflect.Type
	ProvideContext(*http.Request) (any, error)
}

// ProviderFunc adapts a func into a [ContextProvider] for T.
type ProviderFunc[T any] func(*http.Request) (T, error)

// ContextType implements the [ContextProvider] interface.
func (f ProviderFunc[T]) ContextType() reflect.Type {
	return reflect.TypeFor[T]()
}

// ProvideContext implements the [ContextProvider] interface.
func (f ProviderFunc[T]) ProvideContext(r *http.Request) (any, error) {
	return f(r)
}

// Resolver looks up the [ContextProvider] for a type.
type Resolver interface {
	ContextProvider(reflect.Type) (ContextProvider, bool)
}

// Providers is a [Resolver] backed by a fixed set of providers.
type Providers []ContextProvider

// ContextProvider implements the [Resolver] interface. Later entries win.
func (ps Providers) ContextProvider(t reflect.Type) (ContextProvider, bool) {
	for i := len(ps) - 1; i >= 0; i-- {
		if ps[i].ContextType() == t {
			return ps[i], true
		}
	}
	return nil, false
}

type scopeKey struct{}

type scope struct {
	req *http.Request

	mu     sync.Mutex
	values map[reflect.Type]any
}

// WithRequest starts a request scope for r. Values resolved within the
// scope are cached until it is discarded with ctx. The request held by
// the scope carries the returned context.
func WithRequest(ctx context.Context, r *http.Request) context.Context {
	s := &scope{
		values: make(map[reflect.Type]any),
	}
	ctx = context.WithValue(ctx, scopeKey{}, s)
	s.req = r.WithContext(ctx)
	return ctx
}

// Request returns the request of the scope carried by ctx.
func Request(ctx context.Context) (*http.Request, bool) {
	s, ok := ctx.Value(scopeKey{}).(*scope)
	if !ok {
		return nil, false
	}
	return s.req, true
}

// Resolve returns the value of type t for the request scope carried by ctx.
func Resolve(ctx context.Context, res Resolver, t reflect.Type) (any, error) {
	s, ok := ctx.Value(scopeKey{}).(*scope)
	if !ok {
		return nil, ErrNoRequestScope
	}

	s.mu.Lock()
	v, ok := s.values[t]
	s.mu.Unlock()
	if ok {
		return v, nil
	}

	p, ok := res.ContextProvider(t)
	if !ok {
		return nil, UnknownContextError{Type: t}
	}

	// providers may resolve other contexts of the same scope
	v, err := p.ProvideContext(s.req)
	if err != nil {
		return nil, ContextError{Type: t, Cause: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.values[t]; ok {
		return cached, nil
	}
	s.values[t] = v
	return v, nil
}

// Context is a proxy field for a request scoped value of type T.
type Context[T any] struct {
	res Resolver
}

// Get resolves the current value of T.
func (c Context[T]) Get(ctx context.Context) (T, error) {
	var zero T
	if c.res == nil {
		return zero, ErrNotInjected
	}

	v, err := Resolve(ctx, c.res, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}

	t, ok := v.(T)
	if !ok {
		return zero, ContextError{
			Type:  reflect.TypeFor[T](),
			Cause: fmt.Errorf("provider returned %T", v),
		}
	}
	return t, nil
}

// Injected reports whether the proxy has been bound to a [Resolver].
func (c Context[T]) Injected() bool {
	return c.res != nil
}

func (c Context[T]) contextType() reflect.Type {
	return reflect.TypeFor[T]()
}

func (c *Context[T]) bind(res Resolver) {
	c.res = res
}

type proxy interface {
	contextType() reflect.Type
}

type binder interface {
	bind(Resolver)
}

var proxyType = reflect.TypeFor[proxy]()
