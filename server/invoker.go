// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"context"
	"errors"
	"net/http"
	"reflect"

	"github.com/z5labs/loam/inject"
	"github.com/z5labs/loam/lifecycle"
	"github.com/z5labs/loam/resource"

	"github.com/z5labs/sdk-go/try"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/z5labs/loam/server"

// Invocation is everything needed to call one operation for a request.
type Invocation struct {
	// Class is the root resource class the request was routed to.
	Class *resource.ClassInfo

	// Subresources are the locators leading from Class to the class of Operation.
	Subresources []*resource.Subresource

	Operation resource.Operation

	Resolver inject.Resolver
	Injector inject.Injector
}

// Invoker calls resource operations.
type Invoker interface {
	Invoke(ctx context.Context, w http.ResponseWriter, r *http.Request, inv Invocation) error
}

// InvokerFunc is a func type of the [Invoker] interface.
type InvokerFunc func(context.Context, http.ResponseWriter, *http.Request, Invocation) error

// Invoke implements the [Invoker] interface.
func (f InvokerFunc) Invoke(ctx context.Context, w http.ResponseWriter, r *http.Request, inv Invocation) error {
	return f(ctx, w, r, inv)
}

// DefaultInvoker obtains resource instances from their lifecycle provider,
// falling back to service beans for classes without one.
type DefaultInvoker struct {
	tracer trace.Tracer
	beans  map[reflect.Type]lifecycle.Provider
}

// NewInvoker returns a [DefaultInvoker] which serves beans as singletons.
func NewInvoker(beans ...any) *DefaultInvoker {
	iv := &DefaultInvoker{
		tracer: otel.Tracer(instrumentationName),
		beans:  make(map[reflect.Type]lifecycle.Provider, len(beans)),
	}
	for _, bean := range beans {
		t := reflect.TypeOf(bean)
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		iv.beans[t] = lifecycle.Singleton(bean)
	}
	return iv
}

// Invoke implements the [Invoker] interface.
func (iv *DefaultInvoker) Invoke(ctx context.Context, w http.ResponseWriter, r *http.Request, inv Invocation) (err error) {
	spanCtx, span := iv.tracer.Start(ctx, "Invoker.Invoke", trace.WithAttributes(
		attribute.String("resource.class", inv.Class.Type().String()),
		attribute.String("http.request.method", inv.Operation.Method()),
	))
	defer span.End()
	defer func() {
		if err == nil {
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}()
	defer try.Recover(&err)

	p := inv.Class.Provider()
	if p == nil {
		bean, ok := iv.beans[inv.Class.Type()]
		if !ok {
			return NoProviderError{Class: inv.Class.Type().String()}
		}
		p = bean
	}

	inst, err := p.Instance(spanCtx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, p.Release(spanCtx, inst))
	}()

	if !p.IsSingleton() {
		err = inv.Injector.InjectValues(spanCtx, inv.Resolver, inv.Class.Fields(), inst)
		if err != nil {
			return err
		}
	}

	for _, sub := range inv.Subresources {
		inst, err = iv.locate(spanCtx, r, inv, sub, inst)
		if err != nil {
			return err
		}
	}

	return inv.Operation.Invoke(inst, w, r.WithContext(spanCtx))
}

func (iv *DefaultInvoker) locate(ctx context.Context, r *http.Request, inv Invocation, sub *resource.Subresource, parent any) (any, error) {
	spanCtx, span := iv.tracer.Start(ctx, "Invoker.locate", trace.WithAttributes(
		attribute.String("resource.subresource.path", sub.Path()),
	))
	defer span.End()

	inst, err := sub.Locator().Locate(parent, r.WithContext(spanCtx))
	if errors.Is(err, resource.ErrNoSubresource) {
		return nil, StatusError{Status: http.StatusNotFound, Cause: err}
	}
	if err != nil {
		return nil, err
	}

	ci, err := sub.Class()
	if err != nil {
		return nil, err
	}
	if len(ci.Fields()) == 0 {
		return inst, nil
	}

	err = inv.Injector.InjectValues(ctx, inv.Resolver, ci.Fields(), inst)
	if err != nil {
		return nil, err
	}
	return inst, nil
}
