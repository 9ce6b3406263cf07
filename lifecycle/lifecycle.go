// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package lifecycle decides where resource instances come from and when they go away.
package lifecycle

import (
	"context"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/z5labs/loam/lifecycle"

// Provider supplies resource instances to the invoker.
type Provider interface {
	// Instance returns the instance which handles the current request.
	Instance(context.Context) (any, error)

	// Release is called once the request has been handled.
	Release(ctx context.Context, instance any) error

	// IsSingleton reports whether every request shares one instance.
	IsSingleton() bool
}

// Initializer is implemented by resources which need setup after construction.
type Initializer interface {
	Init(context.Context) error
}

// Destroyer is implemented by resources which need cleanup after a request.
type Destroyer interface {
	Destroy(context.Context) error
}

// InstanceError is returned when a resource instance can not be constructed.
type InstanceError struct {
	Class reflect.Type
	Cause error
}

// Error implements the [error] interface.
func (e InstanceError) Error() string {
	return fmt.Sprintf("lifecycle: failed to create instance of %s: %s", e.Class, e.Cause)
}

// Unwrap returns the underlying cause.
func (e InstanceError) Unwrap() error {
	return e.Cause
}

// PerRequestProvider creates a new instance for every request.
type PerRequestProvider struct {
	class     reflect.Type
	construct func(context.Context) (any, error)
	created   metric.Int64Counter
	released  metric.Int64Counter
}

// PerRequestOption configures a [PerRequestProvider].
type PerRequestOption func(*perRequestOptions)

type perRequestOptions struct {
	construct func(context.Context) (any, error)
	mp        metric.MeterProvider
}

// Constructor replaces the zero value construction of instances.
// f must return a pointer to the provider's class.
func Constructor(f func(context.Context) (any, error)) PerRequestOption {
	return func(o *perRequestOptions) {
		o.construct = f
	}
}

// MeterProvider sets where instance metrics are recorded.
// The global meter provider is used by default.
func MeterProvider(mp metric.MeterProvider) PerRequestOption {
	return func(o *perRequestOptions) {
		o.mp = mp
	}
}

// PerRequest returns a [PerRequestProvider] for the struct type class.
// Unless a [Constructor] is given, instances are new zero values of class.
func PerRequest(class reflect.Type, opts ...PerRequestOption) *PerRequestProvider {
	if class.Kind() == reflect.Pointer {
		class = class.Elem()
	}

	o := &perRequestOptions{
		mp: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}

	p := &PerRequestProvider{
		class:     class,
		construct: o.construct,
	}
	if p.construct == nil {
		p.construct = func(context.Context) (any, error) {
			return reflect.New(class).Interface(), nil
		}
	}

	meter := o.mp.Meter(meterName)

	var err error
	p.created, err = meter.Int64Counter(
		"loam.resource.instances",
		metric.WithDescription("Total number of per-request resource instances created"),
		metric.WithUnit("{instance}"),
	)
	if err != nil {
		p.created = noop.Int64Counter{}
	}
	p.released, err = meter.Int64Counter(
		"loam.resource.instances.released",
		metric.WithDescription("Total number of per-request resource instances released"),
		metric.WithUnit("{instance}"),
	)
	if err != nil {
		p.released = noop.Int64Counter{}
	}
	return p
}

// Class returns the struct type instances are created for.
func (p *PerRequestProvider) Class() reflect.Type {
	return p.class
}

// Instance implements the [Provider] interface.
func (p *PerRequestProvider) Instance(ctx context.Context) (any, error) {
	inst, err := p.construct(ctx)
	if err != nil {
		return nil, InstanceError{Class: p.class, Cause: err}
	}
	if t := reflect.TypeOf(inst); t != reflect.PointerTo(p.class) {
		return nil, InstanceError{
			Class: p.class,
			Cause: fmt.Errorf("constructor returned %s", t),
		}
	}

	if init, ok := inst.(Initializer); ok {
		err = init.Init(ctx)
		if err != nil {
			return nil, InstanceError{Class: p.class, Cause: err}
		}
	}

	p.created.Add(ctx, 1, p.attrs())
	return inst, nil
}

// Release implements the [Provider] interface.
func (p *PerRequestProvider) Release(ctx context.Context, instance any) error {
	p.released.Add(ctx, 1, p.attrs())

	d, ok := instance.(Destroyer)
	if !ok {
		return nil
	}
	return d.Destroy(ctx)
}

// IsSingleton implements the [Provider] interface.
func (*PerRequestProvider) IsSingleton() bool {
	return false
}

func (p *PerRequestProvider) attrs() metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("resource.class", p.class.String()))
}

// SingletonProvider hands the same instance to every request.
type SingletonProvider struct {
	instance any
}

// Singleton returns a [SingletonProvider] for instance.
func Singleton(instance any) *SingletonProvider {
	return &SingletonProvider{instance: instance}
}

// Instance implements the [Provider] interface.
func (p *SingletonProvider) Instance(context.Context) (any, error) {
	return p.instance, nil
}

// Release implements the [Provider] interface. The shared instance is never destroyed.
func (*SingletonProvider) Release(context.Context, any) error {
	return nil
}

// IsSingleton implements the [Provider] interface.
func (*SingletonProvider) IsSingleton() bool {
	return true
}
