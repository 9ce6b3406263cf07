// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package inject

import (
	"context"
	"fmt"
	"reflect"
)

// Injector assigns context fields of resource instances.
type Injector interface {
	// InjectProxies binds the proxy fields of a shared instance. It is
	// called once at setup and must reject raw fields.
	InjectProxies(res Resolver, fields []Field, instance any) error

	// InjectValues assigns every context field of a per-request instance
	// from the request scope carried by ctx.
	InjectValues(ctx context.Context, res Resolver, fields []Field, instance any) error
}

// SingletonFieldError is returned when a shared instance declares a raw context field.
type SingletonFieldError struct {
	Class reflect.Type
	Field string
}

// Error implements the [error] interface.
func (e SingletonFieldError) Error() string {
	return fmt.Sprintf("inject: singleton %s can not hold request scoped field %s, use inject.Context instead", e.Class, e.Field)
}

// FieldInjector is the reflection based [Injector].
type FieldInjector struct{}

// NewInjector returns a [FieldInjector].
func NewInjector() *FieldInjector {
	return &FieldInjector{}
}

// InjectProxies implements the [Injector] interface.
func (*FieldInjector) InjectProxies(res Resolver, fields []Field, instance any) error {
	v, err := structValue(instance)
	if err != nil {
		return err
	}

	for _, f := range fields {
		if !f.Proxy {
			return SingletonFieldError{Class: v.Type(), Field: f.Name}
		}
	}
	for _, f := range fields {
		bindProxy(v, f, res)
	}
	return nil
}

// InjectValues implements the [Injector] interface.
func (*FieldInjector) InjectValues(ctx context.Context, res Resolver, fields []Field, instance any) error {
	v, err := structValue(instance)
	if err != nil {
		return err
	}

	for _, f := range fields {
		if f.Proxy {
			bindProxy(v, f, res)
			continue
		}

		val, err := Resolve(ctx, res, f.Type)
		if err != nil {
			return err
		}

		rv := reflect.ValueOf(val)
		if !rv.IsValid() {
			rv = reflect.Zero(f.Type)
		}
		if !rv.Type().AssignableTo(f.Type) {
			return ContextError{
				Type:  f.Type,
				Cause: fmt.Errorf("provider returned %s", rv.Type()),
			}
		}
		v.FieldByIndex(f.Index).Set(rv)
	}
	return nil
}

func bindProxy(v reflect.Value, f Field, res Resolver) {
	v.FieldByIndex(f.Index).Addr().Interface().(binder).bind(res)
}

func structValue(instance any) (reflect.Value, error) {
	v := reflect.ValueOf(instance)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("inject: expected a non-nil pointer to a struct but got: %T", instance)
	}
	return v.Elem(), nil
}
