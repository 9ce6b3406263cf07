// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package resource describes resource classes and turns them into descriptors.
//
// A resource class is a struct type whose pointer implements [Resource].
// Its routes are declared with method expressions so that handlers stay
// ordinary methods:
//
//	type Books struct {
//	    Header http.Header `loam:"context"`
//	}
//
//	func (*Books) Routes() resource.Routes {
//	    return resource.Routes{
//	        Path: "/books",
//	        Operations: []resource.Operation{
//	            resource.Get("/", (*Books).List),
//	            resource.Post("/", (*Books).Add, resource.Accepts[Book](), resource.Returns[Book](http.StatusCreated)),
//	        },
//	        Subresources: []resource.Locator{
//	            resource.Locate("/{id}/reviews", (*Books).Reviews),
//	        },
//	    }
//	}
package resource

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
)

// Resource is implemented by a pointer to every resource class.
// Routes is called on a zero value so it must not depend on instance state.
type Resource interface {
	Routes() Routes
}

// Routes declares the base path, operations and subresources of a class.
type Routes struct {
	Path         string
	Operations   []Operation
	Subresources []Locator
}

// HandlerFunc is the shape of every operation method of T.
type HandlerFunc[T any] func(*T, http.ResponseWriter, *http.Request) error

// Operation binds an HTTP method and relative path to a method of a resource class.
type Operation struct {
	method string
	path   string
	class  reflect.Type
	invoke func(any, http.ResponseWriter, *http.Request) error

	summary   string
	request   reflect.Type
	responses []response
}

type response struct {
	status int
	typ    reflect.Type
}

// OperationOption adds metadata to an [Operation].
type OperationOption func(*Operation)

// Summary sets the one line description of an operation.
func Summary(s string) OperationOption {
	return func(o *Operation) {
		o.summary = s
	}
}

// Accepts documents the entity type read from the request body.
func Accepts[T any]() OperationOption {
	return func(o *Operation) {
		o.request = reflect.TypeFor[T]()
	}
}

// Returns documents the entity type written with status.
func Returns[T any](status int) OperationOption {
	return func(o *Operation) {
		o.responses = append(o.responses, response{status: status, typ: reflect.TypeFor[T]()})
	}
}

// NoContent documents a response with status and no entity.
func NoContent(status int) OperationOption {
	return func(o *Operation) {
		o.responses = append(o.responses, response{status: status})
	}
}

// Handle binds method and path to h.
func Handle[T any](method, path string, h HandlerFunc[T], opts ...OperationOption) Operation {
	class := reflect.TypeFor[T]()
	op := Operation{
		method: method,
		path:   path,
		class:  class,
		invoke: func(instance any, w http.ResponseWriter, r *http.Request) error {
			t, ok := instance.(*T)
			if !ok {
				return InstanceTypeError{Class: class, Instance: reflect.TypeOf(instance)}
			}
			return h(t, w, r)
		},
	}
	for _, opt := range opts {
		opt(&op)
	}
	return op
}

// Get binds a GET request on path to h.
func Get[T any](path string, h HandlerFunc[T], opts ...OperationOption) Operation {
	return Handle(http.MethodGet, path, h, opts...)
}

// Post binds a POST request on path to h.
func Post[T any](path string, h HandlerFunc[T], opts ...OperationOption) Operation {
	return Handle(http.MethodPost, path, h, opts...)
}

// Put binds a PUT request on path to h.
func Put[T any](path string, h HandlerFunc[T], opts ...OperationOption) Operation {
	return Handle(http.MethodPut, path, h, opts...)
}

// Delete binds a DELETE request on path to h.
func Delete[T any](path string, h HandlerFunc[T], opts ...OperationOption) Operation {
	return Handle(http.MethodDelete, path, h, opts...)
}

// Patch binds a PATCH request on path to h.
func Patch[T any](path string, h HandlerFunc[T], opts ...OperationOption) Operation {
	return Handle(http.MethodPatch, path, h, opts...)
}

// Method returns the HTTP method.
func (o Operation) Method() string {
	return o.method
}

// Path returns the path relative to the class path.
func (o Operation) Path() string {
	return o.path
}

// Class returns the resource class the operation is a method of.
func (o Operation) Class() reflect.Type {
	return o.class
}

// Invoke calls the operation on instance, which must be a pointer to its class.
func (o Operation) Invoke(instance any, w http.ResponseWriter, r *http.Request) error {
	return o.invoke(instance, w, r)
}

// ErrNoSubresource is returned when a locator produces no subresource.
var ErrNoSubresource = errors.New("resource: locator returned no subresource")

// Locator yields the subresource which handles requests below Path.
type Locator struct {
	path   string
	class  reflect.Type
	sub    reflect.Type
	locate func(any, *http.Request) (any, error)
}

// Locate binds path to a subresource locator method of T.
func Locate[T, S any](path string, f func(*T, *http.Request) (*S, error)) Locator {
	class := reflect.TypeFor[T]()
	return Locator{
		path:  path,
		class: class,
		sub:   reflect.TypeFor[S](),
		locate: func(instance any, r *http.Request) (any, error) {
			t, ok := instance.(*T)
			if !ok {
				return nil, InstanceTypeError{Class: class, Instance: reflect.TypeOf(instance)}
			}

			s, err := f(t, r)
			if err != nil {
				return nil, err
			}
			if s == nil {
				return nil, ErrNoSubresource
			}
			return s, nil
		},
	}
}

// Path returns the path the subresource is mounted at, relative to the class path.
func (l Locator) Path() string {
	return l.path
}

// Class returns the resource class the locator is a method of.
func (l Locator) Class() reflect.Type {
	return l.class
}

// Subresource returns the class of the located subresource.
func (l Locator) Subresource() reflect.Type {
	return l.sub
}

// Locate calls the locator on instance.
func (l Locator) Locate(instance any, r *http.Request) (any, error) {
	return l.locate(instance, r)
}

// InstanceTypeError is returned when a method is invoked on an instance of another class.
type InstanceTypeError struct {
	Class    reflect.Type
	Instance reflect.Type
}

// Error implements the [error] interface.
func (e InstanceTypeError) Error() string {
	return fmt.Sprintf("resource: expected instance of *%s but got: %s", e.Class, e.Instance)
}
