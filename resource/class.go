// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package resource

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/z5labs/loam/inject"
	"github.com/z5labs/loam/lifecycle"
)

// ClassError is returned when a type can not be used as a resource class.
type ClassError struct {
	Class  reflect.Type
	Reason string
	Cause  error
}

// Error implements the [error] interface.
func (e ClassError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("resource: invalid resource class %s: %s: %s", e.Class, e.Reason, e.Cause)
	}
	return fmt.Sprintf("resource: invalid resource class %s: %s", e.Class, e.Reason)
}

// Unwrap returns the underlying cause.
func (e ClassError) Unwrap() error {
	return e.Cause
}

// ClassInfo is the descriptor of a resource class.
type ClassInfo struct {
	class  reflect.Type
	path   string
	ops    []Operation
	fields []inject.Field
	subs   []*Subresource

	mu       sync.RWMutex
	provider lifecycle.Provider
}

// Type returns the struct type of the class.
func (ci *ClassInfo) Type() reflect.Type {
	return ci.class
}

// Path returns the base path declared by the class.
func (ci *ClassInfo) Path() string {
	return ci.path
}

// Operations returns the operations of the class.
func (ci *ClassInfo) Operations() []Operation {
	return ci.ops
}

// Fields returns the context fields of the class.
func (ci *ClassInfo) Fields() []inject.Field {
	return ci.fields
}

// Subresources returns the subresource locators of the class.
func (ci *ClassInfo) Subresources() []*Subresource {
	return ci.subs
}

// Provider returns the lifecycle provider of the class or nil if none is assigned.
func (ci *ClassInfo) Provider() lifecycle.Provider {
	ci.mu.RLock()
	defer ci.mu.RUnlock()

	return ci.provider
}

// SetProvider assigns the lifecycle provider of the class.
func (ci *ClassInfo) SetProvider(p lifecycle.Provider) {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	ci.provider = p
}

// IsSingleton reports whether the assigned provider shares one instance.
func (ci *ClassInfo) IsSingleton() bool {
	p := ci.Provider()
	return p != nil && p.IsSingleton()
}

// Subresource is a locator together with the descriptor of its subresource class.
type Subresource struct {
	locator Locator
	resolve func() (*ClassInfo, error)
}

// Path returns the path relative to the parent class path.
func (s *Subresource) Path() string {
	return s.locator.path
}

// Locator returns the locator method yielding subresource instances.
func (s *Subresource) Locator() Locator {
	return s.locator
}

// Class returns the descriptor of the subresource class. Depending on the
// factory it was resolved eagerly or is resolved on first call.
func (s *Subresource) Class() (*ClassInfo, error) {
	return s.resolve()
}

var resourceType = reflect.TypeFor[Resource]()

func describe(t reflect.Type) (*ClassInfo, error) {
	if t.Kind() != reflect.Struct {
		return nil, ClassError{Class: t, Reason: "must be a struct"}
	}
	if !reflect.PointerTo(t).Implements(resourceType) {
		return nil, ClassError{Class: t, Reason: "*" + t.Name() + " does not implement resource.Resource"}
	}

	routes := reflect.New(t).Interface().(Resource).Routes()

	seen := make(map[string]struct{}, len(routes.Operations))
	for _, op := range routes.Operations {
		if op.class != t {
			return nil, ClassError{Class: t, Reason: fmt.Sprintf("operation %s %s is a method of %s", op.method, op.path, op.class)}
		}
		if op.method == "" {
			return nil, ClassError{Class: t, Reason: fmt.Sprintf("operation %s has no method", op.path)}
		}

		key := op.method + " " + op.path
		if _, ok := seen[key]; ok {
			return nil, ClassError{Class: t, Reason: "duplicate operation " + key}
		}
		seen[key] = struct{}{}
	}
	for _, loc := range routes.Subresources {
		if loc.class != t {
			return nil, ClassError{Class: t, Reason: fmt.Sprintf("subresource locator %s is a method of %s", loc.path, loc.class)}
		}
	}

	fields, err := inject.Fields(t)
	if err != nil {
		return nil, ClassError{Class: t, Reason: "invalid context field", Cause: err}
	}

	return &ClassInfo{
		class:  t,
		path:   routes.Path,
		ops:    routes.Operations,
		fields: fields,
		subs:   make([]*Subresource, 0, len(routes.Subresources)),
	}, nil
}

func locators(t reflect.Type) []Locator {
	return reflect.New(t).Interface().(Resource).Routes().Subresources
}
