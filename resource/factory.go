// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package resource

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/z5labs/loam/concurrent"
	"github.com/z5labs/loam/lifecycle"
)

// Service is the set of root resource descriptors served by one endpoint.
type Service struct {
	classes []*ClassInfo
}

// ClassInfos returns the root descriptors in registration order.
func (s *Service) ClassInfos() []*ClassInfo {
	return s.classes
}

// ClassInfo returns the root descriptor of class t.
func (s *Service) ClassInfo(t reflect.Type) (*ClassInfo, bool) {
	for _, ci := range s.classes {
		if ci.class == t {
			return ci, true
		}
	}
	return nil, false
}

// ServiceFactory turns resource classes and beans into a [Service].
type ServiceFactory struct {
	classes []reflect.Type
	beans   []any
	static  bool

	service *Service
	lazy    *concurrent.Cache[reflect.Type, *ClassInfo]
}

// NewServiceFactory returns an empty [ServiceFactory].
func NewServiceFactory() *ServiceFactory {
	return &ServiceFactory{
		lazy: concurrent.NewCache[reflect.Type, *ClassInfo](),
	}
}

// SetResourceClasses adds root resource classes. Pointer types are
// dereferenced and a class is only ever added once.
func (sf *ServiceFactory) SetResourceClasses(ts ...reflect.Type) {
	for _, t := range ts {
		sf.addClass(t)
	}
}

// SetResourceClassesFromBeans adds the class of every bean. During
// [ServiceFactory.Create] each bean's descriptor is assigned a singleton
// provider for that bean.
func (sf *ServiceFactory) SetResourceClassesFromBeans(beans ...any) {
	for _, bean := range beans {
		sf.addClass(reflect.TypeOf(bean))
		sf.beans = append(sf.beans, bean)
	}
}

func (sf *ServiceFactory) addClass(t reflect.Type) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if slices.Contains(sf.classes, t) {
		return
	}
	sf.classes = append(sf.classes, t)
}

// ResourceClasses returns the root classes in registration order.
func (sf *ServiceFactory) ResourceClasses() []reflect.Type {
	return sf.classes
}

// ResourcesAvailable reports whether any root class has been added.
func (sf *ServiceFactory) ResourcesAvailable() bool {
	return len(sf.classes) > 0
}

// SetStaticResolution controls when subresource classes are described.
// When enabled every subresource is described by [ServiceFactory.Create]
// so invalid subresources fail construction. Otherwise a subresource is
// described the first time it is used.
func (sf *ServiceFactory) SetStaticResolution(static bool) {
	sf.static = static
}

// Service returns the created service or nil before [ServiceFactory.Create].
func (sf *ServiceFactory) Service() *Service {
	return sf.service
}

// ClassInfos returns the root descriptors of the created service.
func (sf *ServiceFactory) ClassInfos() []*ClassInfo {
	if sf.service == nil {
		return nil
	}
	return sf.service.classes
}

// Create describes every root class and assigns bean providers.
// Calling Create again after it succeeded is a no-op.
func (sf *ServiceFactory) Create() error {
	if sf.service != nil {
		return nil
	}

	memo := make(map[reflect.Type]*ClassInfo)
	classes := make([]*ClassInfo, 0, len(sf.classes))
	for _, t := range sf.classes {
		ci, err := sf.describe(t, memo)
		if err != nil {
			return err
		}
		classes = append(classes, ci)
	}

	byClass := make(map[reflect.Type]any, len(sf.beans))
	for _, bean := range sf.beans {
		t := reflect.TypeOf(bean)
		if t.Kind() != reflect.Pointer {
			return ClassError{Class: t, Reason: "service beans must be pointers"}
		}
		if _, ok := byClass[t.Elem()]; ok {
			return ClassError{Class: t.Elem(), Reason: "more than one service bean"}
		}
		byClass[t.Elem()] = bean
	}
	for _, ci := range classes {
		if bean, ok := byClass[ci.class]; ok {
			ci.SetProvider(lifecycle.Singleton(bean))
		}
	}

	sf.service = &Service{classes: classes}
	return nil
}

// describe builds the descriptor of t. With static resolution memo holds
// every class described so far, which also terminates recursive subresources.
func (sf *ServiceFactory) describe(t reflect.Type, memo map[reflect.Type]*ClassInfo) (*ClassInfo, error) {
	if ci, ok := memo[t]; ok {
		return ci, nil
	}

	ci, err := describe(t)
	if err != nil {
		return nil, err
	}
	memo[t] = ci

	for _, loc := range locators(t) {
		sub := &Subresource{locator: loc}
		ci.subs = append(ci.subs, sub)

		if !sf.static {
			sub.resolve = sf.resolveLazily(loc.sub)
			continue
		}

		subInfo, err := sf.describe(loc.sub, memo)
		if err != nil {
			return nil, ClassError{
				Class:  t,
				Reason: fmt.Sprintf("invalid subresource at %s", loc.path),
				Cause:  err,
			}
		}
		sub.resolve = func() (*ClassInfo, error) {
			return subInfo, nil
		}
	}
	return ci, nil
}

func (sf *ServiceFactory) resolveLazily(t reflect.Type) func() (*ClassInfo, error) {
	return func() (*ClassInfo, error) {
		return sf.lazy.GetOr(t, func() (*ClassInfo, error) {
			ci, err := describe(t)
			if err != nil {
				return nil, err
			}
			for _, loc := range locators(t) {
				ci.subs = append(ci.subs, &Subresource{
					locator: loc,
					resolve: sf.resolveLazily(loc.sub),
				})
			}
			return ci, nil
		})
	}
}
