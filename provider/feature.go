// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package provider

import (
	"reflect"
	"slices"
)

// Feature groups providers which are enabled together.
type Feature interface {
	// Configure registers the feature's providers and reports whether
	// the feature is enabled. Registrations of a disabled feature are discarded.
	Configure(FeatureContext) bool
}

// ContextClassProvider is implemented by features which contribute a custom context type.
type ContextClassProvider interface {
	ContextType() reflect.Type
}

// FeatureContext is what a [Feature] registers its providers with.
type FeatureContext interface {
	Register(p any) error
}

type featureContext struct {
	pending []any
}

func (fc *featureContext) Register(p any) error {
	if !supported(p) {
		return UnsupportedProviderError{Provider: p}
	}
	fc.pending = append(fc.pending, p)
	return nil
}

func (reg *Registry) configure(f Feature) error {
	fc := &featureContext{}
	if !f.Configure(fc) {
		return nil
	}

	for _, p := range fc.pending {
		err := reg.register(p)
		if err != nil {
			return err
		}
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if !reflect.TypeOf(f).Comparable() || !slices.Contains(reg.features, f) {
		reg.features = append(reg.features, f)
	}
	if ccp, ok := f.(ContextClassProvider); ok && !slices.Contains(reg.contextTypes, ccp.ContextType()) {
		reg.contextTypes = append(reg.contextTypes, ccp.ContextType())
	}
	return nil
}
