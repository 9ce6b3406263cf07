// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package customcontext contributes a per request [CustomContext] which
// resources receive through an inject.Context[CustomContext] field.
//
//	srv, err := server.NewFactory(
//	    server.ResourceClasses(reflect.TypeFor[Books]()),
//	    server.Providers(customcontext.CustomContextFeature{}),
//	).Create(ctx)
package customcontext

import (
	"net/http"
	"reflect"

	"github.com/z5labs/loam/provider"

	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-Id"
	TenantHeader    = "X-Tenant"
)

// CustomContext describes who a request is made on behalf of.
type CustomContext interface {
	RequestID() string
	Tenant() string
}

type customContext struct {
	requestID string
	tenant    string
}

func (c customContext) RequestID() string {
	return c.requestID
}

func (c customContext) Tenant() string {
	return c.tenant
}

// CustomContextProvider builds a [CustomContext] from the request headers.
// A request without an id is assigned a random one.
type CustomContextProvider struct{}

// ContextType implements the inject.ContextProvider interface.
func (CustomContextProvider) ContextType() reflect.Type {
	return reflect.TypeFor[CustomContext]()
}

// ProvideContext implements the inject.ContextProvider interface.
func (CustomContextProvider) ProvideContext(r *http.Request) (any, error) {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}

	var cc CustomContext = customContext{
		requestID: id,
		tenant:    r.Header.Get(TenantHeader),
	}
	return cc, nil
}

// CustomContextFeature registers the [CustomContextProvider].
type CustomContextFeature struct{}

// Configure implements the [provider.Feature] interface. It is always enabled.
func (CustomContextFeature) Configure(fc provider.FeatureContext) bool {
	// Register only fails for values which are not providers.
	_ = fc.Register(CustomContextProvider{})
	return true
}

// ContextType implements the [provider.ContextClassProvider] interface.
func (CustomContextFeature) ContextType() reflect.Type {
	return reflect.TypeFor[CustomContext]()
}
