// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package server turns resource classes into a running endpoint.
//
// A [Factory] collects resource classes, service beans, lifecycle and
// entity providers, and content negotiation mappings. [Factory.Create]
// binds a lifecycle provider to every resource class, injects context
// proxies into singletons, opens the endpoint through the bus and starts
// serving it.
//
//	srv, err := server.NewFactory(
//	    server.Address("http://localhost:8080/"),
//	    server.ResourceClasses(reflect.TypeFor[Books]()),
//	    server.ServiceBeans(catalog),
//	    server.ExtensionMappings(map[string]string{"json": "application/json"}),
//	).Create(ctx)
package server

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"reflect"

	"github.com/z5labs/loam"
	"github.com/z5labs/loam/bus"
	"github.com/z5labs/loam/config"
	"github.com/z5labs/loam/health"
	loamhttp "github.com/z5labs/loam/http"
	"github.com/z5labs/loam/inject"
	"github.com/z5labs/loam/lifecycle"
	"github.com/z5labs/loam/provider"
	"github.com/z5labs/loam/resource"

	"github.com/google/uuid"
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/sdk-go/try"
)

// DefaultAddress is served when no [Address] is configured.
const DefaultAddress = "http://localhost:8080/"

// Factory builds a [Server]. A Factory is not safe for concurrent use.
type Factory struct {
	address           string
	classes           []reflect.Type
	beans             []any
	resourceProviders map[reflect.Type]lifecycle.Provider
	providers         []any
	invoker           Invoker
	start             bool
	languages         map[string]string
	extensions        map[string]string
	schemaLocations   []string
	static            bool
	features          []Feature
	bus               *bus.Bus
	serviceFactory    *resource.ServiceFactory
	injector          inject.Injector
	errHandler        ErrorHandler
	readiness         []health.Monitor
	title             string
	version           string
	httpOpts          []loamhttp.ServerOption
	log               *slog.Logger

	// bound is set once every descriptor has a provider and every
	// singleton has its proxies.
	bound bool
}

// Option configures a [Factory].
type Option func(*Factory)

// Address sets the URL the server is served on. Its scheme selects the
// bus destination factory.
func Address(address string) Option {
	return func(f *Factory) {
		f.address = address
	}
}

// ResourceClasses adds resource classes whose instances are created by
// their lifecycle provider.
func ResourceClasses(ts ...reflect.Type) Option {
	return func(f *Factory) {
		f.classes = append(f.classes, ts...)
	}
}

// ServiceBeans adds pre-built resource instances, each served as a singleton.
func ServiceBeans(beans ...any) Option {
	return func(f *Factory) {
		f.beans = append(f.beans, beans...)
	}
}

// ResourceProvider sets the lifecycle provider of class t. It is ignored
// for classes which already have a provider, e.g. service beans.
func ResourceProvider(t reflect.Type, p lifecycle.Provider) Option {
	return func(f *Factory) {
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		f.resourceProviders[t] = p
	}
}

// Providers adds entity readers and writers, context providers and
// provider features to the registry of the server address.
func Providers(ps ...any) Option {
	return func(f *Factory) {
		f.providers = append(f.providers, ps...)
	}
}

// WithInvoker replaces the [DefaultInvoker].
func WithInvoker(iv Invoker) Option {
	return func(f *Factory) {
		f.invoker = iv
	}
}

// Start controls whether [Factory.Create] starts the server. Defaults to true.
func Start(start bool) Option {
	return func(f *Factory) {
		f.start = start
	}
}

// LanguageMappings maps URI suffixes to Accept-Language values, e.g. "en" to "en-gb".
func LanguageMappings(m map[string]string) Option {
	return func(f *Factory) {
		f.languages = maps.Clone(m)
	}
}

// ExtensionMappings maps URI suffixes to Accept values, e.g. "json" to "application/json".
func ExtensionMappings(m map[string]string) Option {
	return func(f *Factory) {
		f.extensions = maps.Clone(m)
	}
}

// SchemaLocations sets the schema locations recorded on the registry.
func SchemaLocations(locs ...string) Option {
	return func(f *Factory) {
		f.schemaLocations = append(f.schemaLocations, locs...)
	}
}

// StaticSubresourceResolution describes every subresource class during
// [Factory.Create] instead of on first use.
func StaticSubresourceResolution(static bool) Option {
	return func(f *Factory) {
		f.static = static
	}
}

// Features adds server features applied once the server is constructed.
func Features(fs ...Feature) Option {
	return func(f *Factory) {
		f.features = append(f.features, fs...)
	}
}

// WithBus sets the bus the server is registered with. Defaults to [bus.Default].
func WithBus(b *bus.Bus) Option {
	return func(f *Factory) {
		f.bus = b
	}
}

// WithServiceFactory replaces the service factory resource classes are described by.
func WithServiceFactory(sf *resource.ServiceFactory) Option {
	return func(f *Factory) {
		f.serviceFactory = sf
	}
}

// WithInjector replaces the [inject.FieldInjector].
func WithInjector(inj inject.Injector) Option {
	return func(f *Factory) {
		f.injector = inj
	}
}

// WithErrorHandler replaces the [DefaultErrorHandler].
func WithErrorHandler(eh ErrorHandler) Option {
	return func(f *Factory) {
		f.errHandler = eh
	}
}

// Readiness adds monitors which must be healthy for the server to report ready.
func Readiness(ms ...health.Monitor) Option {
	return func(f *Factory) {
		f.readiness = append(f.readiness, ms...)
	}
}

// OpenApi sets the title and version of the served OpenAPI document.
func OpenApi(title, version string) Option {
	return func(f *Factory) {
		f.title = title
		f.version = version
	}
}

// HTTP configures the underlying HTTP server.
func HTTP(opts ...loamhttp.ServerOption) Option {
	return func(f *Factory) {
		f.httpOpts = append(f.httpOpts, opts...)
	}
}

// NewFactory returns a [Factory].
func NewFactory(opts ...Option) *Factory {
	log := loam.Logger(instrumentationName)
	f := &Factory{
		address:           DefaultAddress,
		resourceProviders: make(map[reflect.Type]lifecycle.Provider),
		start:             true,
		injector:          inject.NewInjector(),
		errHandler:        DefaultErrorHandler(log),
		title:             "loam",
		version:           "v0.0.0",
		log:               log,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.bus == nil {
		f.bus = bus.Default()
	}
	if f.serviceFactory == nil {
		f.serviceFactory = resource.NewServiceFactory()
	}
	f.serviceFactory.SetStaticResolution(f.static)
	f.serviceFactory.SetResourceClasses(f.classes...)
	f.serviceFactory.SetResourceClassesFromBeans(f.beans...)
	return f
}

// ServiceFactory returns the service factory resource classes are described by.
func (f *Factory) ServiceFactory() *resource.ServiceFactory {
	return f.serviceFactory
}

// Bus returns the bus servers are registered with.
func (f *Factory) Bus() *bus.Bus {
	return f.bus
}

// Create constructs the server and, unless disabled with [Start], starts it.
// Every construction failure is returned as a [ConstructionError]. Server
// features are applied last and their errors are returned as is.
func (f *Factory) Create(ctx context.Context) (*Server, error) {
	s, err := f.create(ctx)
	if err != nil {
		return nil, ConstructionError{Cause: err}
	}

	for _, feature := range f.features {
		err = feature.Initialize(ctx, s, f.bus)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (f *Factory) create(ctx context.Context) (_ *Server, err error) {
	defer try.Recover(&err)

	if !f.serviceFactory.ResourcesAvailable() {
		f.log.ErrorContext(ctx, "no resource classes found", slog.String("address", f.address))
		return nil, EndpointError{Address: f.address, Reason: "no resource classes found"}
	}

	u, err := url.Parse(f.address)
	if err != nil {
		return nil, EndpointError{Address: f.address, Reason: "invalid address", Cause: err}
	}
	registry := f.bus.Registry(f.address)

	if f.serviceFactory.Service() == nil {
		err = f.serviceFactory.Create()
		if err != nil {
			return nil, err
		}
	}
	if !f.bound {
		err = f.updateClassResourceProviders(ctx, registry)
		if err != nil {
			return nil, err
		}
		f.bound = true
	}

	df, err := f.bus.DestinationFactory(u.Scheme)
	if err != nil {
		return nil, BusError{Cause: err}
	}
	ln, err := df.Listen(ctx, u)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			ln.Close()
		}
	}()

	spec, err := f.openApi()
	if err != nil {
		return nil, err
	}

	s := &Server{
		id:      uuid.NewString(),
		address: f.address,
		endpoint: &Endpoint{
			address:  u,
			addr:     ln.Addr(),
			service:  f.serviceFactory.Service(),
			registry: registry,
			spec:     spec,
		},
		bus:        f.bus,
		log:        f.log,
		errHandler: f.errHandler,
		injector:   f.injector,
	}

	invoker := f.invoker
	if invoker == nil {
		invoker = NewInvoker(f.beans...)
	}
	s.SetInvoker(invoker)

	err = registry.SetUserProviders(f.providers...)
	if err != nil {
		return nil, err
	}
	registry.SetRequestPreprocessor(provider.NewRequestPreprocessor(f.languages, f.extensions))
	registry.SetSchemaLocations(f.schemaLocations...)

	var liveness health.Binary
	liveness.MarkHealthy()
	readiness := health.And(append([]health.Monitor{&s.ready}, f.readiness...)...)

	s.app, err = loamhttp.NewApp(ctx, loamhttp.NewServer(config.ReaderOf(ln), f.httpOpts...), s.handler(readiness, &liveness))
	if err != nil {
		return nil, err
	}

	if !f.start {
		return s, nil
	}
	err = s.Start(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// updateClassResourceProviders assigns a lifecycle provider to every
// descriptor without one and binds the context proxies of singletons.
func (f *Factory) updateClassResourceProviders(ctx context.Context, res inject.Resolver) error {
	infos := f.serviceFactory.ClassInfos()
	for _, ci := range infos {
		if ci.Provider() != nil {
			continue
		}

		p, ok := f.resourceProviders[ci.Type()]
		if !ok {
			p = lifecycle.PerRequest(ci.Type())
		}
		if pr, ok := p.(*lifecycle.PerRequestProvider); ok && pr.Class() != ci.Type() {
			return resource.ClassError{
				Class:  ci.Type(),
				Reason: fmt.Sprintf("provider creates instances of %s", pr.Class()),
			}
		}
		ci.SetProvider(p)
	}

	for _, ci := range infos {
		if !ci.IsSingleton() {
			continue
		}

		inst, err := ci.Provider().Instance(ctx)
		if err != nil {
			return err
		}
		err = f.injector.InjectProxies(res, ci.Fields(), inst)
		if err != nil {
			return err
		}
	}
	return nil
}

func (f *Factory) openApi() (*openapi3.Spec, error) {
	spec := &openapi3.Spec{
		Openapi: "3.0.3",
		Info: openapi3.Info{
			Title:   f.title,
			Version: f.version,
		},
	}

	visited := make(map[*resource.ClassInfo]bool)
	for _, ci := range f.serviceFactory.ClassInfos() {
		err := f.document(spec, joinPath(ci.Path(), ""), ci, visited)
		if err != nil {
			return nil, err
		}
	}
	return spec, nil
}

// document adds the operations of ci below prefix. Subresources are only
// documented when they were resolved statically.
func (f *Factory) document(spec *openapi3.Spec, prefix string, ci *resource.ClassInfo, visited map[*resource.ClassInfo]bool) error {
	if visited[ci] {
		return nil
	}
	visited[ci] = true
	defer delete(visited, ci)

	for _, op := range ci.Operations() {
		pattern := joinPath(prefix, op.Path())

		def, err := op.Definition(pattern)
		if err != nil {
			return fmt.Errorf("failed to describe operation %s %s: %w", op.Method(), pattern, err)
		}
		err = spec.AddOperation(op.Method(), pattern, def)
		if err != nil {
			return err
		}
	}

	if !f.static {
		return nil
	}
	for _, sub := range ci.Subresources() {
		subInfo, err := sub.Class()
		if err != nil {
			return err
		}
		err = f.document(spec, joinPath(prefix, sub.Path()), subInfo, visited)
		if err != nil {
			return err
		}
	}
	return nil
}
