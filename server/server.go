// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/z5labs/loam/bus"
	"github.com/z5labs/loam/health"
	loamhttp "github.com/z5labs/loam/http"
	"github.com/z5labs/loam/inject"
	"github.com/z5labs/loam/provider"
	"github.com/z5labs/loam/resource"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/sdk-go/try"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Endpoint is the service of a server together with the providers it is served with.
type Endpoint struct {
	address  *url.URL
	addr     net.Addr
	service  *resource.Service
	registry *provider.Registry
	spec     *openapi3.Spec
}

// URL returns the configured address.
func (e *Endpoint) URL() *url.URL {
	return e.address
}

// Addr returns the address the listener is bound to.
func (e *Endpoint) Addr() net.Addr {
	return e.addr
}

// Service returns the root resource descriptors.
func (e *Endpoint) Service() *resource.Service {
	return e.service
}

// Registry returns the provider registry of the endpoint address.
func (e *Endpoint) Registry() *provider.Registry {
	return e.registry
}

// OpenApi returns the OpenAPI 3.0 description of the endpoint.
func (e *Endpoint) OpenApi() *openapi3.Spec {
	return e.spec
}

// Server serves the resources of one [Endpoint].
type Server struct {
	id       string
	address  string
	endpoint *Endpoint
	bus      *bus.Bus
	app      *loamhttp.App
	log      *slog.Logger

	errHandler ErrorHandler
	injector   inject.Injector
	ready      health.Binary

	mu           sync.RWMutex
	invoker      Invoker
	interceptors []Interceptor
}

// ID returns the unique identifier of the server.
func (s *Server) ID() string {
	return s.id
}

// Address returns the configured address, e.g. "http://localhost:8080/".
func (s *Server) Address() string {
	return s.address
}

// Endpoint returns the endpoint the server serves.
func (s *Server) Endpoint() *Endpoint {
	return s.endpoint
}

// Invoker returns the invoker operations are called through.
func (s *Server) Invoker() Invoker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.invoker
}

// SetInvoker replaces the invoker operations are called through.
func (s *Server) SetInvoker(iv Invoker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invoker = iv
}

// Use appends i to the interceptors which wrap every invocation.
// Interceptors run in the order they were added.
func (s *Server) Use(i Interceptor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interceptors = append(s.interceptors, i)
}

// Start begins serving and registers the server with its bus.
// Starting a serving server is a no-op.
func (s *Server) Start(ctx context.Context) error {
	if s.app.Serving() {
		return nil
	}

	err := s.app.Start(ctx)
	if err != nil {
		return err
	}
	s.bus.Register(s)
	s.ready.MarkHealthy()

	s.log.InfoContext(ctx, "started server", slog.String("id", s.id), slog.String("address", s.endpoint.addr.String()))
	return nil
}

// Stop gracefully stops serving and unregisters the server from its bus.
func (s *Server) Stop(ctx context.Context) error {
	s.ready.MarkUnhealthy()
	s.bus.Unregister(s)

	err := s.app.Stop(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to stop server", slog.String("id", s.id), slog.Any("error", err))
		return err
	}
	s.log.InfoContext(ctx, "stopped server", slog.String("id", s.id))
	return nil
}

// Run serves until ctx is cancelled. It implements the app.Runtime interface.
func (s *Server) Run(ctx context.Context) error {
	err := s.Start(ctx)
	if err != nil {
		return err
	}

	err = s.app.Run(ctx)
	s.ready.MarkUnhealthy()
	s.bus.Unregister(s)
	return err
}

func (s *Server) intercept(serve func(http.ResponseWriter, *http.Request) error) func(http.ResponseWriter, *http.Request) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.interceptors) - 1; i >= 0; i-- {
		serve = s.interceptors[i].Intercept(serve)
	}
	return serve
}

type operationHandler struct {
	server *Server
	class  *resource.ClassInfo
	subs   []*resource.Subresource
	op     resource.Operation
}

func (h operationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := inject.WithRequest(r.Context(), r)
	r = r.WithContext(ctx)

	var err error
	defer func() {
		if err == nil {
			return
		}
		h.server.errHandler.OnError(r.Context(), w, err)
	}()
	defer try.Recover(&err)

	serve := h.server.intercept(func(w http.ResponseWriter, r *http.Request) error {
		return h.server.Invoker().Invoke(r.Context(), w, r, Invocation{
			Class:        h.class,
			Subresources: h.subs,
			Operation:    h.op,
			Resolver:     h.server.endpoint.registry,
			Injector:     h.server.injector,
		})
	})
	err = serve(w, r)
}

// mount registers the operations of ci below prefix and mounts its
// subresources. subs are the locators leading to ci from root.
func (s *Server) mount(router chi.Router, prefix string, root *resource.ClassInfo, ci *resource.ClassInfo, subs []*resource.Subresource) {
	for _, op := range ci.Operations() {
		pattern := joinPath(prefix, op.Path())
		router.Method(op.Method(), pattern, otelhttp.WithRouteTag(pattern, operationHandler{
			server: s,
			class:  root,
			subs:   subs,
			op:     op,
		}))
	}

	for _, sub := range ci.Subresources() {
		chain := append(append([]*resource.Subresource(nil), subs...), sub)
		router.Mount(joinPath(prefix, sub.Path()), &subresourceHandler{
			server: s,
			root:   root,
			subs:   chain,
		})
	}
}

// subresourceHandler routes to the operations of a subresource class, which
// for lazy resolution is only described on the first request.
type subresourceHandler struct {
	server *Server
	root   *resource.ClassInfo
	subs   []*resource.Subresource

	mu     sync.Mutex
	router chi.Router
}

func (h *subresourceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	router, err := h.route()
	if err != nil {
		h.server.errHandler.OnError(r.Context(), w, err)
		return
	}
	router.ServeHTTP(w, r)
}

func (h *subresourceHandler) route() (chi.Router, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.router != nil {
		return h.router, nil
	}

	ci, err := h.subs[len(h.subs)-1].Class()
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	router.NotFound(notFound)
	router.MethodNotAllowed(methodNotAllowed)
	h.server.mount(router, "/", h.root, ci, h.subs)

	h.router = router
	return router, nil
}

// handler serves the OpenAPI document and health probes next to the
// resource routes. Only resource routes are preprocessed, so extension
// mappings never apply to "/openapi.json".
func (s *Server) handler(readiness, liveness health.Monitor) http.Handler {
	router := chi.NewRouter()
	router.NotFound(notFound)
	router.MethodNotAllowed(methodNotAllowed)
	for _, ci := range s.endpoint.service.ClassInfos() {
		s.mount(router, ci.Path(), ci, ci, nil)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(s.endpoint.spec)
		if err == nil {
			return
		}
		s.log.ErrorContext(r.Context(), "failed to encode openapi schema to json", slog.Any("error", err))
	})
	mux.Handle("GET /health/readiness", health.Handler(s.log, readiness))
	mux.Handle("GET /health/liveness", health.Handler(s.log, liveness))
	mux.Handle("/", s.endpoint.registry.RequestPreprocessor().Handler(router))

	return otelhttp.NewHandler(mux, "loam")
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusNotFound)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusMethodNotAllowed)
}

// joinPath joins a base path and a relative path into a chi pattern
// with a leading slash and no trailing slash, except for the root.
func joinPath(base, rel string) string {
	base = strings.Trim(base, "/")
	rel = strings.Trim(rel, "/")

	switch {
	case base == "" && rel == "":
		return "/"
	case base == "":
		return "/" + rel
	case rel == "":
		return "/" + base
	default:
		return "/" + base + "/" + rel
	}
}
