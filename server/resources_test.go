// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/z5labs/loam/bus"
	"github.com/z5labs/loam/inject"
	"github.com/z5labs/loam/resource"
)

type echo struct {
	Header http.Header `loam:"context"`
}

func (*echo) Routes() resource.Routes {
	return resource.Routes{
		Path: "/echo",
		Operations: []resource.Operation{
			resource.Get("/", (*echo).get),
			resource.Put("/", (*echo).put),
			resource.Get("/fail", (*echo).fail),
			resource.Get("/panic", (*echo).explode),
		},
	}
}

type echoed struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Accept   string `json:"accept"`
	Language string `json:"language"`
}

func (e *echo) get(w http.ResponseWriter, r *http.Request) error {
	return e.write(w, r)
}

func (e *echo) put(w http.ResponseWriter, r *http.Request) error {
	return e.write(w, r)
}

func (e *echo) write(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(echoed{
		Method:   r.Method,
		Path:     r.URL.Path,
		Accept:   e.Header.Get("Accept"),
		Language: e.Header.Get("Accept-Language"),
	})
}

func (*echo) fail(w http.ResponseWriter, r *http.Request) error {
	return StatusError{Status: http.StatusTeapot}
}

func (*echo) explode(w http.ResponseWriter, r *http.Request) error {
	panic("boom")
}

type tenant string

type catalog struct {
	Tenant inject.Context[tenant]
}

func (*catalog) Routes() resource.Routes {
	return resource.Routes{
		Path: "/catalog",
		Operations: []resource.Operation{
			resource.Get("/", (*catalog).get),
		},
	}
}

func (c *catalog) get(w http.ResponseWriter, r *http.Request) error {
	t, err := c.Tenant.Get(r.Context())
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, string(t))
	return err
}

var tenantProvider = inject.ProviderFunc[tenant](func(r *http.Request) (tenant, error) {
	return tenant(r.Header.Get("X-Tenant")), nil
})

type shelf struct {
	URI inject.UriInfo `loam:"context"`
}

func (*shelf) Routes() resource.Routes {
	return resource.Routes{
		Path: "/shelves",
		Operations: []resource.Operation{
			resource.Get("/{shelf}", (*shelf).get),
		},
		Subresources: []resource.Locator{
			resource.Locate("/{shelf}/books", (*shelf).books),
		},
	}
}

func (s *shelf) get(w http.ResponseWriter, r *http.Request) error {
	_, err := io.WriteString(w, "shelf "+s.URI.PathParam("shelf"))
	return err
}

func (s *shelf) books(r *http.Request) (*shelfBooks, error) {
	if s.URI.PathParam("shelf") == "missing" {
		return nil, nil
	}
	return &shelfBooks{shelf: s.URI.PathParam("shelf")}, nil
}

type shelfBooks struct {
	shelf string
	URI   inject.UriInfo `loam:"context"`
}

func (*shelfBooks) Routes() resource.Routes {
	return resource.Routes{
		Operations: []resource.Operation{
			resource.Get("/{book}", (*shelfBooks).get),
		},
	}
}

func (b *shelfBooks) get(w http.ResponseWriter, r *http.Request) error {
	_, err := io.WriteString(w, b.shelf+"/"+b.URI.PathParam("book"))
	return err
}

type counted struct {
	released *atomic.Int64
}

func (*counted) Routes() resource.Routes {
	return resource.Routes{
		Path: "/counted",
		Operations: []resource.Operation{
			resource.Get("/", (*counted).get),
		},
	}
}

func (*counted) get(w http.ResponseWriter, r *http.Request) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (c *counted) Destroy(ctx context.Context) error {
	c.released.Add(1)
	return nil
}

// countingInjector records how often context is injected.
type countingInjector struct {
	inject.Injector

	proxies atomic.Int64
	values  atomic.Int64
}

func (ci *countingInjector) InjectProxies(res inject.Resolver, fields []inject.Field, instance any) error {
	ci.proxies.Add(1)
	return ci.Injector.InjectProxies(res, fields, instance)
}

func (ci *countingInjector) InjectValues(ctx context.Context, res inject.Resolver, fields []inject.Field, instance any) error {
	ci.values.Add(1)
	return ci.Injector.InjectValues(ctx, res, fields, instance)
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// newServer creates and starts a server on a random port of a private bus.
func newServer(t *testing.T, opts ...Option) *Server {
	t.Helper()

	opts = append([]Option{
		Address("http://127.0.0.1:0/"),
		WithBus(bus.New()),
	}, opts...)

	s, err := NewFactory(opts...).Create(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Stop(context.Background())
	})
	return s
}

func baseURL(s *Server) string {
	return "http://" + s.Endpoint().Addr().String()
}

func get(t *testing.T, url string, header http.Header) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, vs := range header {
		req.Header[k] = vs
	}
	return do(t, req)
}

func do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}
