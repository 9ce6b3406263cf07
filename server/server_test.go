// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/z5labs/loam/bus"
	"github.com/z5labs/loam/health"
	"github.com/z5labs/loam/lifecycle"
)

func TestServer_Routing(t *testing.T) {
	s := newServer(t,
		ResourceClasses(typeOf[echo](), typeOf[shelf]()),
		ExtensionMappings(map[string]string{"json": "application/json", "xml": "application/xml"}),
		LanguageMappings(map[string]string{"en": "en-gb", "fr": "fr-fr"}),
	)

	decode := func(t *testing.T) func(*http.Response, []byte) echoed {
		return func(resp *http.Response, body []byte) echoed {
			t.Helper()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var e echoed
			err := json.Unmarshal(body, &e)
			require.NoError(t, err)
			return e
		}
	}

	t.Run("will map the uri extension to the accept header", func(t *testing.T) {
		e := decode(t)(get(t, baseURL(s)+"/echo.xml", nil))
		require.Equal(t, "/echo", e.Path)
		require.Equal(t, "application/xml", e.Accept)
	})

	t.Run("will map the uri language to the accept language header", func(t *testing.T) {
		e := decode(t)(get(t, baseURL(s)+"/echo.fr", nil))
		require.Equal(t, "/echo", e.Path)
		require.Equal(t, "fr-fr", e.Language)
	})

	t.Run("will map both the extension and the language", func(t *testing.T) {
		e := decode(t)(get(t, baseURL(s)+"/echo.en.json", nil))
		require.Equal(t, "/echo", e.Path)
		require.Equal(t, "application/json", e.Accept)
		require.Equal(t, "en-gb", e.Language)
	})

	t.Run("will map the type query parameter to the accept header", func(t *testing.T) {
		e := decode(t)(get(t, baseURL(s)+"/echo?_type=xml", nil))
		require.Equal(t, "application/xml", e.Accept)
	})

	t.Run("will override the method of a post request", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, baseURL(s)+"/echo?_method=put", nil)
		require.NoError(t, err)

		e := decode(t)(do(t, req))
		require.Equal(t, http.MethodPut, e.Method)
	})

	t.Run("will leave a request without mapped suffixes untouched", func(t *testing.T) {
		e := decode(t)(get(t, baseURL(s)+"/echo", http.Header{"Accept": {"text/plain"}}))
		require.Equal(t, "/echo", e.Path)
		require.Equal(t, "text/plain", e.Accept)
	})

	t.Run("will route to a subresource", func(t *testing.T) {
		resp, body := get(t, baseURL(s)+"/shelves/fiction/books/dune", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "fiction/dune", string(body))

		resp, body = get(t, baseURL(s)+"/shelves/fiction", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "shelf fiction", string(body))
	})

	t.Run("will return a 404", func(t *testing.T) {
		t.Run("if the locator returns no subresource", func(t *testing.T) {
			resp, _ := get(t, baseURL(s)+"/shelves/missing/books/dune", nil)
			require.Equal(t, http.StatusNotFound, resp.StatusCode)
		})

		t.Run("if no resource matches the path", func(t *testing.T) {
			resp, body := get(t, baseURL(s)+"/unknown", nil)
			require.Equal(t, http.StatusNotFound, resp.StatusCode)

			var sb statusBody
			err := json.Unmarshal(body, &sb)
			require.NoError(t, err)
			require.Equal(t, http.StatusNotFound, sb.Status)
		})
	})

	t.Run("will return a 405", func(t *testing.T) {
		t.Run("if the operation does not support the method", func(t *testing.T) {
			req, err := http.NewRequest(http.MethodDelete, baseURL(s)+"/echo", nil)
			require.NoError(t, err)

			resp, _ := do(t, req)
			require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		})
	})

	t.Run("will respond with the status of a StatusError", func(t *testing.T) {
		resp, body := get(t, baseURL(s)+"/echo/fail", nil)
		require.Equal(t, http.StatusTeapot, resp.StatusCode)

		var sb statusBody
		err := json.Unmarshal(body, &sb)
		require.NoError(t, err)
		require.Equal(t, http.StatusTeapot, sb.Status)
		require.Equal(t, http.StatusText(http.StatusTeapot), sb.Message)
	})

	t.Run("will respond with a 500 if an operation panics", func(t *testing.T) {
		resp, _ := get(t, baseURL(s)+"/echo/panic", nil)
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("will serve the openapi document", func(t *testing.T) {
		resp, body := get(t, baseURL(s)+"/openapi.json", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var doc struct {
			Paths map[string]map[string]any `json:"paths"`
		}
		err := json.Unmarshal(body, &doc)
		require.NoError(t, err)
		require.Contains(t, doc.Paths, "/echo")
		require.Contains(t, doc.Paths["/echo"], "get")
		require.Contains(t, doc.Paths["/echo"], "put")
		require.Contains(t, doc.Paths, "/shelves/{shelf}")
		require.NotContains(t, doc.Paths, "/shelves/{shelf}/books/{book}")
	})
}

func TestServer_OpenApi(t *testing.T) {
	t.Run("will document subresources", func(t *testing.T) {
		t.Run("if they are resolved statically", func(t *testing.T) {
			s := newServer(t,
				Start(false),
				StaticSubresourceResolution(true),
				OpenApi("shelves", "v1.2.3"),
				ResourceClasses(typeOf[shelf]()),
			)

			spec := s.Endpoint().OpenApi()
			require.Equal(t, "shelves", spec.Info.Title)
			require.Equal(t, "v1.2.3", spec.Info.Version)
			require.Contains(t, spec.Paths.MapOfPathItemValues, "/shelves/{shelf}")
			require.Contains(t, spec.Paths.MapOfPathItemValues, "/shelves/{shelf}/books/{book}")
		})
	})
}

func TestServer_Health(t *testing.T) {
	t.Run("will report ready", func(t *testing.T) {
		t.Run("if the server is started", func(t *testing.T) {
			s := newServer(t, ResourceClasses(typeOf[echo]()))

			resp, _ := get(t, baseURL(s)+"/health/readiness", nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			resp, _ = get(t, baseURL(s)+"/health/liveness", nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
		})
	})

	t.Run("will report not ready", func(t *testing.T) {
		t.Run("if a readiness monitor is unhealthy", func(t *testing.T) {
			var dep health.Binary
			s := newServer(t, ResourceClasses(typeOf[echo]()), Readiness(&dep))

			resp, _ := get(t, baseURL(s)+"/health/readiness", nil)
			require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

			dep.MarkHealthy()
			resp, _ = get(t, baseURL(s)+"/health/readiness", nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
		})
	})
}

func TestServer_Use(t *testing.T) {
	t.Run("will run interceptors in the order they were added", func(t *testing.T) {
		s := newServer(t, ResourceClasses(typeOf[counted]()), ResourceProvider(typeOf[counted](), lifecycle.PerRequest(typeOf[counted](), lifecycle.Constructor(func(ctx context.Context) (any, error) {
			return &counted{released: new(atomic.Int64)}, nil
		}))))

		var mu sync.Mutex
		var calls []string
		record := func(name string) Interceptor {
			return InterceptorFunc(func(next func(http.ResponseWriter, *http.Request) error) func(http.ResponseWriter, *http.Request) error {
				return func(w http.ResponseWriter, r *http.Request) error {
					mu.Lock()
					calls = append(calls, name)
					mu.Unlock()
					return next(w, r)
				}
			})
		}
		s.Use(record("first"))
		s.Use(record("second"))

		resp, _ := get(t, baseURL(s)+"/counted", nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, []string{"first", "second"}, calls)
	})

	t.Run("will see the error of an invocation", func(t *testing.T) {
		s := newServer(t, ResourceClasses(typeOf[echo]()))

		errs := make(chan error, 1)
		s.Use(InterceptorFunc(func(next func(http.ResponseWriter, *http.Request) error) func(http.ResponseWriter, *http.Request) error {
			return func(w http.ResponseWriter, r *http.Request) error {
				err := next(w, r)
				errs <- err
				return err
			}
		}))

		resp, _ := get(t, baseURL(s)+"/echo/fail", nil)
		require.Equal(t, http.StatusTeapot, resp.StatusCode)

		var serr StatusError
		require.ErrorAs(t, <-errs, &serr)
	})
}

func TestLogging(t *testing.T) {
	t.Run("will intercept every invocation", func(t *testing.T) {
		s := newServer(t, ResourceClasses(typeOf[echo]()), Features(Logging()))
		require.Len(t, s.interceptors, 1)

		resp, _ := get(t, baseURL(s)+"/echo", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestServer_Run(t *testing.T) {
	t.Run("will stop serving once the context is cancelled", func(t *testing.T) {
		b := bus.New()
		s, err := NewFactory(
			WithBus(b),
			Address("http://127.0.0.1:0/"),
			Start(false),
			ResourceClasses(typeOf[echo]()),
		).Create(context.Background())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Run(ctx)
		}()

		require.Eventually(t, func() bool {
			return slices.ContainsFunc(b.Servers(), func(bs bus.Server) bool {
				return bs.ID() == s.ID()
			})
		}, 5*time.Second, 10*time.Millisecond)

		resp, _ := get(t, baseURL(s)+"/echo", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		cancel()
		select {
		case err := <-errCh:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
		require.Empty(t, b.Servers())
	})
}

func TestJoinPath(t *testing.T) {
	testCases := []struct {
		Name string
		Base string
		Rel  string
		Path string
	}{
		{Name: "root", Base: "", Rel: "", Path: "/"},
		{Name: "slashes only", Base: "/", Rel: "/", Path: "/"},
		{Name: "base only", Base: "/books/", Rel: "/", Path: "/books"},
		{Name: "relative only", Base: "", Rel: "{id}", Path: "/{id}"},
		{Name: "both", Base: "books", Rel: "/{id}/", Path: "/books/{id}"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			require.Equal(t, testCase.Path, joinPath(testCase.Base, testCase.Rel))
		})
	}
}
