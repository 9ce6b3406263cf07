// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package inject

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// UriInfo exposes the URI of the current request.
type UriInfo struct {
	r *http.Request
}

// Path returns the request path.
func (u UriInfo) Path() string {
	return u.r.URL.Path
}

// RequestURI returns the request URL.
func (u UriInfo) RequestURI() *url.URL {
	return u.r.URL
}

// Query returns the parsed query parameters.
func (u UriInfo) Query() url.Values {
	return u.r.URL.Query()
}

// PathParam returns the value of the named path parameter of the matched route.
func (u UriInfo) PathParam(name string) string {
	return chi.URLParam(u.r, name)
}

// Builtins returns the providers for the contexts every request serves:
// *http.Request, http.Header and [UriInfo].
func Builtins() Providers {
	return Providers{
		ProviderFunc[*http.Request](func(r *http.Request) (*http.Request, error) {
			return r, nil
		}),
		ProviderFunc[http.Header](func(r *http.Request) (http.Header, error) {
			return r.Header, nil
		}),
		ProviderFunc[UriInfo](func(r *http.Request) (UriInfo, error) {
			return UriInfo{r: r}, nil
		}),
	}
}
