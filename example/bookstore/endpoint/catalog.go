// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package endpoint

import (
	"net/http"

	"github.com/z5labs/loam/example/bookstore/book"
	"github.com/z5labs/loam/example/customcontext"
	"github.com/z5labs/loam/inject"
	"github.com/z5labs/loam/provider"
	"github.com/z5labs/loam/resource"
)

// Catalog is served as a singleton. Its context is only reachable
// through proxies which resolve the value of the current request.
type Catalog struct {
	Store *book.Store

	Registry inject.Context[*provider.Registry]
	Custom   inject.Context[customcontext.CustomContext]
}

// Summary is the response of the catalog.
type Summary struct {
	Books     int    `json:"books"`
	Tenant    string `json:"tenant"`
	RequestID string `json:"request_id"`
}

// Routes implements the [resource.Resource] interface.
func (*Catalog) Routes() resource.Routes {
	return resource.Routes{
		Path: "/catalog",
		Operations: []resource.Operation{
			resource.Get("/", (*Catalog).summary,
				resource.Summary("Summarize the catalog"),
				resource.Returns[Summary](http.StatusOK),
			),
		},
	}
}

func (c *Catalog) summary(w http.ResponseWriter, r *http.Request) error {
	cc, err := c.Custom.Get(r.Context())
	if err != nil {
		return err
	}
	reg, err := c.Registry.Get(r.Context())
	if err != nil {
		return err
	}

	return reg.WriteEntity(w, r, http.StatusOK, Summary{
		Books:     c.Store.Len(),
		Tenant:    cc.Tenant(),
		RequestID: cc.RequestID(),
	})
}
