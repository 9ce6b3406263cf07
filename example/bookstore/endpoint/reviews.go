// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package endpoint

import (
	"net/http"

	"github.com/z5labs/loam/example/bookstore/book"
	"github.com/z5labs/loam/provider"
	"github.com/z5labs/loam/resource"
)

// Reviews is the subresource of a single book.
type Reviews struct {
	bookID string
	store  *book.Store

	Registry *provider.Registry `loam:"context"`
}

// Routes implements the [resource.Resource] interface.
func (*Reviews) Routes() resource.Routes {
	return resource.Routes{
		Operations: []resource.Operation{
			resource.Get("/", (*Reviews).list,
				resource.Summary("List the reviews of a book"),
				resource.Returns[[]book.Review](http.StatusOK),
			),
			resource.Post("/", (*Reviews).add,
				resource.Summary("Review a book"),
				resource.Accepts[book.Review](),
				resource.NoContent(http.StatusCreated),
			),
		},
	}
}

func (rs *Reviews) list(w http.ResponseWriter, r *http.Request) error {
	reviews, err := rs.store.Reviews(rs.bookID)
	if err != nil {
		return statusError(err)
	}
	return rs.Registry.WriteEntity(w, r, http.StatusOK, reviews)
}

func (rs *Reviews) add(w http.ResponseWriter, r *http.Request) error {
	var review book.Review
	err := rs.Registry.ReadEntity(r, &review)
	if err != nil {
		return err
	}
	err = validate.Struct(review)
	if err != nil {
		return statusError(err)
	}

	err = rs.store.AddReview(rs.bookID, review)
	if err != nil {
		return statusError(err)
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}
