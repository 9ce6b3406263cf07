// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package endpoint

import (
	"log/slog"
	"net/http"

	"github.com/z5labs/loam"
	"github.com/z5labs/loam/example/bookstore/book"
	"github.com/z5labs/loam/example/customcontext"
	"github.com/z5labs/loam/inject"
	"github.com/z5labs/loam/provider"
	"github.com/z5labs/loam/resource"
)

// BookStore is created for every request.
type BookStore struct {
	Store *book.Store

	Registry *provider.Registry `loam:"context"`
	URI      inject.UriInfo     `loam:"context"`
	Custom   inject.Context[customcontext.CustomContext]

	log *slog.Logger
}

// NewBookStore returns a [BookStore] backed by store.
func NewBookStore(store *book.Store) *BookStore {
	return &BookStore{
		Store: store,
		log:   loam.Logger("github.com/z5labs/loam/example/bookstore/endpoint"),
	}
}

// Routes implements the [resource.Resource] interface.
func (*BookStore) Routes() resource.Routes {
	return resource.Routes{
		Path: "/books",
		Operations: []resource.Operation{
			resource.Get("/", (*BookStore).list,
				resource.Summary("List books"),
				resource.Returns[[]book.Book](http.StatusOK),
			),
			resource.Post("/", (*BookStore).add,
				resource.Summary("Add a book"),
				resource.Accepts[book.Book](),
				resource.Returns[book.Book](http.StatusCreated),
			),
			resource.Get("/{id}", (*BookStore).find,
				resource.Summary("Find a book"),
				resource.Returns[book.Book](http.StatusOK),
			),
			resource.Delete("/{id}", (*BookStore).remove,
				resource.Summary("Delete a book"),
				resource.NoContent(http.StatusNoContent),
			),
		},
		Subresources: []resource.Locator{
			resource.Locate("/{id}/reviews", (*BookStore).reviews),
		},
	}
}

func (bs *BookStore) list(w http.ResponseWriter, r *http.Request) error {
	return bs.Registry.WriteEntity(w, r, http.StatusOK, bs.Store.List())
}

func (bs *BookStore) add(w http.ResponseWriter, r *http.Request) error {
	var b book.Book
	err := bs.Registry.ReadEntity(r, &b)
	if err != nil {
		return err
	}
	err = validate.Struct(b)
	if err != nil {
		return statusError(err)
	}

	b = bs.Store.Add(b)

	cc, err := bs.Custom.Get(r.Context())
	if err != nil {
		return err
	}
	bs.log.InfoContext(r.Context(),
		"added book",
		slog.String("book_id", b.ID),
		slog.String("tenant", cc.Tenant()),
		slog.String("request_id", cc.RequestID()),
	)
	return bs.Registry.WriteEntity(w, r, http.StatusCreated, b)
}

func (bs *BookStore) find(w http.ResponseWriter, r *http.Request) error {
	b, err := bs.Store.Get(bs.URI.PathParam("id"))
	if err != nil {
		return statusError(err)
	}
	return bs.Registry.WriteEntity(w, r, http.StatusOK, b)
}

func (bs *BookStore) remove(w http.ResponseWriter, r *http.Request) error {
	err := bs.Store.Delete(bs.URI.PathParam("id"))
	if err != nil {
		return statusError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// reviews locates the reviews of a book. Unknown books have none.
func (bs *BookStore) reviews(r *http.Request) (*Reviews, error) {
	id := bs.URI.PathParam("id")
	_, err := bs.Store.Get(id)
	if err != nil {
		return nil, nil
	}
	return &Reviews{bookID: id, store: bs.Store}, nil
}
