// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package endpoint holds the resource classes of the bookstore.
package endpoint

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/z5labs/loam/example/bookstore/book"
	"github.com/z5labs/loam/server"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// statusError maps store and validation failures to their HTTP status.
func statusError(err error) error {
	if errors.Is(err, book.ErrNotFound) {
		return server.StatusError{Status: http.StatusNotFound, Cause: err}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return server.StatusError{Status: http.StatusBadRequest, Cause: err}
	}
	return err
}
