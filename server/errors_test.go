// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/z5labs/loam/provider"
)

type redirectError struct {
	location string
}

func (e redirectError) Error() string {
	return "redirect to " + e.location
}

func (e redirectError) WriteHttpResponse(ctx context.Context, w http.ResponseWriter) {
	w.Header().Set("Location", e.location)
	w.WriteHeader(http.StatusSeeOther)
}

func TestDefaultErrorHandler(t *testing.T) {
	testCases := []struct {
		Name   string
		Err    error
		Status int
	}{
		{
			Name:   "will respond with 500 if the error carries no status",
			Err:    errors.New("failed"),
			Status: http.StatusInternalServerError,
		},
		{
			Name:   "will respond with the status of a StatusError",
			Err:    StatusError{Status: http.StatusConflict},
			Status: http.StatusConflict,
		},
		{
			Name:   "will respond with the status of a wrapped StatusError",
			Err:    fmt.Errorf("wrapped: %w", StatusError{Status: http.StatusForbidden}),
			Status: http.StatusForbidden,
		},
		{
			Name:   "will respond with 406 if no entity writer is acceptable",
			Err:    provider.NotAcceptableError{Accept: "application/xml"},
			Status: http.StatusNotAcceptable,
		},
		{
			Name:   "will respond with 415 if no entity reader is available",
			Err:    provider.UnsupportedMediaTypeError{ContentType: "application/xml"},
			Status: http.StatusUnsupportedMediaType,
		},
		{
			Name:   "will respond with 400 if the entity can not be decoded",
			Err:    provider.EntityDecodeError{Cause: io.ErrUnexpectedEOF},
			Status: http.StatusBadRequest,
		},
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			w := httptest.NewRecorder()
			DefaultErrorHandler(log).OnError(context.Background(), w, testCase.Err)

			resp := w.Result()
			require.Equal(t, testCase.Status, resp.StatusCode)
			require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			var sb statusBody
			err := json.NewDecoder(resp.Body).Decode(&sb)
			require.NoError(t, err)
			require.Equal(t, testCase.Status, sb.Status)
			require.Equal(t, http.StatusText(testCase.Status), sb.Message)
		})
	}

	t.Run("will let the error write the response", func(t *testing.T) {
		t.Run("if it implements HttpResponseWriter", func(t *testing.T) {
			w := httptest.NewRecorder()
			DefaultErrorHandler(log).OnError(context.Background(), w, redirectError{location: "/books/1"})

			resp := w.Result()
			require.Equal(t, http.StatusSeeOther, resp.StatusCode)
			require.Equal(t, "/books/1", resp.Header.Get("Location"))
		})
	})
}

func TestConstructionError(t *testing.T) {
	t.Run("will unwrap to its cause", func(t *testing.T) {
		cause := EndpointError{Address: "http://localhost/", Reason: "no resource classes found"}
		err := ConstructionError{Cause: BusError{Cause: cause}}

		var eerr EndpointError
		require.ErrorAs(t, err, &eerr)
		require.Equal(t, cause, eerr)
		require.Contains(t, err.Error(), "no resource classes found")
	})
}
