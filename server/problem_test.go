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
)

type outOfStockError struct {
	ProblemDetail
	SKU string `json:"sku"`
}

func TestProblemDetailsErrorHandler(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	respond := func(h ErrorHandler, err error) *http.Response {
		w := httptest.NewRecorder()
		h.OnError(context.Background(), w, err)
		return w.Result()
	}

	t.Run("will encode extension fields", func(t *testing.T) {
		t.Run("if the error embeds a ProblemDetail", func(t *testing.T) {
			err := outOfStockError{
				ProblemDetail: ProblemDetail{
					Type:   "https://example.com/problems/stock",
					Title:  "Out of Stock",
					Status: http.StatusConflict,
					Detail: "no copies left",
				},
				SKU: "abc",
			}

			resp := respond(ProblemDetailsErrorHandler(log), fmt.Errorf("wrapped: %w", err))
			defer resp.Body.Close()

			require.Equal(t, http.StatusConflict, resp.StatusCode)
			require.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

			var body map[string]any
			require.Nil(t, json.NewDecoder(resp.Body).Decode(&body))
			require.Equal(t, "abc", body["sku"])
			require.Equal(t, "no copies left", body["detail"])
			require.Equal(t, "https://example.com/problems/stock", body["type"])
		})
	})

	t.Run("will hide the cause", func(t *testing.T) {
		t.Run("if the error is not a ProblemDetail", func(t *testing.T) {
			resp := respond(ProblemDetailsErrorHandler(log, ProblemType("https://example.com/problems/")), errors.New("db password wrong"))
			defer resp.Body.Close()

			require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

			var pd ProblemDetail
			require.Nil(t, json.NewDecoder(resp.Body).Decode(&pd))
			require.Equal(t, "https://example.com/problems/", pd.Type)
			require.Equal(t, "An internal server error occurred.", pd.Detail)
			require.NotContains(t, pd.Detail, "password")
		})
	})

	t.Run("will use the status of the error", func(t *testing.T) {
		t.Run("if it carries one", func(t *testing.T) {
			resp := respond(ProblemDetailsErrorHandler(log), StatusError{Status: http.StatusNotFound, Cause: errors.New("secret")})
			defer resp.Body.Close()

			require.Equal(t, http.StatusNotFound, resp.StatusCode)

			var pd ProblemDetail
			require.Nil(t, json.NewDecoder(resp.Body).Decode(&pd))
			require.Equal(t, "about:blank", pd.Type)
			require.Equal(t, http.StatusText(http.StatusNotFound), pd.Title)
			require.Equal(t, http.StatusNotFound, pd.Status)
		})
	})
}
