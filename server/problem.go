// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// ProblemDetail is an RFC 7807 Problem Details body. Embed it in an
// error type to return extension fields alongside the standard ones.
//
// Reference: https://www.rfc-editor.org/rfc/rfc7807
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Error implements the [error] interface.
func (p ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

func (p ProblemDetail) problemStatus() int {
	return p.Status
}

type problemDetailer interface {
	problemStatus() int
}

type problemConfig struct {
	defaultType string
}

// ProblemOption configures the handler returned by [ProblemDetailsErrorHandler].
type ProblemOption func(*problemConfig)

// ProblemType sets the type URI used for errors which are not
// themselves a [ProblemDetail]. Defaults to "about:blank".
func ProblemType(uri string) ProblemOption {
	return func(pc *problemConfig) {
		pc.defaultType = uri
	}
}

// ProblemDetailsErrorHandler returns an [ErrorHandler] which responds
// with application/problem+json.
//
// Errors embedding [ProblemDetail] are encoded as is. Any other error is
// reduced to its status with a fixed detail message so internal failures
// never leak to clients.
func ProblemDetailsErrorHandler(log *slog.Logger, opts ...ProblemOption) ErrorHandler {
	pc := problemConfig{
		defaultType: "about:blank",
	}
	for _, opt := range opts {
		opt(&pc)
	}

	return ErrorHandlerFunc(func(ctx context.Context, w http.ResponseWriter, err error) {
		log.ErrorContext(ctx, "sending error response", slog.Any("error", err))

		var body any
		status := http.StatusInternalServerError

		var pd problemDetailer
		var sc statusCoder
		switch {
		case errors.As(err, &pd):
			status = pd.problemStatus()
			body = pd
		case errors.As(err, &sc):
			status = sc.StatusCode()
			body = pc.problem(status)
		default:
			body = pc.problem(status)
		}

		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(status)
		encErr := json.NewEncoder(w).Encode(body)
		if encErr != nil {
			log.ErrorContext(ctx, "failed to encode problem details", slog.Any("error", encErr))
		}
	})
}

func (pc problemConfig) problem(status int) ProblemDetail {
	detail := "An internal server error occurred."
	if status < http.StatusInternalServerError {
		detail = http.StatusText(status)
	}
	return ProblemDetail{
		Type:   pc.defaultType,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}
