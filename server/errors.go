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
	"log/slog"
	"net/http"
)

// ConstructionError is returned by [Factory.Create] for any failure to
// set up a server. Use [errors.As] to inspect the cause, e.g. an
// [EndpointError], a [BusError] or a [*net.OpError].
type ConstructionError struct {
	Cause error
}

// Error implements the [error] interface.
func (e ConstructionError) Error() string {
	return fmt.Sprintf("server: failed to construct server: %s", e.Cause)
}

// Unwrap returns the underlying cause.
func (e ConstructionError) Unwrap() error {
	return e.Cause
}

// EndpointError is returned when the endpoint of Address can not be created.
type EndpointError struct {
	Address string
	Reason  string
	Cause   error
}

// Error implements the [error] interface.
func (e EndpointError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("server: endpoint %s: %s: %s", e.Address, e.Reason, e.Cause)
	}
	return fmt.Sprintf("server: endpoint %s: %s", e.Address, e.Reason)
}

// Unwrap returns the underlying cause.
func (e EndpointError) Unwrap() error {
	return e.Cause
}

// BusError is returned when the bus can not serve an endpoint.
type BusError struct {
	Cause error
}

// Error implements the [error] interface.
func (e BusError) Error() string {
	return fmt.Sprintf("server: bus failure: %s", e.Cause)
}

// Unwrap returns the underlying cause.
func (e BusError) Unwrap() error {
	return e.Cause
}

// NoProviderError is returned when a resource class has neither a
// lifecycle provider nor a matching service bean.
type NoProviderError struct {
	Class string
}

// Error implements the [error] interface.
func (e NoProviderError) Error() string {
	return "server: no lifecycle provider for resource class: " + e.Class
}

// HttpResponseWriter is implemented by errors which write their own response.
type HttpResponseWriter interface {
	WriteHttpResponse(context.Context, http.ResponseWriter)
}

// StatusError is an invocation failure with an HTTP status code.
type StatusError struct {
	Status int
	Cause  error
}

// Error implements the [error] interface.
func (e StatusError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("server: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server: %d %s: %s", e.Status, http.StatusText(e.Status), e.Cause)
}

// Unwrap returns the underlying cause.
func (e StatusError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the HTTP status code.
func (e StatusError) StatusCode() int {
	return e.Status
}

// WriteHttpResponse implements the [HttpResponseWriter] interface.
func (e StatusError) WriteHttpResponse(ctx context.Context, w http.ResponseWriter) {
	writeStatus(w, e.Status)
}

// statusCoder is implemented by errors which map to an HTTP status,
// e.g. the negotiation errors of the provider package.
type statusCoder interface {
	StatusCode() int
}

type statusBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func writeStatus(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(statusBody{
		Status:  status,
		Message: http.StatusText(status),
	})
}

// ErrorHandler writes the response for a failed invocation.
type ErrorHandler interface {
	OnError(context.Context, http.ResponseWriter, error)
}

// ErrorHandlerFunc is a func type of the [ErrorHandler] interface.
type ErrorHandlerFunc func(context.Context, http.ResponseWriter, error)

// OnError implements the [ErrorHandler] interface.
func (f ErrorHandlerFunc) OnError(ctx context.Context, w http.ResponseWriter, err error) {
	f(ctx, w, err)
}

// DefaultErrorHandler logs err and responds with the status it carries,
// or 500 if it carries none.
func DefaultErrorHandler(log *slog.Logger) ErrorHandler {
	return ErrorHandlerFunc(func(ctx context.Context, w http.ResponseWriter, err error) {
		log.ErrorContext(ctx, "sending error response", slog.Any("error", err))

		var hrw HttpResponseWriter
		if errors.As(err, &hrw) {
			hrw.WriteHttpResponse(ctx, w)
			return
		}

		var sc statusCoder
		if errors.As(err, &sc) {
			writeStatus(w, sc.StatusCode())
			return
		}
		writeStatus(w, http.StatusInternalServerError)
	})
}
