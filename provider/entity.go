// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"
)

// EntityReader decodes request bodies.
type EntityReader interface {
	Readable(t reflect.Type, mediaType string) bool
	ReadEntity(body io.Reader, mediaType string, v any) error
}

// EntityWriter encodes response entities. WriteEntity is responsible for
// the Content-Type header and status code.
type EntityWriter interface {
	Writeable(t reflect.Type, mediaType string) bool
	WriteEntity(w http.ResponseWriter, status int, mediaType string, v any) error
}

// NotAcceptableError is returned when no [EntityWriter] produces an accepted media type.
type NotAcceptableError struct {
	Accept string
}

// Error implements the [error] interface.
func (e NotAcceptableError) Error() string {
	return "provider: no entity writer for accepted media types: " + e.Accept
}

// StatusCode returns 406.
func (NotAcceptableError) StatusCode() int {
	return http.StatusNotAcceptable
}

// UnsupportedMediaTypeError is returned when no [EntityReader] consumes the request content type.
type UnsupportedMediaTypeError struct {
	ContentType string
}

// Error implements the [error] interface.
func (e UnsupportedMediaTypeError) Error() string {
	return "provider: no entity reader for content type: " + e.ContentType
}

// StatusCode returns 415.
func (UnsupportedMediaTypeError) StatusCode() int {
	return http.StatusUnsupportedMediaType
}

// EntityDecodeError wraps a failure to decode a request body.
type EntityDecodeError struct {
	Cause error
}

// Error implements the [error] interface.
func (e EntityDecodeError) Error() string {
	return fmt.Sprintf("provider: failed to decode request entity: %s", e.Cause)
}

// Unwrap returns the underlying cause.
func (e EntityDecodeError) Unwrap() error {
	return e.Cause
}

// StatusCode returns 400.
func (EntityDecodeError) StatusCode() int {
	return http.StatusBadRequest
}

// JSON is the built-in entity provider for application/json and +json media types.
type JSON struct{}

// Readable implements the [EntityReader] interface.
func (JSON) Readable(t reflect.Type, mediaType string) bool {
	return isJSON(mediaType)
}

// ReadEntity implements the [EntityReader] interface.
func (JSON) ReadEntity(body io.Reader, mediaType string, v any) error {
	return json.NewDecoder(body).Decode(v)
}

// Writeable implements the [EntityWriter] interface. Wildcards are served as application/json.
func (JSON) Writeable(t reflect.Type, mediaType string) bool {
	return mediaType == "*/*" || mediaType == "application/*" || isJSON(mediaType)
}

// WriteEntity implements the [EntityWriter] interface.
func (JSON) WriteEntity(w http.ResponseWriter, status int, mediaType string, v any) error {
	if strings.Contains(mediaType, "*") {
		mediaType = "application/json"
	}
	w.Header().Set("Content-Type", mediaType)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func isJSON(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// acceptedMediaTypes parses an Accept header into media types, dropping
// parameters and entries with q=0. An empty header accepts anything.
func acceptedMediaTypes(accept string) []string {
	if strings.TrimSpace(accept) == "" {
		return []string{"*/*"}
	}

	var mts []string
	for _, el := range strings.Split(accept, ",") {
		mt, params, err := mime.ParseMediaType(strings.TrimSpace(el))
		if err != nil {
			continue
		}
		if q, ok := params["q"]; ok && strings.Trim(q, "0.") == "" {
			continue
		}
		mts = append(mts, mt)
	}
	return mts
}
