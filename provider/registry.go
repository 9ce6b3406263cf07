// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package provider holds the providers an endpoint uses to serve requests.
//
// A [Registry] collects entity readers and writers, context providers,
// features and request preprocessing for one endpoint address.
package provider

import (
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"slices"
	"sync"

	"github.com/z5labs/loam/inject"
	"github.com/z5labs/sdk-go/try"
)

// UnsupportedProviderError is returned for a value which is not a known kind of provider.
type UnsupportedProviderError struct {
	Provider any
}

// Error implements the [error] interface.
func (e UnsupportedProviderError) Error() string {
	return fmt.Sprintf("provider: unsupported provider type: %T", e.Provider)
}

// Registry is the provider pipeline of one endpoint. It is safe for concurrent use.
type Registry struct {
	mu              sync.RWMutex
	readers         []EntityReader
	writers         []EntityWriter
	contexts        map[reflect.Type]inject.ContextProvider
	contextTypes    []reflect.Type
	features        []Feature
	schemaLocations []string
	preprocessor    *RequestPreprocessor
}

// NewRegistry returns a [Registry] serving the built-in contexts, the
// registry itself and JSON entities.
func NewRegistry() *Registry {
	reg := &Registry{
		contexts:     make(map[reflect.Type]inject.ContextProvider),
		preprocessor: NewRequestPreprocessor(nil, nil),
	}
	for _, p := range inject.Builtins() {
		reg.contexts[p.ContextType()] = p
	}
	self := inject.ProviderFunc[*Registry](func(*http.Request) (*Registry, error) {
		return reg, nil
	})
	reg.contexts[self.ContextType()] = self
	return reg
}

// SetUserProviders registers every value of ps by what it implements.
// A value implementing both [EntityReader] and [EntityWriter] is
// registered as both. Nothing is registered if any value is unsupported.
func (reg *Registry) SetUserProviders(ps ...any) error {
	for _, p := range ps {
		if !supported(p) {
			return UnsupportedProviderError{Provider: p}
		}
	}
	for _, p := range ps {
		err := reg.register(p)
		if err != nil {
			return err
		}
	}
	return nil
}

func supported(p any) bool {
	switch p.(type) {
	case EntityReader, EntityWriter, inject.ContextProvider, Feature:
		return true
	default:
		return false
	}
}

func (reg *Registry) register(p any) error {
	if f, ok := p.(Feature); ok {
		return reg.configure(f)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if er, ok := p.(EntityReader); ok {
		reg.readers = append(reg.readers, er)
	}
	if ew, ok := p.(EntityWriter); ok {
		reg.writers = append(reg.writers, ew)
	}
	if cp, ok := p.(inject.ContextProvider); ok {
		reg.contexts[cp.ContextType()] = cp
	}
	return nil
}

// RegisterContext registers cp, replacing any provider of the same type.
func (reg *Registry) RegisterContext(cp inject.ContextProvider) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.contexts[cp.ContextType()] = cp
}

// ContextProvider implements the [inject.Resolver] interface.
func (reg *Registry) ContextProvider(t reflect.Type) (inject.ContextProvider, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	cp, ok := reg.contexts[t]
	return cp, ok
}

// ContextTypes returns the custom context types declared by enabled features.
func (reg *Registry) ContextTypes() []reflect.Type {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return slices.Clone(reg.contextTypes)
}

// Features returns the enabled features in registration order.
func (reg *Registry) Features() []Feature {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return slices.Clone(reg.features)
}

// ReaderFor returns the first reader of t for mediaType. User readers are
// consulted before the built-in JSON reader.
func (reg *Registry) ReaderFor(t reflect.Type, mediaType string) (EntityReader, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	for _, er := range reg.readers {
		if er.Readable(t, mediaType) {
			return er, true
		}
	}
	if (JSON{}).Readable(t, mediaType) {
		return JSON{}, true
	}
	return nil, false
}

// WriterFor returns the first writer of t for mediaType. User writers are
// consulted before the built-in JSON writer.
func (reg *Registry) WriterFor(t reflect.Type, mediaType string) (EntityWriter, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	for _, ew := range reg.writers {
		if ew.Writeable(t, mediaType) {
			return ew, true
		}
	}
	if (JSON{}).Writeable(t, mediaType) {
		return JSON{}, true
	}
	return nil, false
}

// WriteEntity writes v with status using the first writer matching the
// request's Accept header.
func (reg *Registry) WriteEntity(w http.ResponseWriter, r *http.Request, status int, v any) error {
	t := reflect.TypeOf(v)

	accept := r.Header.Get("Accept")
	for _, mt := range acceptedMediaTypes(accept) {
		ew, ok := reg.WriterFor(t, mt)
		if !ok {
			continue
		}
		return ew.WriteEntity(w, status, mt, v)
	}
	return NotAcceptableError{Accept: accept}
}

// ReadEntity decodes the request body into v, which must be a pointer,
// using the reader matching the request's Content-Type. A missing
// Content-Type is read as application/json.
func (reg *Registry) ReadEntity(r *http.Request, v any) (err error) {
	defer try.Close(&err, r.Body)

	contentType := r.Header.Get("Content-Type")
	mediaType := "application/json"
	if contentType != "" {
		mediaType, _, err = mime.ParseMediaType(contentType)
		if err != nil {
			return UnsupportedMediaTypeError{ContentType: contentType}
		}
	}

	er, ok := reg.ReaderFor(reflect.TypeOf(v), mediaType)
	if !ok {
		return UnsupportedMediaTypeError{ContentType: contentType}
	}

	err = er.ReadEntity(r.Body, mediaType, v)
	if err != nil {
		return EntityDecodeError{Cause: err}
	}
	return nil
}

// SetSchemaLocations replaces the schema locations used to validate entities.
func (reg *Registry) SetSchemaLocations(locs ...string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.schemaLocations = slices.Clone(locs)
}

// SchemaLocations returns the configured schema locations.
func (reg *Registry) SchemaLocations() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return slices.Clone(reg.schemaLocations)
}

// SetRequestPreprocessor replaces the request preprocessor.
func (reg *Registry) SetRequestPreprocessor(p *RequestPreprocessor) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.preprocessor = p
}

// RequestPreprocessor returns the request preprocessor.
func (reg *Registry) RequestPreprocessor() *RequestPreprocessor {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return reg.preprocessor
}
