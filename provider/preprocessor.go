// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package provider

import (
	"maps"
	"net/http"
	"strings"
)

// Query parameters and headers understood by [RequestPreprocessor].
const (
	TypeQueryParam    = "_type"
	MethodQueryParam  = "_method"
	MethodOverrideHdr = "X-HTTP-Method-Override"
	AcceptHdr         = "Accept"
	AcceptLanguageHdr = "Accept-Language"
)

// RequestPreprocessor rewrites requests before they are routed so that
// clients unable to set headers can negotiate through the URI.
//
// For a path ending in ".<ext>" with a known extension mapping the suffix
// is stripped and Accept is set to the mapped media type. Then for a path
// ending in ".<lang>" with a known language mapping the suffix is stripped
// and Accept-Language is set. A "_type" query parameter overrides Accept,
// either through the extension mappings or as a literal media type. A
// POST may change its method with "_method" or X-HTTP-Method-Override.
type RequestPreprocessor struct {
	languages  map[string]string
	extensions map[string]string
}

// NewRequestPreprocessor returns a [RequestPreprocessor] for the given mappings,
// e.g. {"en": "en-gb"} and {"json": "application/json"}.
func NewRequestPreprocessor(languages, extensions map[string]string) *RequestPreprocessor {
	return &RequestPreprocessor{
		languages:  maps.Clone(languages),
		extensions: maps.Clone(extensions),
	}
}

// LanguageMappings returns a copy of the language mappings.
func (p *RequestPreprocessor) LanguageMappings() map[string]string {
	return maps.Clone(p.languages)
}

// ExtensionMappings returns a copy of the extension mappings.
func (p *RequestPreprocessor) ExtensionMappings() map[string]string {
	return maps.Clone(p.extensions)
}

// Preprocess returns r rewritten by the mappings. r itself is never modified.
func (p *RequestPreprocessor) Preprocess(r *http.Request) *http.Request {
	r2 := r.Clone(r.Context())

	path := r2.URL.Path
	if v, rest, ok := trimSuffix(path, p.extensions); ok {
		r2.Header.Set(AcceptHdr, v)
		path = rest
	}
	if v, rest, ok := trimSuffix(path, p.languages); ok {
		r2.Header.Set(AcceptLanguageHdr, v)
		path = rest
	}
	if path != r2.URL.Path {
		r2.URL.Path = path
		r2.URL.RawPath = ""
	}

	query := r2.URL.Query()
	if typ := query.Get(TypeQueryParam); typ != "" {
		if mt, ok := p.extensions[typ]; ok {
			r2.Header.Set(AcceptHdr, mt)
		} else if strings.Contains(typ, "/") {
			r2.Header.Set(AcceptHdr, typ)
		}
	}

	if r2.Method == http.MethodPost {
		method := query.Get(MethodQueryParam)
		if method == "" {
			method = r2.Header.Get(MethodOverrideHdr)
		}
		if method != "" {
			r2.Method = strings.ToUpper(method)
		}
	}
	return r2
}

// Handler preprocesses every request before passing it to next.
func (p *RequestPreprocessor) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, p.Preprocess(r))
	})
}

func trimSuffix(path string, mappings map[string]string) (string, string, bool) {
	slash := strings.LastIndexByte(path, '/')
	dot := strings.LastIndexByte(path, '.')
	if dot <= slash+1 {
		return "", path, false
	}

	v, ok := mappings[path[dot+1:]]
	if !ok {
		return "", path, false
	}
	return v, path[:dot], true
}
