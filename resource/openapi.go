// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package resource

import (
	"net/http"
	"reflect"
	"regexp"
	"strconv"

	"github.com/swaggest/jsonschema-go"
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/sdk-go/ptr"
)

var pathParamPattern = regexp.MustCompile(`\{([^}:]+)(?::[^}]*)?\}`)

// Definition returns the OpenAPI 3.0 description of the operation mounted at
// the full path pattern. Path parameters are taken from pattern.
func (o Operation) Definition(pattern string) (openapi3.Operation, error) {
	def := openapi3.Operation{
		Responses: openapi3.Responses{
			MapOfResponseOrRefValues: make(map[string]openapi3.ResponseOrRef),
		},
	}
	if o.summary != "" {
		def.Summary = ptr.Ref(o.summary)
	}

	for _, m := range pathParamPattern.FindAllStringSubmatch(pattern, -1) {
		def.Parameters = append(def.Parameters, openapi3.ParameterOrRef{
			Parameter: &openapi3.Parameter{
				Name:     m[1],
				In:       openapi3.ParameterInPath,
				Required: ptr.Ref(true),
			},
		})
	}

	if o.request != nil {
		schema, err := jsonSchema(o.request)
		if err != nil {
			return openapi3.Operation{}, err
		}
		def.RequestBody = &openapi3.RequestBodyOrRef{
			RequestBody: &openapi3.RequestBody{
				Required: ptr.Ref(true),
				Content: map[string]openapi3.MediaType{
					"application/json": {Schema: schema},
				},
			},
		}
	}

	if len(o.responses) == 0 {
		def.Responses.MapOfResponseOrRefValues[strconv.Itoa(http.StatusOK)] = openapi3.ResponseOrRef{
			Response: &openapi3.Response{Description: http.StatusText(http.StatusOK)},
		}
	}
	for _, resp := range o.responses {
		spec := &openapi3.Response{
			Description: http.StatusText(resp.status),
		}
		if resp.typ != nil {
			schema, err := jsonSchema(resp.typ)
			if err != nil {
				return openapi3.Operation{}, err
			}
			spec.Content = map[string]openapi3.MediaType{
				"application/json": {Schema: schema},
			}
		}
		def.Responses.MapOfResponseOrRefValues[strconv.Itoa(resp.status)] = openapi3.ResponseOrRef{
			Response: spec,
		}
	}
	return def, nil
}

func jsonSchema(t reflect.Type) (*openapi3.SchemaOrRef, error) {
	var reflector jsonschema.Reflector

	schema, err := reflector.Reflect(reflect.New(t).Elem().Interface(), jsonschema.InlineRefs)
	if err != nil {
		return nil, err
	}

	var schemaOrRef openapi3.SchemaOrRef
	schemaOrRef.FromJSONSchema(schema.ToSchemaOrBool())
	return &schemaOrRef, nil
}
