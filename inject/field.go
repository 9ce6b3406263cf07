// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package inject

import (
	"fmt"
	"reflect"
)

// TagKey is the struct tag key which marks raw context fields.
const TagKey = "loam"

// Field describes a context field of a resource struct.
type Field struct {
	Name  string
	Index []int

	// Type is the context type resolved for the field.
	Type reflect.Type

	// Proxy is true for [Context] fields and false for tagged fields.
	Proxy bool
}

// FieldError is returned by [Fields] for a malformed context field.
type FieldError struct {
	Struct reflect.Type
	Field  string
	Reason string
}

// Error implements the [error] interface.
func (e FieldError) Error() string {
	return fmt.Sprintf("inject: invalid context field %s.%s: %s", e.Struct, e.Field, e.Reason)
}

// Fields discovers the context fields of the struct type t, including
// those of embedded structs. A pointer to a struct is dereferenced.
func Fields(t reflect.Type) ([]Field, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("inject: expected a struct type but got: %s", t)
	}
	return fields(t, t, nil)
}

func fields(root, t reflect.Type, parent []int) ([]Field, error) {
	var fs []Field
	for i := range t.NumField() {
		sf := t.Field(i)
		index := append(append([]int(nil), parent...), i)

		isProxy := sf.Type.Implements(proxyType)
		tagged := sf.Tag.Get(TagKey) == "context"

		switch {
		case isProxy && tagged:
			return nil, FieldError{Struct: root, Field: sf.Name, Reason: "context proxies must not be tagged"}
		case isProxy && sf.Type.Kind() != reflect.Struct:
			return nil, FieldError{Struct: root, Field: sf.Name, Reason: "context proxies must not be pointers"}
		case (isProxy || tagged) && !sf.IsExported():
			return nil, FieldError{Struct: root, Field: sf.Name, Reason: "context fields must be exported"}
		case isProxy:
			ct := reflect.Zero(sf.Type).Interface().(proxy).contextType()
			fs = append(fs, Field{Name: sf.Name, Index: index, Type: ct, Proxy: true})
		case tagged:
			fs = append(fs, Field{Name: sf.Name, Index: index, Type: sf.Type})
		case sf.Anonymous && sf.Type.Kind() == reflect.Struct:
			nested, err := fields(root, sf.Type, index)
			if err != nil {
				return nil, err
			}
			fs = append(fs, nested...)
		}
	}
	return fs, nil
}
