// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/z5labs/sdk-go/try"
	"gopkg.in/yaml.v3"
)

// ReadFile opens the file at path. A missing file produces an unset value
// so that optional config files can be combined with [Or] and [Default].
func ReadFile(path string) Reader[*os.File] {
	return ReaderFunc[*os.File](func(ctx context.Context) (Value[*os.File], error) {
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			return Value[*os.File]{}, nil
		}
		if err != nil {
			return Value[*os.File]{}, err
		}
		return ValueOf(f), nil
	})
}

// UnmarshalJSON decodes the JSON document produced by r into a T.
// The document is closed after decoding if it implements [io.Closer].
func UnmarshalJSON[T any, R io.Reader](r Reader[R]) Reader[T] {
	return decode[T](r, func(rd io.Reader, v any) error {
		return json.NewDecoder(rd).Decode(v)
	})
}

// UnmarshalYAML decodes the YAML document produced by r into a T.
// The document is closed after decoding if it implements [io.Closer].
func UnmarshalYAML[T any, R io.Reader](r Reader[R]) Reader[T] {
	return decode[T](r, func(rd io.Reader, v any) error {
		err := yaml.NewDecoder(rd).Decode(v)
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	})
}

func decode[T any, R io.Reader](r Reader[R], f func(io.Reader, any) error) Reader[T] {
	return Bind(r, func(ctx context.Context, rd R) Reader[T] {
		return ReaderFunc[T](func(ctx context.Context) (_ Value[T], err error) {
			if c, ok := any(rd).(io.Closer); ok {
				defer try.Close(&err, c)
			}

			var t T
			err = f(rd, &t)
			if err != nil {
				return Value[T]{}, err
			}
			return ValueOf(t), nil
		})
	})
}
