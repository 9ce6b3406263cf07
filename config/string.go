// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"
)

// Env reads the environment variable named key. The value is unset
// if the variable is not present.
func Env(key string) Reader[string] {
	return ReaderFunc[string](func(ctx context.Context) (Value[string], error) {
		v, ok := os.LookupEnv(key)
		if !ok {
			return Value[string]{}, nil
		}
		return ValueOf(v), nil
	})
}

// BoolFromString parses the value of r with [strconv.ParseBool].
func BoolFromString(r Reader[string]) Reader[bool] {
	return Map(r, func(_ context.Context, s string) (bool, error) {
		return strconv.ParseBool(s)
	})
}

// IntFromString parses the value of r with [strconv.Atoi].
func IntFromString(r Reader[string]) Reader[int] {
	return Map(r, func(_ context.Context, s string) (int, error) {
		return strconv.Atoi(s)
	})
}

// Int64FromString parses the value of r as a base 10 int64.
func Int64FromString(r Reader[string]) Reader[int64] {
	return Map(r, func(_ context.Context, s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
}

// Float64FromString parses the value of r as a float64.
func Float64FromString(r Reader[string]) Reader[float64] {
	return Map(r, func(_ context.Context, s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// DurationFromString parses the value of r with [time.ParseDuration].
func DurationFromString(r Reader[string]) Reader[time.Duration] {
	return Map(r, func(_ context.Context, s string) (time.Duration, error) {
		return time.ParseDuration(s)
	})
}

// StringMapFromString parses a comma separated list of key=value pairs,
// e.g. "json=application/json,xml=application/xml".
func StringMapFromString(r Reader[string]) Reader[map[string]string] {
	return Map(r, func(_ context.Context, s string) (map[string]string, error) {
		m := make(map[string]string)
		for _, pair := range strings.Split(s, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}

			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, InvalidPairError{Pair: pair}
			}
			m[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
		return m, nil
	})
}

// StringsFromString splits a comma separated list, dropping empty entries.
func StringsFromString(r Reader[string]) Reader[[]string] {
	return Map(r, func(_ context.Context, s string) ([]string, error) {
		var ss []string
		for _, el := range strings.Split(s, ",") {
			el = strings.TrimSpace(el)
			if el == "" {
				continue
			}
			ss = append(ss, el)
		}
		return ss, nil
	})
}

// InvalidPairError is returned by [StringMapFromString] for an entry missing "=".
type InvalidPairError struct {
	Pair string
}

// Error implements the [error] interface.
func (e InvalidPairError) Error() string {
	return "config: invalid key=value pair: " + e.Pair
}
