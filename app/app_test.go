// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBind(t *testing.T) {
	t.Run("will not call the binder", func(t *testing.T) {
		t.Run("if the first builder fails", func(t *testing.T) {
			buildErr := errors.New("failed to build")
			called := false

			b := Bind(
				BuilderFunc[int](func(ctx context.Context) (int, error) {
					return 0, buildErr
				}),
				func(n int) Builder[string] {
					called = true
					return nil
				},
			)

			_, err := b.Build(context.Background())
			require.ErrorIs(t, err, buildErr)
			require.False(t, called)
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the binder panics", func(t *testing.T) {
			panicErr := errors.New("missing value")
			b := Bind(
				BuilderFunc[int](func(ctx context.Context) (int, error) {
					return 0, nil
				}),
				func(n int) Builder[int] {
					panic(panicErr)
				},
			)

			_, err := b.Build(context.Background())
			require.ErrorIs(t, err, panicErr)
		})
	})

	t.Run("will pass the first value to the binder", func(t *testing.T) {
		b := Bind(
			BuilderFunc[int](func(ctx context.Context) (int, error) {
				return 8080, nil
			}),
			func(port int) Builder[int] {
				return BuilderFunc[int](func(ctx context.Context) (int, error) {
					return port + 1, nil
				})
			},
		)

		v, err := b.Build(context.Background())
		require.NoError(t, err)
		require.Equal(t, 8081, v)
	})
}

func TestRun(t *testing.T) {
	t.Run("will return the build error", func(t *testing.T) {
		t.Run("if the builder fails", func(t *testing.T) {
			buildErr := errors.New("bad config")

			err := Run(context.Background(), BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
				return nil, buildErr
			}))
			require.ErrorIs(t, err, buildErr)

			var berr BuildError
			require.ErrorAs(t, err, &berr)
		})
	})

	t.Run("will return the runtime error", func(t *testing.T) {
		runErr := errors.New("listener closed")

		err := Run(context.Background(), BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
			return RuntimeFunc(func(ctx context.Context) error {
				return runErr
			}), nil
		}))
		require.ErrorIs(t, err, runErr)

		var berr BuildError
		require.False(t, errors.As(err, &berr))
	})

	t.Run("will return nil", func(t *testing.T) {
		t.Run("if the runtime stops because the parent was cancelled", func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			stopped := false
			err := Run(ctx, BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
				return RuntimeFunc(func(ctx context.Context) error {
					<-ctx.Done()
					stopped = true
					return ctx.Err()
				}), nil
			}))
			require.NoError(t, err)
			require.True(t, stopped)
		})
	})
}

func TestLogError(t *testing.T) {
	t.Run("will not log anything", func(t *testing.T) {
		t.Run("if the error is nil", func(t *testing.T) {
			var buf bytes.Buffer
			LogError(slog.NewJSONHandler(&buf, nil), nil)
			require.Zero(t, buf.Len())
		})
	})

	t.Run("will log the error", func(t *testing.T) {
		var buf bytes.Buffer
		LogError(slog.NewJSONHandler(&buf, nil), errors.New("boom"))
		require.Contains(t, buf.String(), "boom")
		require.Contains(t, buf.String(), "application failed")
	})

	t.Run("will report a build failure", func(t *testing.T) {
		t.Run("if the error is a BuildError", func(t *testing.T) {
			var buf bytes.Buffer
			LogError(slog.NewJSONHandler(&buf, nil), BuildError{Cause: errors.New("bad config")})
			require.Contains(t, buf.String(), "failed to build application")
			require.Contains(t, buf.String(), "bad config")
		})
	})
}
