// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/z5labs/loam/app"
	"github.com/z5labs/loam/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
}

func listen(t *testing.T) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func TestNewApp(t *testing.T) {
	t.Run("will apply default tunables", func(t *testing.T) {
		a, err := NewApp(context.Background(), NewServer(config.ReaderOf(listen(t))), okHandler())
		require.NoError(t, err)
		defer a.Stop(context.Background())

		require.Equal(t, 5*time.Second, a.srv.ReadTimeout)
		require.Equal(t, 2*time.Second, a.srv.ReadHeaderTimeout)
		require.Equal(t, 10*time.Second, a.srv.WriteTimeout)
		require.Equal(t, 120*time.Second, a.srv.IdleTimeout)
		require.Equal(t, 1<<20, a.srv.MaxHeaderBytes)
		require.False(t, a.srv.DisableGeneralOptionsHandler)
	})

	t.Run("will apply configured tunables", func(t *testing.T) {
		srv := NewServer(
			config.ReaderOf(listen(t)),
			DisableGeneralOptionsHandler(config.ReaderOf(true)),
			ReadTimeout(config.ReaderOf(time.Second)),
			ReadHeaderTimeout(config.ReaderOf(time.Second)),
			WriteTimeout(config.ReaderOf(3*time.Second)),
			IdleTimeout(config.ReaderOf(time.Minute)),
			MaxHeaderBytes(config.ReaderOf(4096)),
		)

		a, err := NewApp(context.Background(), srv, okHandler())
		require.NoError(t, err)
		defer a.Stop(context.Background())

		require.True(t, a.srv.DisableGeneralOptionsHandler)
		require.Equal(t, time.Second, a.srv.ReadTimeout)
		require.Equal(t, time.Second, a.srv.ReadHeaderTimeout)
		require.Equal(t, 3*time.Second, a.srv.WriteTimeout)
		require.Equal(t, time.Minute, a.srv.IdleTimeout)
		require.Equal(t, 4096, a.srv.MaxHeaderBytes)
	})

	t.Run("will fail", func(t *testing.T) {
		t.Run("if no listener is configured", func(t *testing.T) {
			_, err := NewApp(context.Background(), NewServer(config.EmptyReader[net.Listener]()), okHandler())
			require.ErrorIs(t, err, config.ErrValueNotSet)
		})

		t.Run("if a tunable can not be parsed", func(t *testing.T) {
			t.Setenv("HTTP_READ_TIMEOUT", "soon")

			srv := NewServer(config.ReaderOf(listen(t)), ReadTimeout(ReadTimeoutFromEnv()))
			_, err := NewApp(context.Background(), srv, okHandler())
			require.Error(t, err)
		})
	})
}

func TestBuild(t *testing.T) {
	t.Run("will return the handler build error", func(t *testing.T) {
		buildErr := errors.New("no routes")
		b := Build(NewServer(config.ReaderOf(listen(t))), app.BuilderFunc[http.Handler](func(ctx context.Context) (http.Handler, error) {
			return nil, buildErr
		}))

		_, err := b.Build(context.Background())
		require.ErrorIs(t, err, buildErr)
	})
}

func TestApp(t *testing.T) {
	t.Run("will serve requests between Start and Stop", func(t *testing.T) {
		a, err := NewApp(context.Background(), NewServer(config.ReaderOf(listen(t))), okHandler())
		require.NoError(t, err)
		require.False(t, a.Serving())

		require.NoError(t, a.Start(context.Background()))
		require.NoError(t, a.Start(context.Background()))
		require.True(t, a.Serving())

		resp, err := http.Get("http://" + a.Addr().String())
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		require.Equal(t, "ok", string(body))

		require.NoError(t, a.Stop(context.Background()))
		require.False(t, a.Serving())
		require.NoError(t, a.Stop(context.Background()))

		err = a.Start(context.Background())
		require.ErrorIs(t, err, http.ErrServerClosed)
	})

	t.Run("will release the listener", func(t *testing.T) {
		t.Run("if it is stopped without being started", func(t *testing.T) {
			ln := listen(t)
			a, err := NewApp(context.Background(), NewServer(config.ReaderOf(ln)), okHandler())
			require.NoError(t, err)

			require.NoError(t, a.Stop(context.Background()))

			_, err = ln.Accept()
			require.ErrorIs(t, err, net.ErrClosed)
		})
	})

	t.Run("will return from Run", func(t *testing.T) {
		t.Run("if the context is cancelled", func(t *testing.T) {
			a, err := NewApp(context.Background(), NewServer(config.ReaderOf(listen(t))), okHandler())
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() {
				errCh <- a.Run(ctx)
			}()

			require.Eventually(t, a.Serving, time.Second, 10*time.Millisecond)
			cancel()

			select {
			case err := <-errCh:
				require.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("Run did not return")
			}
		})

		t.Run("if serving fails", func(t *testing.T) {
			ln := listen(t)
			a, err := NewApp(context.Background(), NewServer(config.ReaderOf(ln)), okHandler())
			require.NoError(t, err)
			ln.Close()

			err = a.Run(context.Background())
			require.Error(t, err)
		})
	})
}
