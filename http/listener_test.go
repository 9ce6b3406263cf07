// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/z5labs/loam/config"
)

func TestTCPListener_Read(t *testing.T) {
	t.Run("will bind to the configured address", func(t *testing.T) {
		tcpLn := NewTCPListener(Addr(config.ReaderOf("127.0.0.1:0")))

		ln, err := config.Read(context.Background(), tcpLn)
		require.NoError(t, err)
		defer ln.Close()

		require.Contains(t, ln.Addr().String(), "127.0.0.1:")
	})

	t.Run("will return a net.OpError", func(t *testing.T) {
		t.Run("if the address is already in use", func(t *testing.T) {
			taken, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)
			defer taken.Close()

			tcpLn := NewTCPListener(Addr(config.ReaderOf(taken.Addr().String())))

			_, err = config.Read(context.Background(), tcpLn)

			var opErr *net.OpError
			require.ErrorAs(t, err, &opErr)
		})
	})

	t.Run("will return the address read error", func(t *testing.T) {
		readErr := errors.New("no address")
		tcpLn := NewTCPListener(Addr(config.ReaderFunc[string](func(ctx context.Context) (config.Value[string], error) {
			return config.Value[string]{}, readErr
		})))

		_, err := config.Read(context.Background(), tcpLn)
		require.ErrorIs(t, err, readErr)
	})
}

func TestTLSListener(t *testing.T) {
	t.Run("will wrap the base listener", func(t *testing.T) {
		base, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer base.Close()

		ln, err := config.Read(context.Background(), TLSListener(
			config.ReaderOf(base),
			config.ReaderOf(&tls.Config{MinVersion: tls.VersionTLS12}),
		))
		require.NoError(t, err)
		require.Equal(t, base.Addr(), ln.Addr())
	})

	t.Run("will fail", func(t *testing.T) {
		t.Run("if no tls config is set", func(t *testing.T) {
			base, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)

			_, err = config.Read(context.Background(), TLSListener(
				config.ReaderOf(base),
				config.EmptyReader[*tls.Config](),
			))
			require.ErrorIs(t, err, config.ErrValueNotSet)
		})
	})
}
