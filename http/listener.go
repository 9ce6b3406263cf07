// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package http provides the network transport used to serve resources.
package http

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/z5labs/loam/config"
)

// DefaultAddr is used by [TCPListener] when no address is configured.
const DefaultAddr = ":8080"

// TCPListener reads a TCP [net.Listener] bound to Addr.
type TCPListener struct {
	Addr config.Reader[string]
}

// TCPListenerOption configures a [TCPListener].
type TCPListenerOption func(*TCPListener)

// Addr sets the "host:port" a [TCPListener] binds to.
func Addr(addr config.Reader[string]) TCPListenerOption {
	return func(tcpLn *TCPListener) {
		tcpLn.Addr = addr
	}
}

// AddrFromEnv reads the listen address from HTTP_ADDR.
func AddrFromEnv() config.Reader[string] {
	return config.Env("HTTP_ADDR")
}

// NewTCPListener returns a [TCPListener] which binds to [DefaultAddr] unless configured otherwise.
func NewTCPListener(options ...TCPListenerOption) TCPListener {
	tcpLn := TCPListener{
		Addr: config.EmptyReader[string](),
	}
	for _, option := range options {
		option(&tcpLn)
	}
	return tcpLn
}

// Read implements the [config.Reader] interface. Bind failures are
// returned as is, typically a [*net.OpError].
func (tcpLn TCPListener) Read(ctx context.Context) (config.Value[net.Listener], error) {
	addr, err := config.ReadOr(ctx, DefaultAddr, tcpLn.Addr)
	if err != nil {
		return config.Value[net.Listener]{}, err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return config.Value[net.Listener]{}, err
	}
	return config.ValueOf(ln), nil
}

// TLSListener wraps the listener read from ln with TLS.
func TLSListener(ln config.Reader[net.Listener], tlsConfig config.Reader[*tls.Config]) config.Reader[net.Listener] {
	return config.ReaderFunc[net.Listener](func(ctx context.Context) (config.Value[net.Listener], error) {
		baseLn, err := config.Read(ctx, ln)
		if err != nil {
			return config.Value[net.Listener]{}, err
		}

		cfg, err := config.Read(ctx, tlsConfig)
		if err != nil {
			baseLn.Close()
			return config.Value[net.Listener]{}, err
		}
		return config.ValueOf(tls.NewListener(baseLn, cfg)), nil
	})
}
