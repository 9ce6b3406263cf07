// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/z5labs/loam/app"
	"github.com/z5labs/loam/config"
)

// Server holds the tunables of an [http.Server].
type Server struct {
	Listener                     config.Reader[net.Listener]
	DisableGeneralOptionsHandler config.Reader[bool]
	ReadTimeout                  config.Reader[time.Duration]
	ReadHeaderTimeout            config.Reader[time.Duration]
	WriteTimeout                 config.Reader[time.Duration]
	IdleTimeout                  config.Reader[time.Duration]
	MaxHeaderBytes               config.Reader[int]
}

// ServerOption configures a [Server].
type ServerOption func(*Server)

// DisableGeneralOptionsHandler stops the server from replying to "OPTIONS *" itself.
func DisableGeneralOptionsHandler(disable config.Reader[bool]) ServerOption {
	return func(srv *Server) {
		srv.DisableGeneralOptionsHandler = disable
	}
}

// ReadTimeout bounds reading an entire request. Defaults to 5s.
func ReadTimeout(d config.Reader[time.Duration]) ServerOption {
	return func(srv *Server) {
		srv.ReadTimeout = d
	}
}

// ReadTimeoutFromEnv reads HTTP_READ_TIMEOUT.
func ReadTimeoutFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("HTTP_READ_TIMEOUT"))
}

// ReadHeaderTimeout bounds reading request headers. Defaults to 2s.
func ReadHeaderTimeout(d config.Reader[time.Duration]) ServerOption {
	return func(srv *Server) {
		srv.ReadHeaderTimeout = d
	}
}

// WriteTimeout bounds writing a response. Defaults to 10s.
func WriteTimeout(d config.Reader[time.Duration]) ServerOption {
	return func(srv *Server) {
		srv.WriteTimeout = d
	}
}

// WriteTimeoutFromEnv reads HTTP_WRITE_TIMEOUT.
func WriteTimeoutFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("HTTP_WRITE_TIMEOUT"))
}

// IdleTimeout bounds how long keep-alive connections wait for the next request. Defaults to 120s.
func IdleTimeout(d config.Reader[time.Duration]) ServerOption {
	return func(srv *Server) {
		srv.IdleTimeout = d
	}
}

// MaxHeaderBytes limits the size of request headers. Defaults to 1 MiB.
func MaxHeaderBytes(n config.Reader[int]) ServerOption {
	return func(srv *Server) {
		srv.MaxHeaderBytes = n
	}
}

// NewServer returns a [Server] serving on the listener read from ln.
func NewServer(ln config.Reader[net.Listener], options ...ServerOption) Server {
	srv := Server{
		Listener:                     ln,
		DisableGeneralOptionsHandler: config.EmptyReader[bool](),
		ReadTimeout:                  config.EmptyReader[time.Duration](),
		ReadHeaderTimeout:            config.EmptyReader[time.Duration](),
		WriteTimeout:                 config.EmptyReader[time.Duration](),
		IdleTimeout:                  config.EmptyReader[time.Duration](),
		MaxHeaderBytes:               config.EmptyReader[int](),
	}
	for _, option := range options {
		option(&srv)
	}
	return srv
}

// NewApp reads the listener and tunables of srv and returns an [App] serving h.
func NewApp(ctx context.Context, srv Server, h http.Handler) (*App, error) {
	ln, err := config.Read(ctx, srv.Listener)
	if err != nil {
		return nil, err
	}

	httpServer, err := newHTTPServer(ctx, srv, h)
	if err != nil {
		ln.Close()
		return nil, err
	}

	return &App{
		ln:  ln,
		srv: httpServer,
	}, nil
}

// Build returns a [app.Builder] for an [App] serving the handler built by b.
func Build(srv Server, b app.Builder[http.Handler]) app.Builder[*App] {
	return app.Bind(b, func(h http.Handler) app.Builder[*App] {
		return app.BuilderFunc[*App](func(ctx context.Context) (*App, error) {
			return NewApp(ctx, srv, h)
		})
	})
}

func newHTTPServer(ctx context.Context, srv Server, h http.Handler) (s *http.Server, err error) {
	s = &http.Server{Handler: h}

	s.DisableGeneralOptionsHandler, err = config.ReadOr(ctx, false, srv.DisableGeneralOptionsHandler)
	if err != nil {
		return nil, err
	}
	s.ReadTimeout, err = config.ReadOr(ctx, 5*time.Second, srv.ReadTimeout)
	if err != nil {
		return nil, err
	}
	s.ReadHeaderTimeout, err = config.ReadOr(ctx, 2*time.Second, srv.ReadHeaderTimeout)
	if err != nil {
		return nil, err
	}
	s.WriteTimeout, err = config.ReadOr(ctx, 10*time.Second, srv.WriteTimeout)
	if err != nil {
		return nil, err
	}
	s.IdleTimeout, err = config.ReadOr(ctx, 120*time.Second, srv.IdleTimeout)
	if err != nil {
		return nil, err
	}
	s.MaxHeaderBytes, err = config.ReadOr(ctx, 1<<20, srv.MaxHeaderBytes)
	if err != nil {
		return nil, err
	}
	return s, nil
}
