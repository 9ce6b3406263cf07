// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package bus holds the runtime state shared by every server of a process.
package bus

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"sync"

	"github.com/z5labs/loam/concurrent"
	"github.com/z5labs/loam/config"
	loamhttp "github.com/z5labs/loam/http"
	"github.com/z5labs/loam/provider"

	"golang.org/x/sync/errgroup"
)

// DestinationFactory opens the network listener an endpoint is served on.
type DestinationFactory interface {
	Listen(ctx context.Context, u *url.URL) (net.Listener, error)
}

// DestinationFactoryFunc is a func type of the [DestinationFactory] interface.
type DestinationFactoryFunc func(context.Context, *url.URL) (net.Listener, error)

// Listen implements the [DestinationFactory] interface.
func (f DestinationFactoryFunc) Listen(ctx context.Context, u *url.URL) (net.Listener, error) {
	return f(ctx, u)
}

// NoDestinationFactoryError is returned for an address whose scheme has no [DestinationFactory].
type NoDestinationFactoryError struct {
	Scheme string
}

// Error implements the [error] interface.
func (e NoDestinationFactoryError) Error() string {
	return fmt.Sprintf("bus: no destination factory for scheme: %q", e.Scheme)
}

// Server is a running endpoint managed by a [Bus].
type Server interface {
	ID() string
	Address() string
	Stop(context.Context) error
}

// Bus is the shared runtime state: provider registries by address,
// destination factories by scheme and the registered servers.
type Bus struct {
	registries *concurrent.Cache[string, *provider.Registry]
	servers    *concurrent.Cache[string, Server]

	mu           sync.RWMutex
	destinations map[string]DestinationFactory
}

// Option configures a [Bus].
type Option func(*Bus)

// WithDestinationFactory registers df for URL scheme, replacing any existing factory.
func WithDestinationFactory(scheme string, df DestinationFactory) Option {
	return func(b *Bus) {
		b.destinations[scheme] = df
	}
}

// WithTLS serves the https scheme with the TLS config read from cfg.
func WithTLS(cfg config.Reader[*tls.Config]) Option {
	return WithDestinationFactory("https", TLSDestination(cfg))
}

// New returns a [Bus] serving the http scheme over TCP.
func New(opts ...Option) *Bus {
	b := &Bus{
		registries: concurrent.NewCache[string, *provider.Registry](),
		servers:    concurrent.NewCache[string, Server](),
		destinations: map[string]DestinationFactory{
			"http": DestinationFactoryFunc(listenTCP),
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var (
	defaultOnce sync.Once
	defaultBus  *Bus
)

// Default returns the process wide [Bus].
func Default() *Bus {
	defaultOnce.Do(func() {
		defaultBus = New()
	})
	return defaultBus
}

func listenTCP(ctx context.Context, u *url.URL) (net.Listener, error) {
	ln := loamhttp.NewTCPListener(loamhttp.Addr(config.ReaderOf(u.Host)))
	return config.Read(ctx, ln)
}

// TLSDestination returns a [DestinationFactory] which listens on TCP and
// wraps the listener with the TLS config read from cfg.
func TLSDestination(cfg config.Reader[*tls.Config]) DestinationFactory {
	return DestinationFactoryFunc(func(ctx context.Context, u *url.URL) (net.Listener, error) {
		tcpLn := loamhttp.NewTCPListener(loamhttp.Addr(config.ReaderOf(u.Host)))
		return config.Read(ctx, loamhttp.TLSListener(tcpLn, cfg))
	})
}

// Registry returns the provider registry of address, creating it on first use.
func (b *Bus) Registry(address string) *provider.Registry {
	reg, _ := b.registries.GetOr(address, func() (*provider.Registry, error) {
		return provider.NewRegistry(), nil
	})
	return reg
}

// SetDestinationFactory registers df for URL scheme, replacing any existing factory.
func (b *Bus) SetDestinationFactory(scheme string, df DestinationFactory) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.destinations[scheme] = df
}

// DestinationFactory returns the factory for URL scheme.
func (b *Bus) DestinationFactory(scheme string) (DestinationFactory, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	df, ok := b.destinations[scheme]
	if !ok {
		return nil, NoDestinationFactoryError{Scheme: scheme}
	}
	return df, nil
}

// Register adds s to the managed servers.
func (b *Bus) Register(s Server) {
	b.servers.Set(s.ID(), s)
}

// Unregister removes s from the managed servers and reports whether it was registered.
func (b *Bus) Unregister(s Server) bool {
	return b.servers.Delete(s.ID())
}

// Servers returns every managed server in no particular order.
func (b *Bus) Servers() []Server {
	return b.servers.Values()
}

// Shutdown stops every managed server concurrently and unregisters them.
func (b *Bus) Shutdown(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)
	for _, s := range b.Servers() {
		eg.Go(func() error {
			defer b.Unregister(s)
			return s.Stop(egctx)
		})
	}
	return eg.Wait()
}
