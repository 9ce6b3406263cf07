// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// App is an [http.Server] bound to a listener. It can be started and
// stopped explicitly or run until its context is cancelled.
type App struct {
	ln  net.Listener
	srv *http.Server

	mu       sync.Mutex
	started  bool
	stopped  bool
	done     chan struct{}
	serveErr error
}

// Addr returns the address the listener is bound to.
func (a *App) Addr() net.Addr {
	return a.ln.Addr()
}

// Serving reports whether the server has been started and not yet stopped.
func (a *App) Serving() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.started && !a.stopped
}

// Start begins serving in the background. Calling Start on a running
// server is a no-op and a stopped server can not be restarted.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return http.ErrServerClosed
	}
	if a.started {
		return nil
	}
	a.started = true
	a.done = make(chan struct{})

	p := pool.New().WithErrors()
	p.Go(func() error {
		return a.srv.Serve(a.ln)
	})

	go func() {
		defer close(a.done)

		err := p.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		a.serveErr = err
	}()
	return nil
}

// Stop gracefully shuts the server down and waits for serving to end.
// A server which was never started just has its listener closed.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	started := a.started
	a.mu.Unlock()

	if !started {
		err := a.ln.Close()
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	}

	shutdownErr := a.srv.Shutdown(ctx)
	<-a.done
	return errors.Join(shutdownErr, a.serveErr)
}

// Run starts the server and blocks until ctx is cancelled or serving fails.
// The server is always stopped before Run returns.
func (a *App) Run(ctx context.Context) error {
	err := a.Start(ctx)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-a.done:
	}
	return a.Stop(context.Background())
}
