// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"errors"
)

// HookFunc runs once the inner [Runtime] has returned.
type HookFunc func(context.Context) error

// HookRegistry collects post-run hooks while a [Runtime] is being built.
type HookRegistry struct {
	hooks []HookFunc
}

// OnPostRun registers hook. Hooks run in registration order.
func (r *HookRegistry) OnPostRun(hook HookFunc) {
	r.hooks = append(r.hooks, hook)
}

// HookRuntime runs an inner [Runtime] followed by every registered hook.
// Every hook runs regardless of earlier failures and all errors are joined.
type HookRuntime struct {
	inner Runtime
	hooks []HookFunc
}

// Run implements the [Runtime] interface.
func (rt HookRuntime) Run(ctx context.Context) error {
	err := rt.inner.Run(ctx)

	for _, hook := range rt.hooks {
		err = errors.Join(err, hook(ctx))
	}
	return err
}

// WithHooks returns a [Builder] whose build func can register post-run hooks,
// e.g. stopping every server left on a bus:
//
//	app.WithHooks(func(ctx context.Context, h *app.HookRegistry) (*server.Server, error) {
//	    h.OnPostRun(bus.Default().Shutdown)
//	    return server.NewFactory(opts...).Create(ctx)
//	})
func WithHooks[T Runtime](f func(context.Context, *HookRegistry) (T, error)) Builder[HookRuntime] {
	return BuilderFunc[HookRuntime](func(ctx context.Context) (HookRuntime, error) {
		registry := &HookRegistry{}

		inner, err := f(ctx, registry)
		if err != nil {
			return HookRuntime{}, err
		}

		return HookRuntime{
			inner: inner,
			hooks: registry.hooks,
		}, nil
	})
}
