package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Scope makes a job's credential overrides visible to fn, and only to fn.
type Scope interface {
	Run(ctx context.Context, settings Settings, fn func(ctx context.Context) error) error
}

// EnvGuard applies overrides to a shared Store for the duration of fn.
//
// Every call holds one mutex across patch, fn and restore, so two pipeline
// executions never overlap while the store may hold another job's values.
// Calls without overrides take the lock too: they read the same store.
type EnvGuard struct {
	mu    sync.Mutex
	store Store
}

// NewEnvGuard creates an EnvGuard over store.
func NewEnvGuard(store Store) *EnvGuard {
	return &EnvGuard{store: store}
}

// Run implements Scope. The store is restored on every exit path, including
// when fn fails or panics; keys that were absent before are removed again.
func (g *EnvGuard) Run(ctx context.Context, settings Settings, fn func(ctx context.Context) error) (err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	restore, patchErr := g.patch(settings.EnvVars())
	defer func() {
		if restoreErr := restore(); restoreErr != nil {
			err = errors.Join(err, restoreErr)
		}
	}()
	if patchErr != nil {
		return patchErr
	}

	return fn(ctx)
}

type savedValue struct {
	value   string
	present bool
}

// patch sets vars on the store and returns a function undoing exactly what was set.
func (g *EnvGuard) patch(vars map[string]string) (func() error, error) {
	saved := make(map[string]savedValue, len(vars))

	restore := func() error {
		var errs []error
		for key, orig := range saved {
			var err error
			if orig.present {
				err = g.store.Set(key, orig.value)
			} else {
				err = g.store.Unset(key)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("failed to restore %s: %w", key, err))
			}
		}
		return errors.Join(errs...)
	}

	for key, value := range vars {
		orig, present := g.store.Lookup(key)
		saved[key] = savedValue{value: orig, present: present}
		if err := g.store.Set(key, value); err != nil {
			return restore, fmt.Errorf("failed to apply %s: %w", key, err)
		}
	}

	return restore, nil
}

type settingsKey struct{}

// ContextScope passes overrides explicitly on the context. It needs no lock and
// never touches shared state; the pipeline adapter must resolve credentials with
// Resolve for it to take effect.
type ContextScope struct{}

// Run implements Scope.
func (ContextScope) Run(ctx context.Context, settings Settings, fn func(ctx context.Context) error) error {
	return fn(WithSettings(ctx, settings))
}

// WithSettings returns a copy of ctx carrying settings.
func WithSettings(ctx context.Context, settings Settings) context.Context {
	return context.WithValue(ctx, settingsKey{}, settings)
}

// SettingsFromContext returns the settings attached by ContextScope, if any.
func SettingsFromContext(ctx context.Context) (Settings, bool) {
	s, ok := ctx.Value(settingsKey{}).(Settings)
	return s, ok
}

// Resolve returns the endpoint for role: ambient values from store, with any
// non-empty context overrides applied on top.
func Resolve(ctx context.Context, store Store, role Role) Endpoint {
	ep := FromStore(store).endpoint(role)

	override, ok := SettingsFromContext(ctx)
	if !ok {
		return ep
	}
	o := override.endpoint(role)
	if o.Model != "" {
		ep.Model = o.Model
	}
	if o.BaseURL != "" {
		ep.BaseURL = o.BaseURL
	}
	if o.APIKey != "" {
		ep.APIKey = o.APIKey
	}
	return ep
}
