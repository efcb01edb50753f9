package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry owns a set of named stores and their cancellation table.
// Registries are independent; nothing is shared between them.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]*Store

	cancels    *CancelRegistry
	logger     *slog.Logger
	middleware []Middleware
	strict     bool
	baseCtx    context.Context
	newID      func() string
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMiddleware appends middleware run around every dispatch.
func WithMiddleware(mw ...Middleware) Option {
	return func(r *Registry) {
		r.middleware = append(r.middleware, mw...)
	}
}

// WithStrictResults disables the key-overlap heuristic: only Delta results
// and rejections are merged as deltas, every other result is stored as the
// action's data.
func WithStrictResults() Option {
	return func(r *Registry) {
		r.strict = true
	}
}

// WithContext sets the context used when Dispatch is given a nil context.
func WithContext(ctx context.Context) Option {
	return func(r *Registry) {
		if ctx != nil {
			r.baseCtx = ctx
		}
	}
}

// WithIDGenerator replaces the generator of Call.ID values.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		stores:  make(map[string]*Store),
		logger:  slog.Default().With("component", "store"),
		baseCtx: context.Background(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cancels = NewCancelRegistry(r.logger)
	return r
}

// Create builds a registry and registers decls in one step.
func Create(decls Declarations, opts ...Option) (*Registry, error) {
	r := New(opts...)
	if err := r.Register(decls); err != nil {
		return nil, err
	}
	return r, nil
}

// Register compiles and adds the declared stores. Either all stores are
// added or none is.
func (r *Registry) Register(decls Declarations) error {
	names := make([]string, 0, len(decls))
	for name := range decls {
		names = append(names, name)
	}
	sort.Strings(names)

	compiled := make(map[string][]field, len(decls))
	for _, name := range names {
		if name == "" {
			return fmt.Errorf("%w: empty store name", ErrInvalidDeclaration)
		}
		fields, err := decls[name].compile()
		if err != nil {
			return fmt.Errorf("store %q: %w", name, err)
		}
		compiled[name] = fields
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if _, exists := r.stores[name]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateStore, name)
		}
	}
	for _, name := range names {
		r.stores[name] = newStore(r, name, compiled[name])
		r.cancels.addStore(name)
		r.logger.Debug("store registered", "store", name, "fields", len(compiled[name]))
	}
	return nil
}

// Store returns the named store or a *StoreNotFoundError.
func (r *Registry) Store(name string) (*Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[name]
	if !ok {
		return nil, &StoreNotFoundError{Name: name}
	}
	return s, nil
}

// MustStore is like Store but panics if the store is not declared.
func (r *Registry) MustStore(name string) *Store {
	s, err := r.Store(name)
	if err != nil {
		panic(err)
	}
	return s
}

// Names returns the registered store names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cancellations returns the registry's cancellation table.
func (r *Registry) Cancellations() *CancelRegistry {
	return r.cancels
}

// Logger returns the registry logger.
func (r *Registry) Logger() *slog.Logger {
	return r.logger
}
