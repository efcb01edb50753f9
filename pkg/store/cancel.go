package store

import (
	"context"
	"log/slog"
	"sync"
)

// CancelRegistry holds, per store and async action, the function that
// cancels the call currently in flight.
type CancelRegistry struct {
	mu     sync.Mutex
	tokens map[string]map[string]*cancelEntry
	logger *slog.Logger
}

type cancelEntry struct {
	fn    func()
	owner uint64 // dispatch sequence that registered fn, 0 for external
}

// NewCancelRegistry creates an empty registry. A nil logger uses
// slog.Default.
func NewCancelRegistry(logger *slog.Logger) *CancelRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &CancelRegistry{
		tokens: make(map[string]map[string]*cancelEntry),
		logger: logger,
	}
}

// addStore makes storeName known to the registry.
func (r *CancelRegistry) addStore(storeName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[storeName]; !ok {
		r.tokens[storeName] = make(map[string]*cancelEntry)
	}
}

// Register stores fn as the cancel function of the current call of
// storeName.actionName, replacing any previous one without calling it.
func (r *CancelRegistry) Register(storeName, actionName string, fn func()) {
	r.set(storeName, actionName, fn, 0)
}

func (r *CancelRegistry) set(storeName, actionName string, fn func(), owner uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions, ok := r.tokens[storeName]
	if !ok {
		r.logger.Warn("store: cancel registration for unknown store",
			"store", storeName,
			"action", actionName,
		)
		return false
	}
	actions[actionName] = &cancelEntry{fn: fn, owner: owner}
	return true
}

// Cancel calls the registered cancel function, if any, and clears the slot.
// It reports whether a function was called. A second Cancel is a no-op.
func (r *CancelRegistry) Cancel(storeName, actionName string) bool {
	r.mu.Lock()
	actions, ok := r.tokens[storeName]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("store: cancel for unknown store",
			"store", storeName,
			"action", actionName,
		)
		return false
	}
	entry := actions[actionName]
	delete(actions, actionName)
	r.mu.Unlock()

	if entry == nil || entry.fn == nil {
		return false
	}
	entry.fn()
	return true
}

// Clear drops the registered cancel function without calling it.
func (r *CancelRegistry) Clear(storeName, actionName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if actions, ok := r.tokens[storeName]; ok {
		delete(actions, actionName)
	}
}

// replace registers fn for dispatch seq and returns the cancel function it
// displaced, which the caller must invoke.
func (r *CancelRegistry) replace(storeName, actionName string, fn func(), seq uint64) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions, ok := r.tokens[storeName]
	if !ok {
		return nil
	}
	prev := actions[actionName]
	actions[actionName] = &cancelEntry{fn: fn, owner: seq}
	if prev == nil {
		return nil
	}
	return prev.fn
}

// clearOwned drops the entry only if it was registered by dispatch seq.
func (r *CancelRegistry) clearOwned(storeName, actionName string, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions, ok := r.tokens[storeName]
	if !ok {
		return
	}
	if entry := actions[actionName]; entry != nil && entry.owner == seq {
		delete(actions, actionName)
	}
}

// attach adds fn to the entry owned by dispatch seq. It reports false when
// the entry belongs to another call or has already been cancelled.
func (r *CancelRegistry) attach(storeName, actionName string, seq uint64, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.tokens[storeName][actionName]
	if entry == nil || entry.owner != seq {
		return false
	}
	prev := entry.fn
	entry.fn = func() {
		fn()
		if prev != nil {
			prev()
		}
	}
	return true
}

// Pending reports whether a cancel function is registered for the action.
func (r *CancelRegistry) Pending(storeName, actionName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens[storeName][actionName] != nil
}

// SetupCancelToken derives a cancellable context from parent and registers
// its cancel function for storeName.actionName. Pass the returned context
// to the transport call. Unknown stores log a warning and get parent back.
//
// When parent belongs to the dispatch of that same action, the cancel
// function joins the dispatch's own entry instead of replacing it, and the
// returned context is already done if the dispatch was cancelled.
func (r *CancelRegistry) SetupCancelToken(parent context.Context, storeName, actionName string) context.Context {
	ctx, cancel := context.WithCancel(parent)
	if tok, ok := parent.Value(callKey{}).(*callToken); ok && tok.registry == r &&
		tok.call.Store == storeName && tok.call.Action == actionName {
		if parent.Err() != nil || !r.attach(storeName, actionName, tok.call.Seq, cancel) {
			cancel()
		}
		return ctx
	}
	if !r.set(storeName, actionName, cancel, 0) {
		cancel()
		return parent
	}
	return ctx
}

// callKey carries the dispatch identity in the context passed to an
// AsyncFunc.
type callKey struct{}

type callToken struct {
	registry *CancelRegistry
	call     *Call
}

// SetupCancel attaches fn to the cancel slot of the async call running
// under ctx, so that cancelling or superseding the call also calls fn.
// Use it for transports that do not observe ctx. It reports false, after
// calling fn, when the call is already cancelled, and false without calling
// fn when ctx does not belong to a dispatch.
func SetupCancel(ctx context.Context, fn func()) bool {
	tok, ok := ctx.Value(callKey{}).(*callToken)
	if !ok || fn == nil {
		return false
	}
	if ctx.Err() == nil && tok.registry.attach(tok.call.Store, tok.call.Action, tok.call.Seq, fn) {
		return true
	}
	fn()
	return false
}

// CallFromContext returns the dispatch running under ctx, if any.
func CallFromContext(ctx context.Context) (*Call, bool) {
	tok, ok := ctx.Value(callKey{}).(*callToken)
	if !ok {
		return nil, false
	}
	return tok.call, true
}
