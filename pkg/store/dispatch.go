package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

// =============================================================================
// Sync actions
// =============================================================================

// SyncAction is a synchronous action bound to a store.
type SyncAction struct {
	store *Store
	name  string
	fn    SyncFunc
}

// Name returns the action name.
func (a *SyncAction) Name() string {
	return a.name
}

// Dispatch runs the action and applies its result. A Thunk result is
// evaluated against the current state. Panics in the action propagate to
// the caller.
func (a *SyncAction) Dispatch(args ...any) Outcome {
	return a.DispatchContext(a.store.reg.baseCtx, args...)
}

// DispatchContext is like Dispatch; ctx is handed to the middleware chain.
func (a *SyncAction) DispatchContext(ctx context.Context, args ...any) Outcome {
	reg := a.store.reg
	call := &Call{
		ID:      reg.newID(),
		Store:   a.store.name,
		Action:  a.name,
		Kind:    FieldSync,
		Args:    args,
		Started: time.Now(),
	}
	return composeMiddleware(ctx, call, reg.middleware, func(context.Context) Outcome {
		return a.run(args)
	})
}

func (a *SyncAction) run(args []any) Outcome {
	var delta Delta
	switch r := a.fn(args...).(type) {
	case nil:
		return Outcome{Status: StatusNoop}
	case Delta:
		delta = r
	case Thunk:
		if r == nil {
			return Outcome{Status: StatusNoop}
		}
		delta = r(a.store.State())
	}
	if delta == nil {
		return Outcome{Status: StatusNoop}
	}

	a.store.commit(func(st State) Delta {
		return Merge(st, delta, "")
	})
	return Outcome{Status: StatusApplied}
}

// =============================================================================
// Async actions
// =============================================================================

// AsyncAction is an asynchronous action bound to a store. It exposes the
// action's Slot alongside dispatch, reset and cancel.
type AsyncAction struct {
	store *Store
	name  string
	fn    AsyncFunc

	// mu orders dispatch starts against settlements.
	mu  sync.Mutex
	seq uint64
}

// Name returns the action name.
func (a *AsyncAction) Name() string {
	return a.name
}

// Slot returns the action's current slot.
func (a *AsyncAction) Slot() Slot {
	slot, _ := a.store.State().Slot(a.name)
	return slot
}

// Data returns the data of the last successful call.
func (a *AsyncAction) Data() any {
	return a.Slot().Data
}

// Loading reports whether a call is in flight.
func (a *AsyncAction) Loading() bool {
	return a.Slot().Loading
}

// Error returns the error of the last failed call.
func (a *AsyncAction) Error() any {
	return a.Slot().Error
}

// Reset sets the slot back to its zero value. It does not cancel a call in
// flight.
func (a *AsyncAction) Reset() {
	a.store.commit(func(State) Delta {
		return Delta{a.name: Slot{}}
	})
}

// Cancel cancels the call in flight, if any. It reports whether a cancel
// function was called.
func (a *AsyncAction) Cancel() bool {
	return a.store.reg.cancels.Cancel(a.store.name, a.name)
}

// Dispatch starts the action. Any previous call of this action is
// cancelled and Loading is set before Dispatch returns. The action runs on
// its own goroutine under a context derived from ctx; a nil ctx uses the
// registry's base context.
func (a *AsyncAction) Dispatch(ctx context.Context, args ...any) *Future {
	reg := a.store.reg
	if ctx == nil {
		ctx = reg.baseCtx
	}

	a.mu.Lock()
	a.seq++
	seq := a.seq
	call := &Call{
		ID:      reg.newID(),
		Store:   a.store.name,
		Action:  a.name,
		Kind:    FieldAsync,
		Seq:     seq,
		Args:    args,
		Started: time.Now(),
	}
	callCtx, cancel := context.WithCancel(ctx)
	callCtx = context.WithValue(callCtx, callKey{}, &callToken{registry: reg.cancels, call: call})

	prev := reg.cancels.replace(a.store.name, a.name, cancel, seq)

	snap := a.store.apply(func(st State) Delta {
		slot, _ := st[a.name].(Slot)
		slot.Loading = true
		return Delta{a.name: slot}
	})
	a.mu.Unlock()

	// The previous call is cancelled before this one starts.
	if prev != nil {
		prev()
	}
	a.store.notify(snap)

	f := &Future{call: call, done: make(chan struct{})}
	go func() {
		defer cancel()
		outcome := composeMiddleware(callCtx, call, reg.middleware, func(ctx context.Context) Outcome {
			return a.execute(ctx, callCtx, args, seq)
		})
		f.resolve(outcome)
	}()
	return f
}

// Run dispatches the action and waits for it to settle. The returned error
// is non-nil only when ctx ends before the call settles.
func (a *AsyncAction) Run(ctx context.Context, args ...any) (Slot, error) {
	if ctx == nil {
		ctx = a.store.reg.baseCtx
	}
	f := a.Dispatch(ctx, args...)
	if _, err := f.Wait(ctx); err != nil {
		return a.Slot(), err
	}
	return a.Slot(), nil
}

// execute performs the call and settles the slot. callCtx is the context
// the dispatcher cancels; ctx may carry values added by middleware.
func (a *AsyncAction) execute(ctx, callCtx context.Context, args []any, seq uint64) Outcome {
	result, err := a.invoke(ctx, args)

	// Thunks run outside the store locks.
	state := a.store.State()
	if err == nil {
		if result, err = resolveGuarded(result, state); err != nil {
			result = nil
		}
	} else {
		var rej *Rejection
		if errors.As(err, &rej) {
			if v, perr := resolveGuarded(rej.Value, state); perr != nil {
				err = perr
			} else {
				err = &Rejection{Value: v}
			}
		}
	}
	cancelled := errors.Is(callCtx.Err(), context.Canceled)

	a.mu.Lock()
	if a.seq != seq {
		a.mu.Unlock()
		return Outcome{Status: StatusStale}
	}

	var outcome Outcome
	snap := a.store.apply(func(st State) Delta {
		var delta Delta
		delta, outcome = a.settle(st, result, err, cancelled)
		return delta
	})
	a.store.reg.cancels.clearOwned(a.store.name, a.name, seq)
	a.mu.Unlock()

	a.store.notify(snap)
	return outcome
}

// settle computes the slot update for a finished call.
func (a *AsyncAction) settle(st State, result any, err error, cancelled bool) (Delta, Outcome) {
	strict := a.store.reg.strict
	prev, _ := st[a.name].(Slot)

	if cancelled {
		prev.Loading = false
		return Delta{a.name: prev}, Outcome{Status: StatusCancelled}
	}

	if err != nil {
		f := classifyFailure(err, st, strict)
		switch {
		case f.cancelled:
			prev.Loading = false
			return Delta{a.name: prev}, Outcome{Status: StatusCancelled}
		case f.delta != nil:
			return a.mergeResolving(st, f.delta)
		default:
			return Delta{a.name: Slot{Data: prev.Data, Error: f.slotErr}},
				Outcome{Status: StatusFailure, Err: f.slotErr}
		}
	}

	if d, ok := asDelta(result, st, strict); ok {
		return a.mergeResolving(st, d)
	}
	if raw, ok := result.(RawData); ok {
		result = raw.Value
	}
	return Delta{a.name: Slot{Data: result}}, Outcome{Status: StatusSuccess}
}

// mergeResolving merges a delta that settles this action's slot.
func (a *AsyncAction) mergeResolving(st State, d Delta) (Delta, Outcome) {
	merged := Merge(st, d, a.name)
	slot := merged[a.name].(Slot)
	switch {
	case d[KeyData] != nil:
		return merged, Outcome{Status: StatusSuccess}
	case d[KeyError] != nil:
		return merged, Outcome{Status: StatusFailure, Err: slot.Error}
	default:
		return merged, Outcome{Status: StatusNoop}
	}
}

// invoke calls the action, turning panics into errors.
func (a *AsyncAction) invoke(ctx context.Context, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, &PanicError{Value: r}
		}
	}()
	return a.fn(ctx, args...)
}

// =============================================================================
// Future
// =============================================================================

// Future is the handle of a dispatched async call.
type Future struct {
	call    *Call
	done    chan struct{}
	outcome Outcome
}

// Call returns the dispatch identity.
func (f *Future) Call() *Call {
	return f.call
}

// Done is closed when the call has settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the call settles or ctx ends.
func (f *Future) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-f.done:
		return f.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Outcome returns the outcome once the call has settled.
func (f *Future) Outcome() (Outcome, bool) {
	select {
	case <-f.done:
		return f.outcome, true
	default:
		return Outcome{}, false
	}
}

func (f *Future) resolve(o Outcome) {
	f.outcome = o
	close(f.done)
}
