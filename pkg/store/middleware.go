package store

import (
	"context"
	"time"
)

// Status is the terminal status of a dispatch.
type Status int

const (
	// StatusSuccess means an async call settled its slot with data.
	StatusSuccess Status = iota + 1

	// StatusFailure means an async call settled its slot with an error.
	StatusFailure

	// StatusCancelled means the call was cancelled; only Loading was
	// cleared.
	StatusCancelled

	// StatusStale means a newer dispatch of the same action started first;
	// the result was discarded.
	StatusStale

	// StatusApplied means a sync action's delta was committed.
	StatusApplied

	// StatusNoop means a sync action returned nothing to apply.
	StatusNoop
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusCancelled:
		return "cancelled"
	case StatusStale:
		return "stale"
	case StatusApplied:
		return "applied"
	case StatusNoop:
		return "noop"
	default:
		return "unknown"
	}
}

// Outcome describes how a dispatch ended.
type Outcome struct {
	Status Status

	// Err is the value stored in Slot.Error on failure.
	Err any
}

// Call identifies a single dispatch.
type Call struct {
	// ID is unique per dispatch.
	ID string

	Store  string
	Action string
	Kind   FieldKind

	// Seq is the per-action dispatch sequence number. Zero for sync
	// actions.
	Seq uint64

	Args    []any
	Started time.Time
}

// Middleware wraps the execution of every dispatch.
//
// For async actions the chain runs on the call's goroutine, after Loading
// has been set, and next performs the call and settles the slot. For sync
// actions the chain runs on the caller's goroutine.
type Middleware interface {
	Handle(ctx context.Context, call *Call, next func(context.Context) Outcome) Outcome
}

// MiddlewareFunc is a function adapter for Middleware.
type MiddlewareFunc func(ctx context.Context, call *Call, next func(context.Context) Outcome) Outcome

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(ctx context.Context, call *Call, next func(context.Context) Outcome) Outcome {
	return f(ctx, call, next)
}

// composeMiddleware runs mw in order around handler.
func composeMiddleware(ctx context.Context, call *Call, mw []Middleware, handler func(context.Context) Outcome) Outcome {
	if len(mw) == 0 {
		return handler(ctx)
	}

	chain := handler
	for i := len(mw) - 1; i >= 0; i-- {
		m := mw[i]
		next := chain
		chain = func(ctx context.Context) Outcome {
			return m.Handle(ctx, call, next)
		}
	}
	return chain(ctx)
}

// Chain combines several middleware into one.
func Chain(mw ...Middleware) Middleware {
	return MiddlewareFunc(func(ctx context.Context, call *Call, next func(context.Context) Outcome) Outcome {
		return composeMiddleware(ctx, call, mw, next)
	})
}
