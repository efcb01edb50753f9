// Package store turns a plain declaration of state fields and action
// functions into a live, observable store with async lifecycle tracking.
//
// A declaration maps field names to initial values or actions:
//
//	reg, err := store.Create(store.Declarations{
//	    "counter": {
//	        "count": 0,
//	        "increment": store.SyncFunc(func(args ...any) store.Result {
//	            return store.Thunk(func(s store.State) store.Delta {
//	                return store.Delta{"count": s["count"].(int) + 1}
//	            })
//	        }),
//	    },
//	    "users": {
//	        "fetchUser": store.AsyncFunc(func(ctx context.Context, args ...any) (any, error) {
//	            return api.User(ctx, args[0].(int))
//	        }),
//	    },
//	})
//
// # Async Slots
//
// Every async action owns a Slot in the canonical state:
//
//	Slot{Data: nil, Loading: false, Error: nil}
//
// Dispatching an async action flips Loading on synchronously, runs the action
// on its own goroutine and settles the slot when the call returns:
//
//	fetch := reg.MustStore("users").MustAsync("fetchUser")
//	f := fetch.Dispatch(ctx, 1)
//	fetch.Loading() // true
//	f.Wait(ctx)
//	fetch.Data()    // the user
//
// # Deltas
//
// Actions may return a Delta to update several fields at once. The reserved
// keys "data" and "error" settle the dispatching action's own slot; other
// keys overwrite declared fields, or the Data member of another async slot.
//
// Plain map results are classified by key overlap with the current state.
// Use Delta or Data to make the intent explicit, or WithStrictResults to turn
// the overlap heuristic off.
//
// # Cancellation
//
// Starting an async action cancels the previous call of the same action.
// Each call runs under a context registered in the registry's CancelRegistry;
// transports that honour context cancellation need nothing else. Results of
// superseded calls are discarded.
//
// # Observing
//
// Store.Snapshot returns an immutable view whose identity changes once per
// committed mutation. Store.Subscribe registers a callback invoked with each
// new snapshot.
package store
