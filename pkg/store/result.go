package store

import "fmt"

// Result is the value a SyncFunc returns: a Delta, a Thunk, or nil for no
// state change.
type Result interface {
	isResult()
}

// Thunk computes a delta from the current state. Actions return a Thunk
// when their update depends on state they did not capture.
type Thunk func(State) Delta

func (Thunk) isResult() {}

// RawData marks an async result as the action's own data, even when it is a
// map whose keys collide with declared fields.
type RawData struct {
	Value any
}

// Data wraps v so that it is stored verbatim as the action's Slot.Data.
func Data(v any) RawData {
	return RawData{Value: v}
}

// Rejection is an error that carries a rejection value. AsyncFuncs return
// Reject(v) to settle their slot with v: a Delta or Thunk is merged, any
// other value becomes Slot.Error.
type Rejection struct {
	Value any
}

// Reject wraps v as an error returned from an AsyncFunc.
func Reject(v any) *Rejection {
	return &Rejection{Value: v}
}

// Error implements error.
func (r *Rejection) Error() string {
	if err, ok := r.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("rejected: %v", r.Value)
}

// Unwrap returns the rejection value when it is an error.
func (r *Rejection) Unwrap() error {
	err, _ := r.Value.(error)
	return err
}

// resolveThunk evaluates v against state when it is a Thunk.
func resolveThunk(v any, state State) any {
	switch t := v.(type) {
	case Thunk:
		return t(state)
	case func(State) Delta:
		return t(state)
	}
	return v
}

// resolveGuarded is resolveThunk for async settlements: a panicking thunk
// becomes a *PanicError.
func resolveGuarded(v any, state State) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, &PanicError{Value: r}
		}
	}()
	return resolveThunk(v, state), nil
}

// asDelta reports whether v is a state delta for the given state.
// Explicit Delta values always are. Plain maps are deltas when they share a
// key with the state, unless strict is set.
func asDelta(v any, state State, strict bool) (Delta, bool) {
	switch d := v.(type) {
	case Delta:
		return d, true
	case map[string]any:
		if !strict && state.overlaps(d) {
			return Delta(d), true
		}
	}
	return nil, false
}
