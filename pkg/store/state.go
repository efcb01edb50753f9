package store

import (
	"encoding/json"
	"sort"
)

// Slot is the lifecycle state of an async action.
//
// Loading is true while a call is in flight. Error keeps the previous
// terminal error until the call settles.
type Slot struct {
	Data    any
	Loading bool
	Error   any
}

// MarshalJSON renders the slot with lower-case keys. Error values that
// implement error are rendered by message unless they marshal themselves.
func (s Slot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Data    any  `json:"data"`
		Loading bool `json:"loading"`
		Error   any  `json:"error"`
	}{s.Data, s.Loading, encodableError(s.Error)})
}

func encodableError(v any) any {
	if v == nil {
		return nil
	}
	if _, ok := v.(json.Marshaler); ok {
		return v
	}
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return v
}

// State is the canonical state of a store. It is never mutated after it has
// been committed; every change produces a new State.
type State map[string]any

// Clone returns a shallow copy of the state.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// With returns a new state with partial shallow-merged over s.
func (s State) With(partial Delta) State {
	out := make(State, len(s)+len(partial))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// Slot returns the async slot stored under name.
func (s State) Slot(name string) (Slot, bool) {
	slot, ok := s[name].(Slot)
	return slot, ok
}

// Keys returns the field names in sorted order.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// overlaps reports whether m shares at least one key with s.
func (s State) overlaps(m map[string]any) bool {
	for k := range m {
		if _, ok := s[k]; ok {
			return true
		}
	}
	return false
}
