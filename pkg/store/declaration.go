package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
)

// Declaration maps field names to initial values, sync actions or async
// actions.
type Declaration map[string]any

// Declarations maps store names to their declarations.
type Declarations map[string]Declaration

// SyncFunc is a synchronous action. Its result is applied to the state as
// soon as it returns.
type SyncFunc func(args ...any) Result

// AsyncFunc is an asynchronous action. It runs on its own goroutine and
// settles the action's Slot when it returns.
type AsyncFunc func(ctx context.Context, args ...any) (any, error)

// FieldKind classifies a declared field.
type FieldKind int

const (
	// FieldValue is a plain state value.
	FieldValue FieldKind = iota

	// FieldSync is a synchronous action. It has no slot in the state.
	FieldSync

	// FieldAsync is an asynchronous action backed by a Slot.
	FieldAsync
)

// String returns a human-readable name for the field kind.
func (k FieldKind) String() string {
	switch k {
	case FieldValue:
		return "value"
	case FieldSync:
		return "sync"
	case FieldAsync:
		return "async"
	default:
		return "unknown"
	}
}

// field is a classified declaration entry.
type field struct {
	name  string
	kind  FieldKind
	value any
	sync  SyncFunc
	async AsyncFunc
}

// classifyField decides what a declared value is.
// Unnamed funcs with the SyncFunc or AsyncFunc signature are accepted.
// Any other func is rejected.
func classifyField(name string, v any) (field, error) {
	f := field{name: name}
	switch fn := v.(type) {
	case SyncFunc:
		f.kind, f.sync = FieldSync, fn
	case func(args ...any) Result:
		f.kind, f.sync = FieldSync, fn
	case AsyncFunc:
		f.kind, f.async = FieldAsync, fn
	case func(ctx context.Context, args ...any) (any, error):
		f.kind, f.async = FieldAsync, fn
	default:
		if v != nil && reflect.TypeOf(v).Kind() == reflect.Func {
			return field{}, fmt.Errorf("%w: field %q has unsupported func type %T",
				ErrInvalidDeclaration, name, v)
		}
		f.kind, f.value = FieldValue, v
	}
	if (f.kind == FieldSync && f.sync == nil) || (f.kind == FieldAsync && f.async == nil) {
		return field{}, fmt.Errorf("%w: field %q is a nil action", ErrInvalidDeclaration, name)
	}
	return f, nil
}

// compile classifies every field of a declaration in name order.
func (d Declaration) compile() ([]field, error) {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]field, 0, len(names))
	for _, name := range names {
		if name == "" {
			return nil, fmt.Errorf("%w: empty field name", ErrInvalidDeclaration)
		}
		f, err := classifyField(name, d[name])
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// Kind reports how the named field is declared.
func (d Declaration) Kind(name string) (FieldKind, bool) {
	v, ok := d[name]
	if !ok {
		return 0, false
	}
	f, err := classifyField(name, v)
	if err != nil {
		return 0, false
	}
	return f.kind, true
}

// DeriveInitialState computes the canonical initial state of a declaration.
// Plain values are copied verbatim, sync actions are omitted and async
// actions get a zero Slot.
func DeriveInitialState(d Declaration) State {
	state := make(State, len(d))
	for name, v := range d {
		f, err := classifyField(name, v)
		if err != nil {
			continue
		}
		switch f.kind {
		case FieldValue:
			state[name] = f.value
		case FieldAsync:
			state[name] = Slot{}
		}
	}
	return state
}
