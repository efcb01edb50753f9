package store

import (
	"fmt"
	"sort"
	"sync"
)

// Snapshot is an immutable view of a store's state. A new Snapshot is
// created for every committed mutation.
type Snapshot struct {
	Store   string `json:"store"`
	Version uint64 `json:"version"`
	State   State  `json:"state"`
}

// Value returns the value of a field.
func (s *Snapshot) Value(name string) (any, bool) {
	v, ok := s.State[name]
	return v, ok
}

// Slot returns the slot of an async action.
func (s *Snapshot) Slot(name string) (Slot, bool) {
	return s.State.Slot(name)
}

// Store is a live store instance created from a Declaration.
type Store struct {
	name  string
	reg   *Registry
	kinds map[string]FieldKind
	async map[string]*AsyncAction
	sync  map[string]*SyncAction

	mu   sync.Mutex
	snap *Snapshot

	subMu   sync.RWMutex
	subs    map[uint64]func(*Snapshot)
	nextSub uint64
}

func newStore(reg *Registry, name string, fields []field) *Store {
	s := &Store{
		name:  name,
		reg:   reg,
		kinds: make(map[string]FieldKind, len(fields)),
		async: make(map[string]*AsyncAction),
		sync:  make(map[string]*SyncAction),
		subs:  make(map[uint64]func(*Snapshot)),
	}

	state := make(State, len(fields))
	for _, f := range fields {
		s.kinds[f.name] = f.kind
		switch f.kind {
		case FieldValue:
			state[f.name] = f.value
		case FieldSync:
			s.sync[f.name] = &SyncAction{store: s, name: f.name, fn: f.sync}
		case FieldAsync:
			state[f.name] = Slot{}
			s.async[f.name] = &AsyncAction{store: s, name: f.name, fn: f.async}
		}
	}
	s.snap = &Snapshot{Store: name, State: state}
	return s
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// State returns the current canonical state. It must not be modified.
func (s *Store) State() State {
	return s.Snapshot().State
}

// Value returns the current value of a plain field, or the Slot of an async
// action.
func (s *Store) Value(name string) (any, bool) {
	return s.Snapshot().Value(name)
}

// Kind reports how a field is declared.
func (s *Store) Kind(name string) (FieldKind, bool) {
	k, ok := s.kinds[name]
	return k, ok
}

// Fields returns the declared field names in sorted order.
func (s *Store) Fields() []string {
	names := make([]string, 0, len(s.kinds))
	for name := range s.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Async returns the named async action.
func (s *Store) Async(name string) (*AsyncAction, error) {
	a, ok := s.async[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s is not an async action", ErrUnknownAction, s.name, name)
	}
	return a, nil
}

// MustAsync is like Async but panics if the action is not declared.
func (s *Store) MustAsync(name string) *AsyncAction {
	a, err := s.Async(name)
	if err != nil {
		panic(err)
	}
	return a
}

// Sync returns the named sync action.
func (s *Store) Sync(name string) (*SyncAction, error) {
	a, ok := s.sync[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s is not a sync action", ErrUnknownAction, s.name, name)
	}
	return a, nil
}

// MustSync is like Sync but panics if the action is not declared.
func (s *Store) MustSync(name string) *SyncAction {
	a, err := s.Sync(name)
	if err != nil {
		panic(err)
	}
	return a
}

// Subscribe registers fn to be called with every new snapshot. Callbacks
// run on the goroutine that committed the mutation, after the store lock is
// released. Under concurrent dispatches callbacks may arrive out of order;
// compare Snapshot.Version. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(*Snapshot)) func() {
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// apply computes a partial update from the current state and commits it.
// A nil partial commits nothing. The caller must pass the returned snapshot
// to notify once it holds no locks.
func (s *Store) apply(fn func(State) Delta) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	partial := fn(s.snap.State)
	if partial == nil {
		return nil
	}
	s.snap = &Snapshot{
		Store:   s.name,
		Version: s.snap.Version + 1,
		State:   s.snap.State.With(partial),
	}
	return s.snap
}

// notify calls subscribers with snap. Subscribers are copied first so that
// callbacks may subscribe or unsubscribe.
func (s *Store) notify(snap *Snapshot) {
	if snap == nil {
		return
	}
	s.subMu.RLock()
	subs := make([]func(*Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// commit applies fn and notifies subscribers.
func (s *Store) commit(fn func(State) Delta) *Snapshot {
	snap := s.apply(fn)
	s.notify(snap)
	return snap
}
