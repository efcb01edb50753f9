package store

import (
	"reflect"
	"testing"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name      string
		state     State
		delta     Delta
		resolving string
		want      Delta
	}{
		{
			name:      "data settles slot",
			state:     State{"x": Slot{Data: 1}},
			delta:     Delta{"data": 2},
			resolving: "x",
			want:      Delta{"x": Slot{Data: 2}},
		},
		{
			name:      "data clears previous error",
			state:     State{"x": Slot{Data: 1, Error: "old", Loading: true}},
			delta:     Delta{"data": 3},
			resolving: "x",
			want:      Delta{"x": Slot{Data: 3}},
		},
		{
			name:      "error keeps data",
			state:     State{"x": Slot{Data: 1, Loading: true}},
			delta:     Delta{"error": "E"},
			resolving: "x",
			want:      Delta{"x": Slot{Data: 1, Error: "E"}},
		},
		{
			name:      "neutral settle only clears loading",
			state:     State{"x": Slot{Data: 1, Error: "prev", Loading: true}},
			delta:     Delta{},
			resolving: "x",
			want:      Delta{"x": Slot{Data: 1, Error: "prev"}},
		},
		{
			name:  "plain field overwritten",
			state: State{"x": 1, "y": 2},
			delta: Delta{"x": 10},
			want:  Delta{"x": 10},
		},
		{
			name:  "unknown keys dropped",
			state: State{"x": 1},
			delta: Delta{"z": 5},
			want:  Delta{},
		},
		{
			name:  "sibling slot gets data only",
			state: State{"list": Slot{Data: []int{1}, Loading: true, Error: "e"}},
			delta: Delta{"list": []int{1, 2}},
			want:  Delta{"list": Slot{Data: []int{1, 2}, Loading: true, Error: "e"}},
		},
		{
			name:      "cross field and resolving together",
			state:     State{"count": 0, "fetch": Slot{Loading: true}},
			delta:     Delta{"count": 7, "data": "ok"},
			resolving: "fetch",
			want:      Delta{"count": 7, "fetch": Slot{Data: "ok"}},
		},
		{
			name:      "nil data is not success",
			state:     State{"x": Slot{Data: 1, Loading: true}},
			delta:     Delta{"data": nil, "error": "boom"},
			resolving: "x",
			want:      Delta{"x": Slot{Data: 1, Error: "boom"}},
		},
		{
			name:  "data and error ignored without resolving action",
			state: State{"x": 1},
			delta: Delta{"data": 2, "error": "e"},
			want:  Delta{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.state, tt.delta, tt.resolving)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Merge() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestMergeEmptyDeltaKeepsState(t *testing.T) {
	state := State{"x": 1, "s": Slot{Data: "d"}}
	next := state.With(Merge(state, Delta{}, ""))

	if !reflect.DeepEqual(next, state) {
		t.Errorf("state changed: %#v", next)
	}
	next["x"] = 2
	if state["x"] != 1 {
		t.Error("With must return a new map")
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	state := State{"x": Slot{Data: 1}, "y": 2}
	Merge(state, Delta{"y": 3, "data": 9}, "x")

	if state["y"] != 2 {
		t.Errorf("y = %v, want 2", state["y"])
	}
	if slot, _ := state.Slot("x"); slot.Data != 1 {
		t.Errorf("x.Data = %v, want 1", slot.Data)
	}
}
