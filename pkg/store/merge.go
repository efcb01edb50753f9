package store

// Reserved delta keys that settle the resolving action's own slot.
const (
	KeyData  = "data"
	KeyError = "error"
)

// Delta is a partial state update returned by an action.
type Delta map[string]any

func (Delta) isResult() {}

// Merge computes the fields of current that change when delta is applied.
//
// Keys other than "data" and "error" overwrite existing fields; when the
// existing field is a Slot only its Data is replaced. Keys that are not in
// current are dropped.
//
// When resolving names an async action, its slot is settled: a non-nil
// "data" value marks success and clears the error, a non-nil "error" value
// marks failure and keeps the previous data, and otherwise only Loading is
// cleared.
//
// Only the changed subset is returned; use State.With to apply it.
func Merge(current State, delta Delta, resolving string) Delta {
	out := make(Delta)

	data, hasData := delta[KeyData]
	errVal, hasErr := delta[KeyError]
	hasData = hasData && data != nil
	hasErr = hasErr && errVal != nil

	for key, v := range delta {
		if key == KeyData || key == KeyError {
			continue
		}
		existing, ok := current[key]
		if !ok {
			continue
		}
		if slot, isSlot := existing.(Slot); isSlot {
			slot.Data = v
			out[key] = slot
		} else {
			out[key] = v
		}
	}

	if resolving == "" {
		return out
	}

	prev, _ := current[resolving].(Slot)
	switch {
	case hasData:
		out[resolving] = Slot{Data: data}
	case hasErr:
		out[resolving] = Slot{Data: prev.Data, Error: errVal}
	default:
		out[resolving] = Slot{Data: prev.Data, Error: prev.Error}
	}
	return out
}
