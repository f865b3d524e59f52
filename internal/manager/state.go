package manager

// State is the lifecycle state of a form or a record.
type State int

const (
	// StateAbsent: no such record (never created, or deleted).
	StateAbsent State = iota
	// StateDraft: a creation form being filled in.
	StateDraft
	// StateSubmitting: a form whose create or save is in flight.
	StateSubmitting
	// StatePersisted: a record stored remotely with no pending change.
	StatePersisted
	// StateEditing: a persisted record with an open edit form.
	StateEditing
	// StateDeleting: a record whose delete is in flight.
	StateDeleting
)

var stateNames = [...]string{"absent", "draft", "submitting", "persisted", "editing", "deleting"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
