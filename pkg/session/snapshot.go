package session

import (
	"github.com/goliatone/go-formcalc/pkg/value"
)

// FieldState is the settled state of one field.
type FieldState struct {
	Value      value.Value `json:"value"`
	Violations []string    `json:"violations"`
	// Failed marks a derived field whose value could not be computed: the
	// formula failed, the field is cyclic, or it names unknown parents.
	Failed     bool   `json:"failed,omitempty"`
	Cyclic     bool   `json:"cyclic,omitempty"`
	Derived    bool   `json:"derived,omitempty"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Snapshot is a settled view of every field. Snapshots handed out by a
// Session are copies; changing one never affects the session.
type Snapshot struct {
	Session  string                `json:"session,omitempty"`
	Revision uint64                `json:"revision"`
	Order    []string              `json:"order"`
	Fields   map[string]FieldState `json:"fields"`
}

// Value returns the current value of a field, Absent when unknown.
func (s Snapshot) Value(id string) value.Value {
	return s.Fields[id].Value
}

// Violations returns the violation messages of a field.
func (s Snapshot) Violations(id string) []string {
	return s.Fields[id].Violations
}

// Valid reports whether no field has violations or failed to compute.
func (s Snapshot) Valid() bool {
	for _, state := range s.Fields {
		if len(state.Violations) > 0 || state.Failed {
			return false
		}
	}
	return true
}

// Values flattens the snapshot into plain values keyed by field id, the shape
// of a form submission.
func (s Snapshot) Values() map[string]any {
	out := make(map[string]any, len(s.Fields))
	for id, state := range s.Fields {
		out[id] = state.Value.Interface()
	}
	return out
}

// Errors returns the non-empty violation lists keyed by field id.
func (s Snapshot) Errors() map[string][]string {
	out := make(map[string][]string)
	for id, state := range s.Fields {
		if len(state.Violations) > 0 {
			out[id] = append([]string(nil), state.Violations...)
		}
	}
	return out
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Session:  s.Session,
		Revision: s.Revision,
		Order:    append([]string(nil), s.Order...),
		Fields:   make(map[string]FieldState, len(s.Fields)),
	}
	for id, state := range s.Fields {
		state.Violations = cloneViolations(state.Violations)
		out.Fields[id] = state
	}
	return out
}

func cloneViolations(src []string) []string {
	out := make([]string, len(src))
	copy(out, src)
	return out
}

func sameFields(a, b map[string]FieldState) bool {
	if len(a) != len(b) {
		return false
	}
	for id, left := range a {
		right, ok := b[id]
		if !ok {
			return false
		}
		if !left.Value.Equal(right.Value) ||
			left.Failed != right.Failed ||
			left.Cyclic != right.Cyclic ||
			left.Derived != right.Derived ||
			left.Diagnostic != right.Diagnostic ||
			len(left.Violations) != len(right.Violations) {
			return false
		}
		for i := range left.Violations {
			if left.Violations[i] != right.Violations[i] {
				return false
			}
		}
	}
	return true
}
