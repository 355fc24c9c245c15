package audit

import "fmt"

// EdgeFunc reports whether from->to is an edge of an entity's state graph.
type EdgeFunc func(from, to string) bool

// WalkViolation describes the first entry that breaks the walk.
type WalkViolation struct {
	Index int
	Entry *Entry
	Cause string
}

func (v *WalkViolation) Error() string {
	return fmt.Sprintf("audit entry %d (%s -> %s): %s", v.Index, v.Entry.FromState, v.Entry.ToState, v.Cause)
}

// VerifyWalk checks that a trail, oldest first, is a walk on the graph: each
// entry starts where the previous one ended and follows an edge. The first
// entry may start from "" (creation). Overrides may jump anywhere but must
// still start from the recorded state.
func VerifyWalk(entries []*Entry, edge EdgeFunc) error {
	current := ""
	for i, e := range entries {
		if i > 0 && e.FromState != current {
			return &WalkViolation{Index: i, Entry: e, Cause: fmt.Sprintf("expected from-state %q", current)}
		}
		if !e.Override && !(i == 0 && e.FromState == "") && !edge(e.FromState, e.ToState) {
			return &WalkViolation{Index: i, Entry: e, Cause: "not an edge of the state graph"}
		}
		current = e.ToState
	}
	return nil
}
