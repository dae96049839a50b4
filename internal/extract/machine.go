package extract

import (
	"context"
	"fmt"
)

// stateID names an orchestrator state.
type stateID string

const stateDone stateID = "done"

// edge is a guarded transition. Guards are evaluated in order after the
// state's action ran; the first passing guard wins.
type edge[C any] struct {
	to    stateID
	guard func(c C) bool
}

// state is an orchestrator step: an action that reads one or more fields
// followed by guarded transitions.
type state[C any] struct {
	action func(ctx context.Context, c C) error
	edges  []edge[C]
}

// machine is a finite state machine over a scan context C.
type machine[C any] struct {
	start  stateID
	states map[stateID]state[C]
}

func always[C any](C) bool { return true }

// run drives the machine from start to done and returns the visited states.
func (m machine[C]) run(ctx context.Context, c C) ([]stateID, error) {
	var trace []stateID
	current := m.start
	for current != stateDone {
		trace = append(trace, current)
		st, ok := m.states[current]
		if !ok {
			return trace, fmt.Errorf("unknown state %q", current)
		}
		if st.action != nil {
			if err := st.action(ctx, c); err != nil {
				return trace, err
			}
		}

		next := stateDone
		for _, e := range st.edges {
			if e.guard(c) {
				next = e.to
				break
			}
		}
		current = next
	}
	return append(trace, stateDone), nil
}
