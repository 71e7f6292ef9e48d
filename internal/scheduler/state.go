// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package scheduler

// State is the lifecycle state of a Plug runner.
type State int

const (
	StateArmed State = iota
	StateDisabled
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateDisabled:
		return "disabled"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// validTransitions defines allowed state transitions as an adjacency list.
// Exhausted is terminal.
var validTransitions = map[State]map[State]bool{
	StateArmed: {
		StateDisabled:  true,
		StateExhausted: true,
	},
	// A run started before the Plug was disabled can still use up the
	// last run.
	StateDisabled: {
		StateArmed:     true,
		StateExhausted: true,
	},
	StateExhausted: {},
}

// ValidTransition returns true if transitioning from one state to another is allowed.
func ValidTransition(from, to State) bool {
	allowed, exists := validTransitions[from][to]
	return exists && allowed
}
