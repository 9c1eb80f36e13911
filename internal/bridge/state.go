package bridge

import "strings"

// State is a step of a write acquisition.
type State int

const (
	StateResolving State = iota
	StateResolvingParent
	StateCreating
	StateReResolving
	StateOpenDirect
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateResolvingParent:
		return "resolving-parent"
	case StateCreating:
		return "creating"
	case StateReResolving:
		return "re-resolving"
	case StateOpenDirect:
		return "open-direct"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Trace lists the states a write acquisition went through.
type Trace []State

// Final returns the last state, StateResolving for an empty trace.
func (t Trace) Final() State {
	if len(t) == 0 {
		return StateResolving
	}
	return t[len(t)-1]
}

// Created reports whether the acquisition had to create the document.
func (t Trace) Created() bool {
	for _, s := range t {
		if s == StateCreating {
			return true
		}
	}
	return false
}

func (t Trace) String() string {
	parts := make([]string, len(t))
	for i, s := range t {
		parts[i] = s.String()
	}
	return strings.Join(parts, " -> ")
}
