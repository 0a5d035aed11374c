package pairing

import (
	"errors"
	"fmt"
)

// State is an assignment's pairing state. An assignment starts PENDING
// and moves to PAIRED once the hub confirms local-radio pairing with
// the node. There is no failure state: a node the hub never reaches
// stays PENDING until the owner retires the assignment.
type State string

const (
	StatePending State = "PENDING"
	StatePaired  State = "PAIRED"
)

var (
	// ErrUnknownState is returned for a value outside the state machine's
	// vocabulary, or one that is not a legal report target.
	ErrUnknownState = errors.New("unknown pairing state")

	// ErrInvalidTransition is returned when a reported target cannot be
	// reached from the current state.
	ErrInvalidTransition = errors.New("invalid pairing transition")
)

// ParseTarget validates a state reported by a hub. Hubs may only report
// successful pairing, so PAIRED is the sole legal target.
func ParseTarget(s string) (State, error) {
	if State(s) == StatePaired {
		return StatePaired, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownState, s)
}

// Transition applies a reported target to the current state.
// Re-reporting a state already reached is a no-op, not an error: hubs
// legitimately re-report after a radio retry.
func Transition(current, target State) (State, error) {
	switch {
	case current == StatePending && target == StatePaired:
		return StatePaired, nil
	case current == target:
		return current, nil
	default:
		return current, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
	}
}
