package training

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by every mutating call on a driver whose run was
// cancelled. The partial state stays readable.
var ErrStopped = errors.New("training stopped")

// State is a driver's lifecycle position.
type State int

const (
	// Uninitialized drivers have not taken a step yet.
	Uninitialized State = iota
	// Running drivers have taken at least one step.
	Running
	// Converged drivers met the tolerance or exhausted the planned epochs.
	Converged
	// Stopped drivers observed context cancellation between steps.
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	case Converged:
		return "converged"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
