package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidAccount indicates an unknown or malformed account reference.
	ErrInvalidAccount = errors.New("invalid account")
)

// Decision is an operator answer to a synchronous confirmation gate.
type Decision int

const (
	// DecisionContinue keeps the session open for further adjustment.
	DecisionContinue Decision = iota
	// DecisionCancel abandons the session without persisting anything.
	DecisionCancel
	// DecisionComplete finalises the session and commits its effects.
	DecisionComplete
)

func (d Decision) String() string {
	switch d {
	case DecisionContinue:
		return "continue"
	case DecisionCancel:
		return "cancel"
	case DecisionComplete:
		return "complete"
	default:
		return "unknown"
	}
}
