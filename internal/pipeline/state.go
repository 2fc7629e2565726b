package pipeline

import (
	"errors"
	"fmt"
)

// State is the lifecycle position of the pipeline's single turn slot.
type State int

const (
	Idle State = iota
	Sending
	Applying
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case Applying:
		return "applying"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrInvalidTransition is returned when a state change is not in the table.
var ErrInvalidTransition = errors.New("pipeline: invalid state transition")

var transitions = map[State][]State{
	Idle:     {Sending},
	Sending:  {Applying, Failed},
	Applying: {Idle},
	Failed:   {Idle},
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// next returns next, or ErrInvalidTransition if s cannot reach it.
func (s State) next(next State) (State, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}
