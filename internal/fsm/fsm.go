// Package fsm defines the call session state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StateInactive   State = "INACTIVE"
	StateConnecting State = "CONNECTING"
	StateActive     State = "ACTIVE"
	StateFinished   State = "FINISHED"
)

const (
	EventStart     Event = "start"
	EventCallStart Event = "call-start"
	EventCallEnd   Event = "call-end"
	EventStop      Event = "stop"
)

// Terminal reports whether no further events are accepted except a fresh start.
func (s State) Terminal() bool {
	return s == StateFinished
}

func Transition(current State, event Event) (State, error) {
	switch current {
	case StateInactive:
		switch event {
		case EventStart:
			return StateConnecting, nil
		case EventCallEnd:
			return StateFinished, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateConnecting:
		switch event {
		case EventCallStart:
			return StateActive, nil
		case EventCallEnd, EventStop:
			return StateFinished, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateActive:
		switch event {
		case EventCallEnd, EventStop:
			return StateFinished, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateFinished:
		switch event {
		case EventStart:
			return StateConnecting, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
