// Package fsm defines the capture session state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateRecording  State = "recording"
	StatePaused     State = "paused"
	StateStopping   State = "stopping"
	StateStopped    State = "stopped"
	StateFailed     State = "failed"
)

const (
	EventStart     Event = "start"
	EventGranted   Event = "granted"
	EventPause     Event = "pause"
	EventResume    Event = "resume"
	EventStop      Event = "stop"
	EventFinalized Event = "finalized"
	EventFail      Event = "fail"
)

// Transition returns the state reached by applying event to current.
func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		switch current {
		case StateIdle, StateStopped, StateFailed:
			return current, invalidTransition(current, event)
		default:
			return StateFailed, nil
		}
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateRequesting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRequesting:
		switch event {
		case EventGranted:
			return StateRecording, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventPause:
			return StatePaused, nil
		case EventStop:
			return StateStopping, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StatePaused:
		switch event {
		case EventResume:
			return StateRecording, nil
		case EventStop:
			return StateStopping, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopping:
		switch event {
		case EventFinalized:
			return StateStopped, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopped, StateFailed:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Active reports whether a state holds (or is acquiring) a device stream.
func Active(state State) bool {
	switch state {
	case StateRequesting, StateRecording, StatePaused, StateStopping:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are possible.
func Terminal(state State) bool {
	return state == StateStopped || state == StateFailed
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
