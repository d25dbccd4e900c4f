package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle

	steps := []struct {
		event Event
		want  State
	}{
		{EventStart, StateRequesting},
		{EventGranted, StateRecording},
		{EventPause, StatePaused},
		{EventResume, StateRecording},
		{EventStop, StateStopping},
		{EventFinalized, StateStopped},
	}
	for _, step := range steps {
		next, err := Transition(s, step.event)
		require.NoError(t, err)
		require.Equal(t, step.want, next)
		s = next
	}
}

func TestTransitionStopFromPaused(t *testing.T) {
	next, err := Transition(StatePaused, EventStop)
	require.NoError(t, err)
	require.Equal(t, StateStopping, next)
}

func TestTransitionFailFromActiveStates(t *testing.T) {
	for _, state := range []State{StateRequesting, StateRecording, StatePaused, StateStopping} {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateFailed, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		state State
		event Event
	}{
		{name: "idle pause", state: StateIdle, event: EventPause},
		{name: "idle stop", state: StateIdle, event: EventStop},
		{name: "idle fail", state: StateIdle, event: EventFail},
		{name: "requesting pause", state: StateRequesting, event: EventPause},
		{name: "requesting stop", state: StateRequesting, event: EventStop},
		{name: "recording start", state: StateRecording, event: EventStart},
		{name: "recording resume", state: StateRecording, event: EventResume},
		{name: "paused pause", state: StatePaused, event: EventPause},
		{name: "stopping stop", state: StateStopping, event: EventStop},
		{name: "stopped start", state: StateStopped, event: EventStart},
		{name: "stopped fail", state: StateStopped, event: EventFail},
		{name: "failed start", state: StateFailed, event: EventStart},
		{name: "failed fail", state: StateFailed, event: EventFail},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.state, next)
			require.Error(t, err)
			require.Contains(t, err.Error(), "invalid transition")
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}

func TestActiveAndTerminal(t *testing.T) {
	require.False(t, Active(StateIdle))
	require.True(t, Active(StateRequesting))
	require.True(t, Active(StateRecording))
	require.True(t, Active(StatePaused))
	require.True(t, Active(StateStopping))
	require.False(t, Active(StateStopped))
	require.False(t, Active(StateFailed))

	require.True(t, Terminal(StateStopped))
	require.True(t, Terminal(StateFailed))
	require.False(t, Terminal(StateRecording))
}
