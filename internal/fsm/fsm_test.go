package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateInactive

	next, err := Transition(s, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateConnecting, next)

	next, err = Transition(next, EventCallStart)
	require.NoError(t, err)
	require.Equal(t, StateActive, next)

	next, err = Transition(next, EventCallEnd)
	require.NoError(t, err)
	require.Equal(t, StateFinished, next)
	require.True(t, next.Terminal())
}

func TestTransitionConnectingCanFinishWithoutActive(t *testing.T) {
	for _, event := range []Event{EventCallEnd, EventStop} {
		next, err := Transition(StateConnecting, event)
		require.NoError(t, err)
		require.Equal(t, StateFinished, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "inactive call-start invalid", state: StateInactive, event: EventCallStart, want: StateInactive, wantErr: true},
		{name: "inactive stop invalid", state: StateInactive, event: EventStop, want: StateInactive, wantErr: true},
		{name: "connecting start invalid", state: StateConnecting, event: EventStart, want: StateConnecting, wantErr: true},
		{name: "active start invalid", state: StateActive, event: EventStart, want: StateActive, wantErr: true},
		{name: "active call-start invalid", state: StateActive, event: EventCallStart, want: StateActive, wantErr: true},
		{name: "finished call-end invalid", state: StateFinished, event: EventCallEnd, want: StateFinished, wantErr: true},
		{name: "finished stop invalid", state: StateFinished, event: EventStop, want: StateFinished, wantErr: true},
		{name: "finished call-start invalid", state: StateFinished, event: EventCallStart, want: StateFinished, wantErr: true},
		{name: "finished start valid", state: StateFinished, event: EventStart, want: StateConnecting, wantErr: false},
		{name: "inactive call-end valid", state: StateInactive, event: EventCallEnd, want: StateFinished, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionNeverRegressesBeforeFinished(t *testing.T) {
	order := map[State]int{StateInactive: 0, StateConnecting: 1, StateActive: 2, StateFinished: 3}
	events := []Event{EventStart, EventCallStart, EventCallEnd, EventStop}

	for _, from := range []State{StateInactive, StateConnecting, StateActive} {
		for _, event := range events {
			next, err := Transition(from, event)
			if err != nil {
				continue
			}
			require.Greater(t, order[next], order[from], "%s --(%s)--> %s", from, event, next)
		}
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}
