package voice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmitterDeliversInSubscriptionOrder(t *testing.T) {
	e := NewEmitter()
	var got []string
	e.On(EventMessage, func(Event) { got = append(got, "first") })
	e.On(EventMessage, func(Event) { got = append(got, "second") })
	e.On(EventCallEnd, func(Event) { got = append(got, "other") })

	e.Emit(Event{Type: EventMessage})
	require.Equal(t, []string{"first", "second"}, got)
}

func TestEmitterUnsubscribeIsIdempotent(t *testing.T) {
	e := NewEmitter()
	calls := 0
	off := e.On(EventError, func(Event) { calls++ })
	require.Equal(t, 1, e.Subscribers(EventError))

	off()
	off()
	e.Emit(Event{Type: EventError})

	require.Zero(t, calls)
	require.Zero(t, e.Subscribers(EventError))
}

func TestEmitterHandlerMayUnsubscribeDuringEmit(t *testing.T) {
	e := NewEmitter()
	calls := 0
	var off func()
	off = e.On(EventCallEnd, func(Event) {
		calls++
		off()
	})

	e.Emit(Event{Type: EventCallEnd})
	e.Emit(Event{Type: EventCallEnd})
	require.Equal(t, 1, calls)
}

func TestEmitterIgnoresNilHandler(t *testing.T) {
	e := NewEmitter()
	off := e.On(EventMessage, nil)
	off()
	require.Zero(t, e.Subscribers(EventMessage))
}

func TestMessageIsFinalTranscript(t *testing.T) {
	require.True(t, Message{Type: MessageTypeTranscript, TranscriptType: TranscriptTypeFinal}.IsFinalTranscript())
	require.False(t, Message{Type: MessageTypeTranscript, TranscriptType: TranscriptTypePartial}.IsFinalTranscript())
	require.False(t, Message{Type: "function-call", TranscriptType: TranscriptTypeFinal}.IsFinalTranscript())
}
