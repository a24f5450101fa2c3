// Package voice defines the capability surface of a real-time voice
// conversation provider.
package voice

import "context"

// EventType names a provider event.
type EventType string

const (
	EventCallStart   EventType = "call-start"
	EventCallEnd     EventType = "call-end"
	EventMessage     EventType = "message"
	EventSpeechStart EventType = "speech-start"
	EventSpeechEnd   EventType = "speech-end"
	EventError       EventType = "error"
)

// Events lists every event a provider emits.
var Events = []EventType{
	EventCallStart,
	EventCallEnd,
	EventMessage,
	EventSpeechStart,
	EventSpeechEnd,
	EventError,
}

const (
	MessageTypeTranscript = "transcript"

	TranscriptTypePartial = "partial"
	TranscriptTypeFinal   = "final"
)

// Message is a provider message payload. Only transcript fields are modeled.
type Message struct {
	Type           string `json:"type"`
	Role           string `json:"role,omitempty"`
	TranscriptType string `json:"transcriptType,omitempty"`
	Transcript     string `json:"transcript,omitempty"`
}

// IsFinalTranscript reports whether the message carries a finalized utterance.
func (m Message) IsFinalTranscript() bool {
	return m.Type == MessageTypeTranscript && m.TranscriptType == TranscriptTypeFinal
}

// Event is one provider notification. Message is set for EventMessage and
// Err for EventError.
type Event struct {
	Type    EventType
	Message Message
	Err     error
}

// Handler receives provider events.
type Handler func(Event)

// StartConfig selects the conversation template and its variable values.
type StartConfig struct {
	TemplateID string
	Variables  map[string]string
}

// Provider is a voice session backend.
type Provider interface {
	// On subscribes h to events of type t and returns the matching unsubscribe.
	On(t EventType, h Handler) (unsubscribe func())
	Start(ctx context.Context, cfg StartConfig) error
	Stop(ctx context.Context) error
}
