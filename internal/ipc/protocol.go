// Package ipc is the control channel of a running call session: one JSON
// request and one JSON response per unix socket connection.
package ipc

// Commands understood by a running call session.
const (
	CommandStatus     = "status"
	CommandStop       = "stop"
	CommandTranscript = "transcript"
)

type Request struct {
	Command string `json:"command"`
}

// Line is one finalized utterance as reported over the socket.
type Line struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response reports the session state after a command was handled.
type Response struct {
	OK         bool   `json:"ok"`
	State      string `json:"state,omitempty"`
	Speaking   bool   `json:"speaking,omitempty"`
	Utterances int    `json:"utterances,omitempty"`
	Transcript []Line `json:"transcript,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Failure builds a rejected response carrying the current state.
func Failure(state string, format string, args ...any) Response {
	return Response{OK: false, State: state, Error: sprintf(format, args...)}
}
