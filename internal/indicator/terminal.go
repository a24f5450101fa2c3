// Package indicator renders call session progress in the terminal and plays
// short audio cues on state changes.
package indicator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/rbright/cloudprep/internal/fsm"
	"github.com/rbright/cloudprep/internal/session"
	"github.com/rbright/cloudprep/internal/transcript"
)

type messages struct {
	connecting string
	active     string
	speaking   string
	listening  string
	finished   string
	errorText  string
}

var defaultMessages = messages{
	connecting: "Connecting…",
	active:     "Call in progress. Press Ctrl-C to end the call.",
	speaking:   "Interviewer is speaking…",
	listening:  "Listening…",
	finished:   "Call ended.",
	errorText:  "Voice call error",
}

// Options configures a Terminal.
type Options struct {
	Out    io.Writer
	Cues   bool
	Logger *slog.Logger
}

// Terminal is the indicator used by `cloudprep interview` and `cloudprep generate`.
type Terminal struct {
	out      io.Writer
	cues     bool
	logger   *slog.Logger
	messages messages
	play     func(context.Context, cueKind) error

	mu       sync.Mutex
	speaking bool
	soundMu  sync.Mutex
	cueWG    sync.WaitGroup
}

var _ session.Indicator = (*Terminal)(nil)

// NewTerminal returns an indicator writing to opts.Out.
func NewTerminal(opts Options) *Terminal {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Terminal{
		out:      out,
		cues:     opts.Cues,
		logger:   opts.Logger,
		messages: defaultMessages,
		play:     playCue,
	}
}

// ShowState prints the new session state and cues call start and end.
func (t *Terminal) ShowState(ctx context.Context, state fsm.State) {
	switch state {
	case fsm.StateConnecting:
		t.println(t.messages.connecting)
	case fsm.StateActive:
		t.playCue(ctx, cueStart)
		t.println(t.messages.active)
	case fsm.StateFinished:
		t.playCue(ctx, cueComplete)
		t.println(t.messages.finished)
	}
}

// ShowSpeaking prints assistant speech transitions once each.
func (t *Terminal) ShowSpeaking(_ context.Context, speaking bool) {
	t.mu.Lock()
	changed := t.speaking != speaking
	t.speaking = speaking
	t.mu.Unlock()
	if !changed {
		return
	}
	if speaking {
		t.println(t.messages.speaking)
		return
	}
	t.println(t.messages.listening)
}

// ShowUtterance prints one final utterance.
func (t *Terminal) ShowUtterance(_ context.Context, u transcript.Utterance) {
	t.println(fmt.Sprintf("%s: %s", speakerLabel(u.Speaker), u.Text))
}

// ShowError prints text, or a generic error message when empty.
func (t *Terminal) ShowError(ctx context.Context, text string) {
	if text == "" {
		text = t.messages.errorText
	}
	t.playCue(ctx, cueError)
	t.println("error: " + text)
}

// Wait blocks until queued cues have played.
func (t *Terminal) Wait() {
	t.cueWG.Wait()
}

func speakerLabel(s transcript.Speaker) string {
	switch s {
	case transcript.SpeakerAssistant:
		return "Interviewer"
	case transcript.SpeakerUser:
		return "You"
	default:
		return string(s)
	}
}

func (t *Terminal) println(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintln(t.out, line); err != nil {
		t.log("indicator write failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (t *Terminal) playCue(ctx context.Context, kind cueKind) {
	if !t.cues {
		return
	}
	t.cueWG.Add(1)
	go func() {
		defer t.cueWG.Done()
		t.soundMu.Lock()
		defer t.soundMu.Unlock()
		if err := t.play(context.WithoutCancel(ctx), kind); err != nil {
			t.log("indicator audio cue failed", err)
		}
	}()
}

// log emits debug-only indicator failures to the runtime logger.
func (t *Terminal) log(message string, err error) {
	if t.logger == nil || err == nil {
		return
	}
	t.logger.Debug(message, "error", err.Error())
}
