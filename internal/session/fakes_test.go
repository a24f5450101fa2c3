package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rbright/cloudprep/internal/fsm"
	"github.com/rbright/cloudprep/internal/transcript"
	"github.com/rbright/cloudprep/internal/voice"
)

type fakeProvider struct {
	*voice.Emitter

	mu       sync.Mutex
	starts   []voice.StartConfig
	stops    int
	startErr error
	onStop   func()
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{Emitter: voice.NewEmitter()}
}

func (p *fakeProvider) Start(_ context.Context, cfg voice.StartConfig) error {
	p.mu.Lock()
	p.starts = append(p.starts, cfg)
	p.mu.Unlock()
	return p.startErr
}

func (p *fakeProvider) Stop(context.Context) error {
	p.mu.Lock()
	p.stops++
	hook := p.onStop
	p.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (p *fakeProvider) startCalls() []voice.StartConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]voice.StartConfig(nil), p.starts...)
}

func (p *fakeProvider) stopCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

func (p *fakeProvider) emit(t voice.EventType) {
	p.Emit(voice.Event{Type: t})
}

func (p *fakeProvider) say(role, transcriptType, text string) {
	p.Emit(voice.Event{Type: voice.EventMessage, Message: voice.Message{
		Type:           voice.MessageTypeTranscript,
		Role:           role,
		TranscriptType: transcriptType,
		Transcript:     text,
	}})
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Navigate(_ context.Context, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
	return nil
}

func (n *recordingNavigator) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type recordingFeedback struct {
	mu       sync.Mutex
	requests []FeedbackRequest
	result   FeedbackResult
	err      error
}

func (f *recordingFeedback) CreateFeedback(_ context.Context, req FeedbackRequest) (FeedbackResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.result, f.err
}

func (f *recordingFeedback) calls() []FeedbackRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FeedbackRequest(nil), f.requests...)
}

type recordingIndicator struct {
	mu         sync.Mutex
	states     []fsm.State
	speaking   []bool
	utterances []transcript.Utterance
	errors     []string
}

func (i *recordingIndicator) ShowState(_ context.Context, s fsm.State) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.states = append(i.states, s)
}

func (i *recordingIndicator) ShowSpeaking(_ context.Context, speaking bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.speaking = append(i.speaking, speaking)
}

func (i *recordingIndicator) ShowUtterance(_ context.Context, u transcript.Utterance) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.utterances = append(i.utterances, u)
}

func (i *recordingIndicator) ShowError(_ context.Context, text string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.errors = append(i.errors, text)
}

func (i *recordingIndicator) stateHistory() []fsm.State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]fsm.State(nil), i.states...)
}

var errFeedbackUnavailable = errors.New("feedback backend unavailable")

func waitForDone(t *testing.T, ctrl *Controller) {
	t.Helper()
	select {
	case <-ctrl.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for terminal action (state=%s)", ctrl.State())
	}
}
