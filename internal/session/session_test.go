package session

import (
	"context"
	"testing"
	"time"

	"github.com/rbright/cloudprep/internal/fsm"
	"github.com/rbright/cloudprep/internal/ipc"
	"github.com/rbright/cloudprep/internal/transcript"
	"github.com/rbright/cloudprep/internal/voice"
	"github.com/stretchr/testify/require"
)

func reviewDescriptor() Descriptor {
	return Descriptor{
		Kind:        KindReview,
		InterviewID: "i1",
		UserID:      "u1",
		UserName:    "Ann",
		Questions:   []string{"What is S3?", "What is IAM?"},
	}
}

type harness struct {
	provider  *fakeProvider
	navigator *recordingNavigator
	feedback  *recordingFeedback
	indicator *recordingIndicator
	ctrl      *Controller
}

func newHarness(t *testing.T, desc Descriptor) *harness {
	t.Helper()
	h := &harness{
		provider:  newFakeProvider(),
		navigator: &recordingNavigator{},
		feedback:  &recordingFeedback{},
		indicator: &recordingIndicator{},
	}
	ctrl, err := NewController(Deps{
		Provider:  h.provider,
		Feedback:  h.feedback,
		Navigator: h.navigator,
		Indicator: h.indicator,
	}, desc, Templates{WorkflowID: "wf-123"})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)
	h.ctrl = ctrl
	return h
}

func TestGenerateSessionNavigatesHomeWithoutFeedback(t *testing.T) {
	h := newHarness(t, Descriptor{Kind: KindGenerate, UserID: "u1", UserName: "Ann"})

	require.NoError(t, h.ctrl.RequestStart(context.Background()))
	h.provider.emit(voice.EventCallStart)
	h.provider.say("user", voice.TranscriptTypeFinal, "AWS associate please")
	h.provider.emit(voice.EventCallEnd)

	waitForDone(t, h.ctrl)
	require.Equal(t, []string{"/"}, h.navigator.visited())
	require.Empty(t, h.feedback.calls())
	require.Equal(t, fsm.StateFinished, h.ctrl.State())
}

func TestReviewSessionSuccessfulFeedbackNavigatesToFeedback(t *testing.T) {
	h := newHarness(t, reviewDescriptor())
	h.feedback.result = FeedbackResult{Success: true, FeedbackID: "f9"}

	require.NoError(t, h.ctrl.RequestStart(context.Background()))
	h.provider.emit(voice.EventCallStart)
	h.provider.say("assistant", voice.TranscriptTypeFinal, "Tell me about yourself")
	h.provider.say("user", voice.TranscriptTypeFinal, "I am a developer")
	h.provider.emit(voice.EventCallEnd)

	waitForDone(t, h.ctrl)
	require.Equal(t, []string{"/interview/i1/feedback"}, h.navigator.visited())

	calls := h.feedback.calls()
	require.Len(t, calls, 1)
	require.Equal(t, "i1", calls[0].InterviewID)
	require.Equal(t, "u1", calls[0].UserID)
	require.Empty(t, calls[0].FeedbackID)
	require.Equal(t, []transcript.Utterance{
		{Speaker: transcript.SpeakerAssistant, Text: "Tell me about yourself"},
		{Speaker: transcript.SpeakerUser, Text: "I am a developer"},
	}, calls[0].Transcript)
}

func TestReviewSessionPassesExistingFeedbackID(t *testing.T) {
	desc := reviewDescriptor()
	desc.FeedbackID = "f1"
	h := newHarness(t, desc)
	h.feedback.result = FeedbackResult{Success: true, FeedbackID: "f1"}

	require.NoError(t, h.ctrl.RequestStart(context.Background()))
	h.provider.emit(voice.EventCallEnd)

	waitForDone(t, h.ctrl)
	calls := h.feedback.calls()
	require.Len(t, calls, 1)
	require.Equal(t, "f1", calls[0].FeedbackID)
}

func TestReviewSessionFailedFeedbackNavigatesHome(t *testing.T) {
	tests := []struct {
		name   string
		result FeedbackResult
		err    error
	}{
		{name: "success false", result: FeedbackResult{Success: false}},
		{name: "missing feedback id", result: FeedbackResult{Success: true}},
		{name: "generator error", err: errFeedbackUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, reviewDescriptor())
			h.feedback.result = tc.result
			h.feedback.err = tc.err

			require.NoError(t, h.ctrl.RequestStart(context.Background()))
			h.provider.emit(voice.EventCallStart)
			h.provider.say("assistant", voice.TranscriptTypeFinal, "Tell me about yourself")
			h.provider.emit(voice.EventCallEnd)

			waitForDone(t, h.ctrl)
			require.Equal(t, []string{"/"}, h.navigator.visited())
			require.Len(t, h.feedback.calls(), 1)
		})
	}
}

func TestOnlyFinalTranscriptsAreAppended(t *testing.T) {
	h := newHarness(t, reviewDescriptor())

	require.NoError(t, h.ctrl.RequestStart(context.Background()))
	h.provider.emit(voice.EventCallStart)
	h.provider.say("user", voice.TranscriptTypePartial, "Hel")
	h.provider.say("user", voice.TranscriptTypeFinal, "Hello")
	h.provider.Emit(voice.Event{Type: voice.EventMessage, Message: voice.Message{Type: "function-call"}})
	h.provider.say("tool", voice.TranscriptTypeFinal, "ignored")

	require.Equal(t, []transcript.Utterance{{Speaker: transcript.SpeakerUser, Text: "Hello"}}, h.ctrl.Transcript())
	require.Equal(t, fsm.StateActive, h.ctrl.State())
}

func TestTranscriptAcceptedWhileConnecting(t *testing.T) {
	h := newHarness(t, reviewDescriptor())

	require.NoError(t, h.ctrl.RequestStart(context.Background()))
	h.provider.say("assistant", voice.TranscriptTypeFinal, "Hi there")
	require.Len(t, h.ctrl.Transcript(), 1)
}

func TestTranscriptIgnoredBeforeStart(t *testing.T) {
	h := newHarness(t, reviewDescriptor())

	h.provider.say("assistant", voice.TranscriptTypeFinal, "too early")
	require.Empty(t, h.ctrl.Transcript())
}

func TestTranscriptFrozenAfterFinished(t *testing.T) {
	h := newHarness(t, reviewDescriptor())
	h.feedback.result = FeedbackResult{Success: true, FeedbackID: "f9"}

	require.NoError(t, h.ctrl.RequestStart(context.Background()))
	h.provider.emit(voice.EventCallStart)
	h.provider.say("user", voice.TranscriptTypeFinal, "one")
	h.provider.emit(voice.EventCallEnd)
	h.provider.say("user", voice.TranscriptTypeFinal, "late")

	waitForDone(t, h.ctrl)
	require.Equal(t, []transcript.Utterance{{Speaker: transcript.SpeakerUser, Text: "one"}}, h.ctrl.Transcript())
	require.Len(t, h.feedback.calls()[0].Transcript, 1)
}

func TestCallEndDeliveredTwiceDispatchesOnce(t *testing.T) {
	h := newHarness(t, reviewDescriptor())
	h.feedback.result = FeedbackResult{Success: true, FeedbackID: "f9"}

	require.NoError(t, h.ctrl.RequestStart(context.Background()))
	h.provider.emit(voice.EventCallStart)
	h.provider.emit(voice.EventCallEnd)
	h.provider.emit(voice.EventCallEnd)

	waitForDone(t, h.ctrl)
	require.Len(t, h.feedback.calls(), 1)
	require.Len(t, h.navigator.visited(), 1)
}

func TestRequestStopFinishesBeforeProviderAcknowledges(t *testing.T) {
	h := newHarness(t, Descriptor{Kind: KindGenerate, UserID: "u1"})

	var stateAtStop fsm.State
	h.provider.onStop = func() {
		stateAtStop = h.ctrl.State()
		h.provider.emit(voice.EventCallEnd)
	}

	require.NoError(t, h.ctrl.RequestStart(context.Background()))
	h.provider.emit(voice.EventCallStart)
	require.NoError(t, h.ctrl.RequestStop(context.Background()))

	require.Equal(t, fsm.StateFinished, stateAtStop)
	require.Equal(t, 1, h.provider.stopCalls())

	waitForDone(t, h.ctrl)
	require.Equal(t, []string{"/"}, h.navigator.visited())
}

func TestRequestStopSurvivesCancelledContext(t *testing.T) {
	h := newHarness(t, reviewDescriptor())
	h.feedback.result = FeedbackResult{Success: true, FeedbackID: "f9"}

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.ctrl.RequestStart(ctx))
	cancel()
	require.NoError(t, h.ctrl.RequestStop(ctx))

	waitForDone(t, h.ctrl)
	require.Equal(t, []string{"/interview/i1/feedback"}, h.navigator.visited())
}

func TestStateFollowsMonotonicPath(t *testing.T) {
	h := newHarness(t, Descriptor{Kind: KindGenerate, UserID: "u1"})

	require.Equal(t, fsm.StateInactive, h.ctrl.State())
	require.NoError(t, h.ctrl.RequestStart(context.Background()))
	h.provider.emit(voice.EventCallStart)
	h.provider.emit(voice.EventCallStart)
	h.provider.emit(voice.EventCallEnd)

	waitForDone(t, h.ctrl)
	require.Equal(t, []fsm.State{fsm.StateConnecting, fsm.StateActive, fsm.StateFinished}, h.indicator.stateHistory())
}

func TestConnectingStraightToFinished(t *testing.T) {
	h := newHarness(t, Descriptor{Kind: KindGenerate, UserID: "u1"})

	require.NoError(t, h.ctrl.RequestStart(context.Background()))
	require.NoError(t, h.ctrl.RequestStop(context.Background()))

	waitForDone(t, h.ctrl)
	require.Equal(t, []fsm.State{fsm.StateConnecting, fsm.StateFinished}, h.indicator.stateHistory())
}

func TestRequestStartGuards(t *testing.T) {
	h := newHarness(t, Descriptor{Kind: KindGenerate, UserID: "u1"})

	require.NoError(t, h.ctrl.RequestStart(context.Background()))
	err := h.ctrl.RequestStart(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid transition")

	h.provider.emit(voice.EventCallEnd)
	waitForDone(t, h.ctrl)

	require.ErrorIs(t, h.ctrl.RequestStart(context.Background()), ErrSessionFinished)
	require.Len(t, h.provider.startCalls(), 1)
}

func TestRequestStopFromInactiveRejected(t *testing.T) {
	h := newHarness(t, Descriptor{Kind: KindGenerate, UserID: "u1"})

	err := h.ctrl.RequestStop(context.Background())
	require.Error(t, err)
	require.Equal(t, fsm.StateInactive, h.ctrl.State())
	require.Zero(t, h.provider.stopCalls())
}

func TestRequestStartProviderFailureStaysConnecting(t *testing.T) {
	h := newHarness(t, reviewDescriptor())
	h.provider.startErr = errFeedbackUnavailable

	err := h.ctrl.RequestStart(context.Background())
	require.ErrorIs(t, err, errFeedbackUnavailable)
	require.Equal(t, fsm.StateConnecting, h.ctrl.State())
	require.Len(t, h.indicator.errors, 1)
}

func TestRequestStartSendsDerivedPayload(t *testing.T) {
	h := newHarness(t, reviewDescriptor())

	require.NoError(t, h.ctrl.RequestStart(context.Background()))
	starts := h.provider.startCalls()
	require.Len(t, starts, 1)
	require.Equal(t, InterviewerTemplate, starts[0].TemplateID)
	require.Equal(t, "- What is S3?\n- What is IAM?", starts[0].Variables["questions"])
}

func TestSpeechEventsToggleSpeaking(t *testing.T) {
	h := newHarness(t, reviewDescriptor())

	require.False(t, h.ctrl.IsSpeaking())
	h.provider.emit(voice.EventSpeechStart)
	require.True(t, h.ctrl.IsSpeaking())
	h.provider.emit(voice.EventSpeechEnd)
	require.False(t, h.ctrl.IsSpeaking())
	require.Equal(t, []bool{true, false}, h.indicator.speaking)
	require.Equal(t, fsm.StateInactive, h.ctrl.State())
}

func TestErrorEventDoesNotChangeState(t *testing.T) {
	h := newHarness(t, reviewDescriptor())

	require.NoError(t, h.ctrl.RequestStart(context.Background()))
	h.provider.emit(voice.EventCallStart)
	h.provider.Emit(voice.Event{Type: voice.EventError, Err: errFeedbackUnavailable})
	h.provider.emit(voice.EventError)

	require.Equal(t, fsm.StateActive, h.ctrl.State())
	select {
	case <-h.ctrl.Done():
		t.Fatal("terminal action must not fire on provider error")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestCloseUnsubscribesAllHandlers(t *testing.T) {
	provider := newFakeProvider()
	ctrl, err := NewController(Deps{Provider: provider}, reviewDescriptor(), Templates{})
	require.NoError(t, err)

	for _, event := range voice.Events {
		require.Equal(t, 1, provider.Subscribers(event), event)
	}

	ctrl.Close()
	ctrl.Close()
	for _, event := range voice.Events {
		require.Zero(t, provider.Subscribers(event), event)
	}

	provider.emit(voice.EventCallEnd)
	require.Equal(t, fsm.StateInactive, ctrl.State())
}

func TestNewControllerValidation(t *testing.T) {
	_, err := NewController(Deps{}, reviewDescriptor(), Templates{})
	require.Error(t, err)

	_, err = NewController(Deps{Provider: newFakeProvider()}, Descriptor{Kind: KindReview, UserID: "u1"}, Templates{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "interview id")
}

func TestDefaultFeedbackGeneratorFailsClosed(t *testing.T) {
	provider := newFakeProvider()
	navigator := &recordingNavigator{}
	ctrl, err := NewController(Deps{Provider: provider, Navigator: navigator}, reviewDescriptor(), Templates{})
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.RequestStart(context.Background()))
	provider.emit(voice.EventCallEnd)

	waitForDone(t, ctrl)
	require.Equal(t, []string{"/"}, navigator.visited())
}

func TestHandleStatusStopAndUnknownCommand(t *testing.T) {
	h := newHarness(t, Descriptor{Kind: KindGenerate, UserID: "u1"})

	status := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.True(t, status.OK)
	require.Equal(t, string(fsm.StateInactive), status.State)

	stopFromInactive := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.False(t, stopFromInactive.OK)
	require.Contains(t, stopFromInactive.Error, "cannot stop from state INACTIVE")

	require.NoError(t, h.ctrl.RequestStart(context.Background()))
	h.provider.emit(voice.EventCallStart)

	stop := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.True(t, stop.OK)
	require.Equal(t, string(fsm.StateFinished), stop.State)
	waitForDone(t, h.ctrl)

	unknown := h.ctrl.Handle(context.Background(), ipc.Request{Command: "definitely-unknown"})
	require.False(t, unknown.OK)
	require.Contains(t, unknown.Error, "unknown command")
}

func TestHandleTranscriptReportsFinalLines(t *testing.T) {
	h := newHarness(t, reviewDescriptor())

	require.NoError(t, h.ctrl.RequestStart(context.Background()))
	h.provider.emit(voice.EventCallStart)
	h.provider.emit(voice.EventSpeechStart)
	h.provider.say("assistant", voice.TranscriptTypeFinal, "What is S3?")
	h.provider.say("user", voice.TranscriptTypePartial, "Object")

	resp := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandTranscript})
	require.True(t, resp.OK)
	require.Equal(t, string(fsm.StateActive), resp.State)
	require.True(t, resp.Speaking)
	require.Equal(t, 1, resp.Utterances)
	require.Equal(t, []ipc.Line{{Role: "assistant", Content: "What is S3?"}}, resp.Transcript)

	status := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.Equal(t, 1, status.Utterances)
	require.Nil(t, status.Transcript)
}

// restartingIndicator requests a new call as soon as FINISHED is shown.
type restartingIndicator struct {
	recordingIndicator
	ctrl       *Controller
	restartErr chan error
}

func (i *restartingIndicator) ShowState(ctx context.Context, s fsm.State) {
	i.recordingIndicator.ShowState(ctx, s)
	if s == fsm.StateFinished {
		i.restartErr <- i.ctrl.RequestStart(ctx)
	}
}

func TestStartDuringFinishCannotReopenSession(t *testing.T) {
	provider := newFakeProvider()
	navigator := &recordingNavigator{}
	indicator := &restartingIndicator{restartErr: make(chan error, 1)}
	ctrl, err := NewController(Deps{
		Provider:  provider,
		Navigator: navigator,
		Indicator: indicator,
	}, Descriptor{Kind: KindGenerate, UserID: "u1"}, Templates{WorkflowID: "wf-123"})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)
	indicator.ctrl = ctrl

	require.NoError(t, ctrl.RequestStart(context.Background()))
	provider.emit(voice.EventCallStart)
	provider.emit(voice.EventCallEnd)

	require.ErrorIs(t, <-indicator.restartErr, ErrSessionFinished)
	waitForDone(t, ctrl)
	require.Equal(t, fsm.StateFinished, ctrl.State())
	require.Len(t, provider.startCalls(), 1)
	require.Equal(t, []string{"/"}, navigator.visited())
}
