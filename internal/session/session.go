// Package session drives one voice interview call: it maps provider events onto
// the call state machine, accumulates the transcript, and fires the terminal
// action once the call finishes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rbright/cloudprep/internal/fsm"
	"github.com/rbright/cloudprep/internal/ipc"
	"github.com/rbright/cloudprep/internal/route"
	"github.com/rbright/cloudprep/internal/transcript"
	"github.com/rbright/cloudprep/internal/voice"
)

// ErrSessionFinished is returned when a start is requested after the terminal
// action already ran.
var ErrSessionFinished = errors.New("call session already finished")

// Deps are the collaborators of a Controller. Only Provider is required.
type Deps struct {
	Logger    *slog.Logger
	Provider  voice.Provider
	Feedback  FeedbackGenerator
	Navigator Navigator
	Indicator Indicator
}

// Controller owns the state machine and transcript of one call session.
type Controller struct {
	logger    *slog.Logger
	provider  voice.Provider
	feedback  FeedbackGenerator
	navigator Navigator
	indicator Indicator
	desc      Descriptor
	templates Templates

	mu         sync.RWMutex
	state      fsm.State
	transcript []transcript.Utterance
	speaking   bool
	dispatched bool

	unsubscribe []func()
	closeOnce   sync.Once
	done        chan struct{}
}

// NewController validates the descriptor and subscribes to every provider
// event. Callers must Close the controller to release the subscriptions.
func NewController(deps Deps, desc Descriptor, templates Templates) (*Controller, error) {
	if deps.Provider == nil {
		return nil, errors.New("voice provider is required")
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	feedback := deps.Feedback
	if feedback == nil {
		feedback = FeedbackFunc(func(context.Context, FeedbackRequest) (FeedbackResult, error) {
			return FeedbackResult{}, errors.New("feedback generator not configured")
		})
	}
	navigator := deps.Navigator
	if navigator == nil {
		navigator = NavigateFunc(func(context.Context, string) error { return nil })
	}
	indicator := deps.Indicator
	if indicator == nil {
		indicator = noopIndicator{}
	}

	c := &Controller{
		logger:    logger,
		provider:  deps.Provider,
		feedback:  feedback,
		navigator: navigator,
		indicator: indicator,
		desc:      desc.clone(),
		templates: templates,
		state:     fsm.StateInactive,
		done:      make(chan struct{}),
	}

	c.unsubscribe = []func(){
		c.provider.On(voice.EventCallStart, c.onCallStart),
		c.provider.On(voice.EventCallEnd, c.onCallEnd),
		c.provider.On(voice.EventMessage, c.onMessage),
		c.provider.On(voice.EventSpeechStart, c.onSpeechStart),
		c.provider.On(voice.EventSpeechEnd, c.onSpeechEnd),
		c.provider.On(voice.EventError, c.onError),
	}
	return c, nil
}

// Close releases every provider subscription. It is safe to call repeatedly.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		for _, off := range c.unsubscribe {
			off()
		}
	})
}

// Descriptor returns a copy of the session descriptor.
func (c *Controller) Descriptor() Descriptor {
	return c.desc.clone()
}

// State returns the current state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Transcript returns a copy of the utterances recorded so far.
func (c *Controller) Transcript() []transcript.Utterance {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]transcript.Utterance(nil), c.transcript...)
}

// IsSpeaking reports whether the provider last signalled active speech.
func (c *Controller) IsSpeaking() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.speaking
}

// Done is closed once the terminal action has completed.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// transition applies one FSM event to the controller state. Reaching FINISHED
// for the first time claims the terminal action in the same critical section,
// so fire is true for exactly one caller and snapshot holds its transcript.
func (c *Controller) transition(event fsm.Event) (next fsm.State, fire bool, snapshot []transcript.Utterance, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err = fsm.Transition(c.state, event)
	if err != nil {
		return c.state, false, nil, err
	}
	c.state = next
	if next == fsm.StateFinished && !c.dispatched {
		c.dispatched = true
		fire = true
		snapshot = append([]transcript.Utterance(nil), c.transcript...)
	}
	return next, fire, snapshot, nil
}

// RequestStart moves to CONNECTING and asks the provider to start the call.
// A provider failure leaves the state at CONNECTING. Although the state machine
// permits a start from FINISHED, a controller serves a single call: once its
// terminal action has fired, RequestStart returns ErrSessionFinished.
func (c *Controller) RequestStart(ctx context.Context) error {
	c.mu.Lock()
	if c.dispatched {
		c.mu.Unlock()
		return ErrSessionFinished
	}
	next, err := fsm.Transition(c.state, fsm.EventStart)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = next
	c.mu.Unlock()

	c.indicator.ShowState(ctx, next)

	cfg := c.desc.StartConfig(c.templates)
	c.logger.Info("call starting",
		"kind", c.desc.Kind,
		"template", cfg.TemplateID,
		"interview_id", c.desc.InterviewID,
	)
	if err := c.provider.Start(ctx, cfg); err != nil {
		c.logger.Error("voice provider start failed", "error", err.Error())
		c.indicator.ShowError(ctx, "Unable to connect the call")
		return fmt.Errorf("start voice session: %w", err)
	}
	return nil
}

// RequestStop finishes the session immediately and then asks the provider to
// hang up; the local state does not wait for the provider's acknowledgment.
func (c *Controller) RequestStop(ctx context.Context) error {
	next, fire, snapshot, err := c.transition(fsm.EventStop)
	if err != nil {
		return err
	}
	c.indicator.ShowState(ctx, next)
	if fire {
		c.dispatch(context.WithoutCancel(ctx), snapshot)
	}

	if err := c.provider.Stop(ctx); err != nil {
		c.logger.Warn("voice provider stop failed", "error", err.Error())
	}
	return nil
}

func (c *Controller) onCallStart(voice.Event) {
	next, _, _, err := c.transition(fsm.EventCallStart)
	if err != nil {
		c.logger.Debug("call-start ignored", "reason", err.Error())
		return
	}
	c.indicator.ShowState(context.Background(), next)
}

func (c *Controller) onCallEnd(voice.Event) {
	next, fire, snapshot, err := c.transition(fsm.EventCallEnd)
	if err != nil {
		c.logger.Debug("call-end ignored", "reason", err.Error())
		return
	}
	c.indicator.ShowState(context.Background(), next)
	if fire {
		c.dispatch(context.Background(), snapshot)
	}
}

func (c *Controller) onMessage(ev voice.Event) {
	if !ev.Message.IsFinalTranscript() {
		return
	}
	speaker, ok := transcript.ParseSpeaker(ev.Message.Role)
	if !ok {
		c.logger.Debug("transcript with unknown role ignored", "role", ev.Message.Role)
		return
	}
	utterance := transcript.Utterance{Speaker: speaker, Text: ev.Message.Transcript}

	c.mu.Lock()
	if c.state != fsm.StateConnecting && c.state != fsm.StateActive {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("transcript dropped", "state", state)
		return
	}
	c.transcript = append(c.transcript, utterance)
	c.mu.Unlock()

	c.indicator.ShowUtterance(context.Background(), utterance)
}

func (c *Controller) onSpeechStart(voice.Event) {
	c.setSpeaking(true)
}

func (c *Controller) onSpeechEnd(voice.Event) {
	c.setSpeaking(false)
}

func (c *Controller) setSpeaking(speaking bool) {
	c.mu.Lock()
	c.speaking = speaking
	c.mu.Unlock()
	c.indicator.ShowSpeaking(context.Background(), speaking)
}

func (c *Controller) onError(ev voice.Event) {
	msg := "unknown provider error"
	if ev.Err != nil {
		msg = ev.Err.Error()
	}
	c.logger.Error("voice provider error", "error", msg, "state", c.State())
}

// dispatch runs the terminal action claimed by transition and closes done.
func (c *Controller) dispatch(ctx context.Context, snapshot []transcript.Utterance) {
	go func() {
		defer close(c.done)
		c.runTerminalAction(ctx, snapshot)
	}()
}

func (c *Controller) runTerminalAction(ctx context.Context, utterances []transcript.Utterance) {
	if c.desc.Kind == KindGenerate {
		c.navigate(ctx, route.Home)
		return
	}

	result, err := c.feedback.CreateFeedback(ctx, FeedbackRequest{
		InterviewID: c.desc.InterviewID,
		UserID:      c.desc.UserID,
		Transcript:  utterances,
		FeedbackID:  c.desc.FeedbackID,
	})
	if err != nil || !result.Success || result.FeedbackID == "" {
		fields := []any{
			"interview_id", c.desc.InterviewID,
			"utterances", len(utterances),
			"success", result.Success,
		}
		if err != nil {
			fields = append(fields, "error", err.Error())
		}
		c.logger.Error("save feedback failed", fields...)
		c.navigate(ctx, route.Home)
		return
	}

	c.logger.Info("feedback saved", "interview_id", c.desc.InterviewID, "feedback_id", result.FeedbackID)
	c.navigate(ctx, route.Feedback(c.desc.InterviewID))
}

func (c *Controller) navigate(ctx context.Context, path string) {
	if err := c.navigator.Navigate(ctx, path); err != nil {
		c.logger.Warn("navigation failed", "path", path, "error", err.Error())
	}
}

// Handle serves control-socket commands for the running session.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	state := string(c.State())
	switch req.Command {
	case ipc.CommandStatus:
		return c.snapshot(false)
	case ipc.CommandTranscript:
		return c.snapshot(true)
	case ipc.CommandStop:
		if err := c.RequestStop(ctx); err != nil {
			return ipc.Failure(state, "cannot stop from state %s", state)
		}
		resp := c.snapshot(false)
		resp.Message = "stop requested"
		return resp
	default:
		return ipc.Failure(state, "unknown command: %s", req.Command)
	}
}

func (c *Controller) snapshot(withLines bool) ipc.Response {
	c.mu.RLock()
	defer c.mu.RUnlock()

	resp := ipc.Response{
		OK:         true,
		State:      string(c.state),
		Speaking:   c.speaking,
		Utterances: len(c.transcript),
	}
	if withLines {
		resp.Transcript = make([]ipc.Line, 0, len(c.transcript))
		for _, u := range c.transcript {
			resp.Transcript = append(resp.Transcript, ipc.Line{Role: string(u.Speaker), Content: u.Text})
		}
	}
	return resp
}
