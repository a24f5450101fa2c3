package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/cloudprep/internal/audio"
	"github.com/rbright/cloudprep/internal/cli"
	"github.com/rbright/cloudprep/internal/config"
	"github.com/rbright/cloudprep/internal/feedback"
	"github.com/rbright/cloudprep/internal/indicator"
	"github.com/rbright/cloudprep/internal/ipc"
	"github.com/rbright/cloudprep/internal/session"
	"github.com/rbright/cloudprep/internal/store"
	"github.com/rbright/cloudprep/internal/voice/vapi"
)

const (
	stopTimeout     = 5 * time.Second
	feedbackTimeout = 2 * time.Minute
)

// commandCall runs one voice call session in the foreground. The control
// socket is held for the whole call so `cloudprep stop` can end it.
func (r Runner) commandCall(ctx context.Context, cfg config.Config, logger *slog.Logger, inv cli.Invocation) error {
	if strings.TrimSpace(cfg.Secrets.VapiAPIKey) == "" {
		return errors.New("VAPI_API_KEY is not set")
	}
	if inv.Command == cli.CommandGenerate && strings.TrimSpace(cfg.Voice.WorkflowID) == "" {
		return errors.New("voice.workflow_id (or VAPI_WORKFLOW_ID) is required to generate interviews")
	}

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return err
	}
	listener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{ProbeTimeout: 180 * time.Millisecond, Retries: 8})
	if err != nil {
		return err
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	desc, err := describeCall(ctx, st, inv)
	if err != nil {
		return err
	}

	deps := session.Deps{Logger: logger}
	if desc.Kind == session.KindReview {
		client, err := newLLM(ctx, cfg)
		if err != nil {
			return err
		}
		deps.Feedback = feedback.New(client, st, logger)
	}

	selection, err := audio.SelectDevice(ctx, cfg.Voice.Audio.Input, cfg.Voice.Audio.Fallback)
	if err != nil {
		return err
	}
	if selection.Warning != "" {
		fmt.Fprintf(r.Stderr, "warning: %s\n", selection.Warning)
	}
	mic := audio.NewMicrophone(selection.Device)
	logger.Info("microphone selected", "device", selection.Device.ID, "fallback", selection.Fallback)

	opts := vapi.Options{
		BaseURL: cfg.Voice.APIBaseURL,
		APIKey:  cfg.Secrets.VapiAPIKey,
		Logger:  logger,
		Capture: mic.Stream,
	}
	if cfg.Voice.Audio.Playback {
		speaker, err := audio.OpenSpeaker()
		if err != nil {
			return err
		}
		defer speaker.Close()
		opts.Speaker = speaker
	}
	provider, err := vapi.New(opts)
	if err != nil {
		return err
	}

	term := indicator.NewTerminal(indicator.Options{Out: r.Stdout, Cues: cfg.Voice.Audio.Cues, Logger: logger})
	defer term.Wait()
	deps.Provider = provider
	deps.Indicator = term
	deps.Navigator = printNavigator(r.Stdout, cfg.Server.BaseURL)

	controller, err := session.NewController(deps, desc, session.Templates{WorkflowID: cfg.Voice.WorkflowID})
	if err != nil {
		return err
	}
	defer controller.Close()

	serverCtx, serverCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	if err := controller.RequestStart(ctx); err != nil {
		serverCancel()
		<-serverErrCh
		return err
	}

	waitForCall(ctx, controller, logger)

	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		return fmt.Errorf("ipc server failed: %w", serverErr)
	}
	logger.Info("call session complete",
		"kind", desc.Kind,
		"interview_id", desc.InterviewID,
		"utterances", len(controller.Transcript()),
		"state", controller.State(),
	)
	return nil
}

// waitForCall blocks until the terminal action ran. Cancelling ctx, e.g.
// with Ctrl-C, requests a stop instead of abandoning the call.
func waitForCall(ctx context.Context, controller *session.Controller, logger *slog.Logger) {
	select {
	case <-controller.Done():
		return
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	if err := controller.RequestStop(stopCtx); err != nil {
		logger.Debug("stop after interrupt ignored", "reason", err.Error())
	}

	select {
	case <-controller.Done():
	case <-time.After(feedbackTimeout):
		logger.Warn("timed out waiting for the call to finish")
	}
}

// describeCall resolves the account and, for reviews, the interview.
func describeCall(ctx context.Context, st store.Store, inv cli.Invocation) (session.Descriptor, error) {
	user, err := st.UserByEmail(ctx, inv.User)
	if errors.Is(err, store.ErrNotFound) {
		return session.Descriptor{}, fmt.Errorf("no account for %s; sign up first", inv.User)
	}
	if err != nil {
		return session.Descriptor{}, fmt.Errorf("load user: %w", err)
	}

	if inv.Command == cli.CommandGenerate {
		return session.Descriptor{Kind: session.KindGenerate, UserID: user.ID, UserName: user.Name}, nil
	}

	iv, err := st.InterviewByID(ctx, inv.InterviewID)
	if errors.Is(err, store.ErrNotFound) {
		return session.Descriptor{}, fmt.Errorf("interview %s not found", inv.InterviewID)
	}
	if err != nil {
		return session.Descriptor{}, fmt.Errorf("load interview: %w", err)
	}

	desc := session.Descriptor{
		Kind:        session.KindReview,
		UserID:      user.ID,
		UserName:    user.Name,
		InterviewID: iv.ID,
		Questions:   iv.Questions,
	}
	// Retaking an interview overwrites the previous feedback.
	existing, err := st.FeedbackByInterview(ctx, iv.ID, user.ID)
	switch {
	case err == nil:
		desc.FeedbackID = existing.ID
	case !errors.Is(err, store.ErrNotFound):
		return session.Descriptor{}, fmt.Errorf("load feedback: %w", err)
	}
	return desc, nil
}

// printNavigator prints the page the user should open next.
func printNavigator(out io.Writer, baseURL string) session.NavigateFunc {
	base := strings.TrimRight(baseURL, "/")
	return func(_ context.Context, path string) error {
		_, err := fmt.Fprintf(out, "Open %s%s\n", base, path)
		return err
	}
}
