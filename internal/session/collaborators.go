package session

import (
	"context"

	"github.com/rbright/cloudprep/internal/fsm"
	"github.com/rbright/cloudprep/internal/transcript"
)

// FeedbackRequest is the input of one feedback generation.
type FeedbackRequest struct {
	InterviewID string
	UserID      string
	Transcript  []transcript.Utterance
	// FeedbackID overwrites an existing feedback record when set.
	FeedbackID string
}

// FeedbackResult reports whether feedback was generated and where it lives.
type FeedbackResult struct {
	Success    bool
	FeedbackID string
}

// FeedbackGenerator scores a finished interview transcript.
type FeedbackGenerator interface {
	CreateFeedback(context.Context, FeedbackRequest) (FeedbackResult, error)
}

// FeedbackFunc adapts a function to the FeedbackGenerator interface.
type FeedbackFunc func(context.Context, FeedbackRequest) (FeedbackResult, error)

func (f FeedbackFunc) CreateFeedback(ctx context.Context, req FeedbackRequest) (FeedbackResult, error) {
	return f(ctx, req)
}

// Navigator moves the user to a named screen.
type Navigator interface {
	Navigate(ctx context.Context, path string) error
}

// NavigateFunc adapts a function to the Navigator interface.
type NavigateFunc func(context.Context, string) error

func (f NavigateFunc) Navigate(ctx context.Context, path string) error {
	return f(ctx, path)
}

// Indicator is the display-only view of a running session.
type Indicator interface {
	ShowState(context.Context, fsm.State)
	ShowSpeaking(context.Context, bool)
	ShowUtterance(context.Context, transcript.Utterance)
	ShowError(context.Context, string)
}

// noopIndicator preserves session flow when no indicator is wired.
type noopIndicator struct{}

func (noopIndicator) ShowState(context.Context, fsm.State)                {}
func (noopIndicator) ShowSpeaking(context.Context, bool)                  {}
func (noopIndicator) ShowUtterance(context.Context, transcript.Utterance) {}
func (noopIndicator) ShowError(context.Context, string)                   {}
