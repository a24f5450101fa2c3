package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rbright/cloudprep/internal/voice"
)

// Kind selects what a call session is for.
type Kind string

const (
	// KindGenerate collects interview parameters and generates new questions.
	KindGenerate Kind = "generate"
	// KindReview conducts an existing interview and scores it afterwards.
	KindReview Kind = "review"
)

// Descriptor is the caller-supplied, immutable description of one session.
type Descriptor struct {
	Kind        Kind
	UserID      string
	UserName    string
	InterviewID string
	FeedbackID  string
	Questions   []string
}

// Validate checks the fields each kind depends on.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.UserID) == "" {
		return errors.New("session descriptor requires a user id")
	}
	switch d.Kind {
	case KindGenerate:
		return nil
	case KindReview:
		if strings.TrimSpace(d.InterviewID) == "" {
			return errors.New("review session requires an interview id")
		}
		return nil
	default:
		return fmt.Errorf("unknown session kind %q", d.Kind)
	}
}

func (d Descriptor) clone() Descriptor {
	d.Questions = append([]string(nil), d.Questions...)
	return d
}

// InterviewerTemplate is the provider template used for review sessions.
const InterviewerTemplate = "interviewer"

// Templates names the provider templates each kind starts.
type Templates struct {
	// WorkflowID is the question-collection workflow for generate sessions.
	WorkflowID string
	// Interviewer defaults to InterviewerTemplate when empty.
	Interviewer string
}

// StartConfig derives the provider start payload for the descriptor.
func (d Descriptor) StartConfig(t Templates) voice.StartConfig {
	if d.Kind == KindGenerate {
		return voice.StartConfig{
			TemplateID: t.WorkflowID,
			Variables: map[string]string{
				"username": d.UserName,
				"userid":   d.UserID,
			},
		}
	}

	interviewer := t.Interviewer
	if interviewer == "" {
		interviewer = InterviewerTemplate
	}
	return voice.StartConfig{
		TemplateID: interviewer,
		Variables: map[string]string{
			"questions": FormatQuestions(d.Questions),
		},
	}
}

// FormatQuestions renders questions as newline-joined "- " bullet lines.
func FormatQuestions(questions []string) string {
	lines := make([]string, 0, len(questions))
	for _, q := range questions {
		lines = append(lines, "- "+q)
	}
	return strings.Join(lines, "\n")
}
