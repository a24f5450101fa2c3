// Package feedback scores finished interview transcripts with a language
// model and persists the assessment.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/cloudprep/internal/llm"
	"github.com/rbright/cloudprep/internal/session"
	"github.com/rbright/cloudprep/internal/store"
	"github.com/rbright/cloudprep/internal/transcript"
)

// Categories are the assessment dimensions, in display order.
var Categories = []string{
	"Communication Skills",
	"Technical Knowledge",
	"Problem-Solving",
	"Cultural & Role Fit",
	"Confidence & Clarity",
}

const systemPrompt = "You are a professional interviewer analyzing a mock interview. " +
	"Your task is to evaluate the candidate based on structured categories."

// Assessment is the JSON document the model must return.
type Assessment struct {
	TotalScore          int                   `json:"totalScore"`
	CategoryScores      []store.CategoryScore `json:"categoryScores"`
	Strengths           []string              `json:"strengths"`
	AreasForImprovement []string              `json:"areasForImprovement"`
	FinalAssessment     string                `json:"finalAssessment"`
}

// Generator implements session.FeedbackGenerator.
type Generator struct {
	llm    llm.Client
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

var _ session.FeedbackGenerator = (*Generator)(nil)

// New returns a Generator. A nil logger discards output.
func New(client llm.Client, st store.Store, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{llm: client, store: st, logger: logger, now: time.Now}
}

// CreateFeedback scores req.Transcript and saves it. Every failure reports
// Success=false alongside the cause.
func (g *Generator) CreateFeedback(ctx context.Context, req session.FeedbackRequest) (session.FeedbackResult, error) {
	if _, err := g.store.InterviewByID(ctx, req.InterviewID); err != nil {
		return session.FeedbackResult{}, fmt.Errorf("load interview %s: %w", req.InterviewID, err)
	}

	text, err := g.llm.Generate(ctx, llm.Request{
		System: systemPrompt,
		Prompt: BuildPrompt(req.Transcript),
		JSON:   true,
	})
	if err != nil {
		return session.FeedbackResult{}, fmt.Errorf("generate assessment: %w", err)
	}

	assessment, err := ParseAssessment(text)
	if err != nil {
		return session.FeedbackResult{}, err
	}

	saved, err := g.store.SaveFeedback(ctx, store.Feedback{
		ID:                  req.FeedbackID,
		InterviewID:         req.InterviewID,
		UserID:              req.UserID,
		TotalScore:          assessment.TotalScore,
		CategoryScores:      assessment.CategoryScores,
		Strengths:           assessment.Strengths,
		AreasForImprovement: assessment.AreasForImprovement,
		FinalAssessment:     assessment.FinalAssessment,
		CreatedAt:           g.now(),
	})
	if err != nil {
		return session.FeedbackResult{}, fmt.Errorf("save feedback: %w", err)
	}

	g.logger.Info("feedback generated",
		"interview_id", req.InterviewID,
		"feedback_id", saved.ID,
		"total_score", saved.TotalScore,
		"utterances", len(req.Transcript),
	)
	return session.FeedbackResult{Success: true, FeedbackID: saved.ID}, nil
}

// BuildPrompt renders the scoring instructions around the transcript.
func BuildPrompt(utterances []transcript.Utterance) string {
	var b strings.Builder
	b.WriteString("You are an AI interviewer analyzing a mock interview. ")
	b.WriteString("Your task is to evaluate the candidate based on structured categories. ")
	b.WriteString("Be thorough and detailed in your analysis. Don't be lenient with the candidate. ")
	b.WriteString("If there are mistakes or areas for improvement, point them out.\n\n")
	b.WriteString("Transcript:\n")
	b.WriteString(transcript.Format(utterances))
	b.WriteString("\nPlease score the candidate from 0 to 100 in the following areas. ")
	b.WriteString("Do not add categories other than the ones provided:\n")
	for _, name := range Categories {
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	b.WriteString("\nReply with a JSON object with the keys totalScore, categoryScores ")
	b.WriteString("(array of {name, score, comment}), strengths, areasForImprovement and finalAssessment.")
	return b.String()
}

// ParseAssessment decodes and validates a model reply.
func ParseAssessment(text string) (Assessment, error) {
	var a Assessment
	if err := json.Unmarshal([]byte(llm.ExtractJSON(text)), &a); err != nil {
		return Assessment{}, fmt.Errorf("decode assessment: %w", err)
	}
	if a.TotalScore < 0 || a.TotalScore > 100 {
		return Assessment{}, fmt.Errorf("total score %d out of range", a.TotalScore)
	}
	if len(a.CategoryScores) == 0 {
		return Assessment{}, errors.New("assessment has no category scores")
	}

	known := make(map[string]bool, len(Categories))
	for _, name := range Categories {
		known[name] = true
	}
	for _, c := range a.CategoryScores {
		if !known[c.Name] {
			return Assessment{}, fmt.Errorf("unknown category %q", c.Name)
		}
		if c.Score < 0 || c.Score > 100 {
			return Assessment{}, fmt.Errorf("category %q score %d out of range", c.Name, c.Score)
		}
	}
	if strings.TrimSpace(a.FinalAssessment) == "" {
		return Assessment{}, errors.New("assessment missing final assessment")
	}
	return a, nil
}
