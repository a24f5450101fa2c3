// Package questions generates certification interview questions and stores
// them as a new interview.
package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rbright/cloudprep/internal/llm"
	"github.com/rbright/cloudprep/internal/store"
)

// Covers are the interview card images, one picked at random per interview.
var Covers = []string{
	"/covers/adobe.png",
	"/covers/amazon.png",
	"/covers/facebook.png",
	"/covers/hostinger.png",
	"/covers/pinterest.png",
	"/covers/quora.png",
	"/covers/reddit.png",
	"/covers/skype.png",
	"/covers/spotify.png",
	"/covers/telegram.png",
	"/covers/tiktok.png",
	"/covers/yahoo.png",
}

// Request describes the interview to generate.
type Request struct {
	Provider string
	Level    string
	Amount   int
	UserID   string
}

// Service generates and stores interviews.
type Service struct {
	llm           llm.Client
	store         store.Store
	logger        *slog.Logger
	defaultAmount int
	pick          func(n int) int
	now           func() time.Time
}

// NewService returns a Service. defaultAmount applies when a request omits Amount.
func NewService(client llm.Client, st store.Store, defaultAmount int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if defaultAmount <= 0 {
		defaultAmount = 5
	}
	return &Service{
		llm:           client,
		store:         st,
		logger:        logger,
		defaultAmount: defaultAmount,
		pick:          rand.IntN,
		now:           time.Now,
	}
}

// Validate checks the required request fields.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Provider) == "":
		return errors.New("provider is required")
	case strings.TrimSpace(r.Level) == "":
		return errors.New("level is required")
	case strings.TrimSpace(r.UserID) == "":
		return errors.New("userid is required")
	case r.Amount < 0:
		return errors.New("amount must not be negative")
	}
	return nil
}

// Generate asks the model for questions and stores the finalized interview.
func (s *Service) Generate(ctx context.Context, req Request) (store.Interview, error) {
	if err := req.Validate(); err != nil {
		return store.Interview{}, err
	}
	provider := strings.TrimSpace(req.Provider)
	level := strings.TrimSpace(req.Level)
	amount := req.Amount
	if amount == 0 {
		amount = s.defaultAmount
	}

	text, err := s.llm.Generate(ctx, llm.Request{Prompt: BuildPrompt(provider, level, amount)})
	if err != nil {
		return store.Interview{}, fmt.Errorf("generate questions: %w", err)
	}
	questions, err := ParseQuestions(text)
	if err != nil {
		return store.Interview{}, err
	}

	iv, err := s.store.CreateInterview(ctx, store.Interview{
		UserID:     strings.TrimSpace(req.UserID),
		Role:       provider + " " + level,
		Level:      level,
		Type:       "Technical",
		Provider:   provider,
		Techstack:  []string{"cloud computing", strings.ToLower(provider)},
		Questions:  questions,
		Finalized:  true,
		CoverImage: Covers[s.pick(len(Covers))],
		CreatedAt:  s.now(),
	})
	if err != nil {
		return store.Interview{}, fmt.Errorf("store interview: %w", err)
	}

	s.logger.Info("interview generated",
		"interview_id", iv.ID,
		"user_id", iv.UserID,
		"provider", provider,
		"level", level,
		"questions", len(questions),
	)
	return iv, nil
}

// BuildPrompt renders the question generation prompt.
func BuildPrompt(provider, level string, amount int) string {
	return fmt.Sprintf(`Prepare practice questions for a cloud certification quiz.
The cloud provider is %[1]s.
The certification level is %[2]s.
The tech stack used in the quiz is: cloud computing concepts and services specific to %[1]s.
The focus should be on technical questions related to the certification.
The amount of questions required is: %[3]d.
Please return only the questions, without any additional text.
The questions are going to be read by a voice assistant so do not use forward slash or asterisk or any other special characters which might break the voice assistant.
Return the questions formatted like this:
["Question 1", "Question 2", "Question 3"]

Thank you!
`, provider, level, amount)
}

// ParseQuestions decodes the model reply into a non-empty list of questions.
func ParseQuestions(text string) ([]string, error) {
	var raw []string
	if err := json.Unmarshal([]byte(llm.ExtractJSON(text)), &raw); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}

	out := make([]string, 0, len(raw))
	for _, q := range raw {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("model returned no questions")
	}
	return out, nil
}
