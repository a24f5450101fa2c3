package web

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/rbright/cloudprep/internal/route"
	"github.com/rbright/cloudprep/internal/store"
)

const (
	dateLayout       = "Jan 2, 2006"
	noScore          = "---"
	notTakenYetCopy  = "You haven't taken this interview yet. Take it now to improve your skills."
	checkFeedbackCTA = "Check Feedback"
	viewInterviewCTA = "View Interview"
)

var mixedType = regexp.MustCompile(`(?i)mix`)

var badgeClasses = map[string]string{
	"Behavioral": "badge-behavioral",
	"Mixed":      "badge-mixed",
	"Technical":  "badge-technical",
}

// Card is the dashboard view of one interview.
type Card struct {
	InterviewID string
	Role        string
	Type        string
	BadgeClass  string
	Techstack   []string
	Date        string
	Score       string
	Assessment  string
	Href        string
	LinkText    string
}

// NewCard builds the card for iv. fb is nil when the viewer has no feedback yet.
func NewCard(iv store.Interview, fb *store.Feedback, now time.Time) Card {
	typ := normalizeType(iv.Type)
	badge, ok := badgeClasses[typ]
	if !ok {
		badge = badgeClasses["Mixed"]
	}

	date := now
	switch {
	case fb != nil && !fb.CreatedAt.IsZero():
		date = fb.CreatedAt
	case !iv.CreatedAt.IsZero():
		date = iv.CreatedAt
	}

	card := Card{
		InterviewID: iv.ID,
		Role:        iv.Role,
		Type:        typ,
		BadgeClass:  badge,
		Techstack:   iv.Techstack,
		Date:        date.Format(dateLayout),
		Score:       noScore,
		Assessment:  notTakenYetCopy,
		Href:        route.Interview(iv.ID),
		LinkText:    viewInterviewCTA,
	}
	if fb == nil {
		return card
	}

	if fb.TotalScore != 0 {
		card.Score = strconv.Itoa(fb.TotalScore)
	}
	if fb.FinalAssessment != "" {
		card.Assessment = fb.FinalAssessment
	}
	card.Href = route.Feedback(iv.ID)
	card.LinkText = checkFeedbackCTA
	return card
}

func normalizeType(typ string) string {
	if mixedType.MatchString(typ) {
		return "Mixed"
	}
	return typ
}

// cards looks up the viewer's feedback for each interview.
func (s *Server) cards(ctx context.Context, interviews []store.Interview, userID string) ([]Card, error) {
	now := s.now()
	out := make([]Card, 0, len(interviews))
	for _, iv := range interviews {
		fb, err := s.store.FeedbackByInterview(ctx, iv.ID, userID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			out = append(out, NewCard(iv, nil, now))
		case err != nil:
			return nil, err
		default:
			out = append(out, NewCard(iv, &fb, now))
		}
	}
	return out, nil
}
