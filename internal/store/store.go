// Package store persists users, interviews, feedback, and browser sessions.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("record already exists")
)

// User is a registered account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Interview is a generated set of questions for one certification.
type Interview struct {
	ID         string
	UserID     string
	Role       string
	Level      string
	Type       string
	Provider   string
	Techstack  []string
	Questions  []string
	Finalized  bool
	CoverImage string
	CreatedAt  time.Time
}

// CategoryScore is one scored assessment dimension.
type CategoryScore struct {
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// Feedback is the assessment of one taken interview.
type Feedback struct {
	ID                  string
	InterviewID         string
	UserID              string
	TotalScore          int
	CategoryScores      []CategoryScore
	Strengths           []string
	AreasForImprovement []string
	FinalAssessment     string
	CreatedAt           time.Time
}

// Session is a server-side browser session.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store is the persistence surface used by the application.
type Store interface {
	CreateUser(ctx context.Context, u User) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)

	CreateInterview(ctx context.Context, iv Interview) (Interview, error)
	InterviewByID(ctx context.Context, id string) (Interview, error)
	// InterviewsByUser lists a user's interviews, newest first.
	InterviewsByUser(ctx context.Context, userID string) ([]Interview, error)
	// LatestInterviews lists finalized interviews by other users, newest first.
	LatestInterviews(ctx context.Context, excludeUserID string, limit int) ([]Interview, error)

	// SaveFeedback inserts f, or overwrites the record when f.ID is set.
	SaveFeedback(ctx context.Context, f Feedback) (Feedback, error)
	FeedbackByInterview(ctx context.Context, interviewID, userID string) (Feedback, error)

	CreateSession(ctx context.Context, s Session) error
	SessionByID(ctx context.Context, id string) (Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// NewID returns a random record id.
func NewID() string {
	return uuid.NewString()
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
