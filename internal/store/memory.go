package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps every record in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]User
	interviews map[string]Interview
	feedback   map[string]Feedback
	sessions   map[string]Session
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]User),
		interviews: make(map[string]Interview),
		feedback:   make(map[string]Feedback),
		sessions:   make(map[string]Session),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(u.Email)
	for _, existing := range s.users {
		if existing.Email == email {
			return User{}, ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = NewID()
	}
	u.Email = email
	u.CreatedAt = stamp(u.CreatedAt)
	s.users[u.ID] = u
	return u, nil
}

func (s *MemoryStore) UserByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) UserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = normalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *MemoryStore) CreateInterview(_ context.Context, iv Interview) (Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if iv.ID == "" {
		iv.ID = NewID()
	}
	iv.CreatedAt = stamp(iv.CreatedAt)
	iv.Techstack = append([]string(nil), iv.Techstack...)
	iv.Questions = append([]string(nil), iv.Questions...)
	s.interviews[iv.ID] = iv
	return iv, nil
}

func (s *MemoryStore) InterviewByID(_ context.Context, id string) (Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	iv, ok := s.interviews[id]
	if !ok {
		return Interview{}, ErrNotFound
	}
	return iv, nil
}

func (s *MemoryStore) InterviewsByUser(_ context.Context, userID string) ([]Interview, error) {
	return s.filterInterviews(func(iv Interview) bool { return iv.UserID == userID }, 0), nil
}

func (s *MemoryStore) LatestInterviews(_ context.Context, excludeUserID string, limit int) ([]Interview, error) {
	return s.filterInterviews(func(iv Interview) bool {
		return iv.Finalized && iv.UserID != excludeUserID
	}, limit), nil
}

func (s *MemoryStore) filterInterviews(keep func(Interview) bool, limit int) []Interview {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Interview, 0)
	for _, iv := range s.interviews {
		if keep(iv) {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemoryStore) SaveFeedback(_ context.Context, f Feedback) (Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == "" {
		f.ID = NewID()
	}
	f.CreatedAt = stamp(f.CreatedAt)
	s.feedback[f.ID] = f
	return f, nil
}

func (s *MemoryStore) FeedbackByInterview(_ context.Context, interviewID, userID string) (Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		found Feedback
		ok    bool
	)
	for _, f := range s.feedback {
		if f.InterviewID != interviewID || f.UserID != userID {
			continue
		}
		if !ok || f.CreatedAt.After(found.CreatedAt) {
			found, ok = f, true
		}
	}
	if !ok {
		return Feedback{}, ErrNotFound
	}
	return found, nil
}

func (s *MemoryStore) CreateSession(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.ID]; exists {
		return ErrConflict
	}
	sess.CreatedAt = stamp(sess.CreatedAt)
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) SessionByID(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
