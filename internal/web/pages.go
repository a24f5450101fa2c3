package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rbright/cloudprep/internal/route"
	"github.com/rbright/cloudprep/internal/store"
)

// layout is the data every page shares.
type layout struct {
	Title string
	User  *store.User
	Toast string
}

func (s *Server) layoutFor(r *http.Request, title string) layout {
	l := layout{Title: title, Toast: strings.TrimSpace(r.URL.Query().Get("toast"))}
	if user := userFrom(r.Context()); user.ID != "" {
		l.User = &user
	}
	return l
}

type dashboardPage struct {
	layout
	Yours     []Card
	Available []Card
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFrom(ctx)

	mine, err := s.store.InterviewsByUser(ctx, user.ID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	latest, err := s.store.LatestInterviews(ctx, user.ID, latestLimit)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	page := dashboardPage{layout: s.layoutFor(r, "Dashboard")}
	if page.Yours, err = s.cards(ctx, mine, user.ID); err != nil {
		s.serverError(w, r, err)
		return
	}
	if page.Available, err = s.cards(ctx, latest, user.ID); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, http.StatusOK, "dashboard", page)
}

type newInterviewPage struct {
	layout
	Command string
}

func (s *Server) newInterview(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "new_interview", newInterviewPage{
		layout:  s.layoutFor(r, "Start an Interview"),
		Command: "cloudprep generate",
	})
}

type interviewPage struct {
	layout
	Interview store.Interview
	Type      string
	Command   string
}

func (s *Server) interview(w http.ResponseWriter, r *http.Request) {
	iv, ok := s.loadInterview(w, r)
	if !ok {
		return
	}
	s.render(w, http.StatusOK, "interview", interviewPage{
		layout:    s.layoutFor(r, iv.Role+" Interview"),
		Interview: iv,
		Type:      normalizeType(iv.Type),
		Command:   "cloudprep interview " + iv.ID,
	})
}

type feedbackPage struct {
	layout
	Interview store.Interview
	Feedback  *store.Feedback
	Date      string
}

func (s *Server) feedback(w http.ResponseWriter, r *http.Request) {
	iv, ok := s.loadInterview(w, r)
	if !ok {
		return
	}

	page := feedbackPage{
		layout:    s.layoutFor(r, "Feedback on the "+iv.Role+" Interview"),
		Interview: iv,
	}
	fb, err := s.store.FeedbackByInterview(r.Context(), iv.ID, userFrom(r.Context()).ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		s.serverError(w, r, err)
		return
	default:
		page.Feedback = &fb
		page.Date = fb.CreatedAt.Format(dateLayout + " 3:04 PM")
	}
	s.render(w, http.StatusOK, "feedback", page)
}

// loadInterview redirects home when the path names no interview.
func (s *Server) loadInterview(w http.ResponseWriter, r *http.Request) (store.Interview, bool) {
	iv, err := s.store.InterviewByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		http.Redirect(w, r, route.Home, http.StatusSeeOther)
		return store.Interview{}, false
	}
	if err != nil {
		s.serverError(w, r, err)
		return store.Interview{}, false
	}
	return iv, true
}
