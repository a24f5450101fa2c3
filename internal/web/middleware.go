package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rbright/cloudprep/internal/auth"
	"github.com/rbright/cloudprep/internal/route"
	"github.com/rbright/cloudprep/internal/store"
)

type userKey struct{}

func userFrom(ctx context.Context) store.User {
	user, _ := ctx.Value(userKey{}).(store.User)
	return user
}

// requireUser redirects anonymous requests to the sign-in page.
func (s *Server) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.auth.CurrentUser(r)
		if errors.Is(err, auth.ErrUnauthenticated) {
			http.Redirect(w, r, route.SignIn, http.StatusSeeOther)
			return
		}
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}
