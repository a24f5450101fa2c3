// Package web serves the dashboard, interview and feedback pages, the
// account forms, and the question generation API.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rbright/cloudprep/internal/auth"
	"github.com/rbright/cloudprep/internal/questions"
	"github.com/rbright/cloudprep/internal/route"
	"github.com/rbright/cloudprep/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	latestLimit     = 20
	shutdownTimeout = 5 * time.Second
)

var pageNames = []string{"dashboard", "interview", "new_interview", "feedback", "auth"}

// Options wires the server's collaborators. Auth, Store and Questions are required.
type Options struct {
	Auth      *auth.Service
	Store     store.Store
	Questions *questions.Service
	Logger    *slog.Logger
	Now       func() time.Time
}

// Server renders pages and serves the JSON API.
type Server struct {
	auth      *auth.Service
	store     store.Store
	questions *questions.Service
	logger    *slog.Logger
	now       func() time.Time
	pages     map[string]*template.Template
	handler   http.Handler
}

// New parses the embedded templates and builds the route table.
func New(opts Options) (*Server, error) {
	switch {
	case opts.Auth == nil:
		return nil, errors.New("web: auth service is required")
	case opts.Store == nil:
		return nil, errors.New("web: store is required")
	case opts.Questions == nil:
		return nil, errors.New("web: question service is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		auth:      opts.Auth,
		store:     opts.Store,
		questions: opts.Questions,
		logger:    opts.Logger,
		now:       opts.Now,
		pages:     pages,
	}
	s.handler = s.logRequests(s.routes())
	return s, nil
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /{$}", s.requireUser(s.dashboard))
	mux.Handle("GET "+route.NewInterview, s.requireUser(s.newInterview))
	mux.Handle("GET /interview/{id}", s.requireUser(s.interview))
	mux.Handle("GET /interview/{id}/feedback", s.requireUser(s.feedback))

	mux.HandleFunc("GET "+route.SignIn, s.signInForm)
	mux.HandleFunc("POST "+route.SignIn, s.signIn)
	mux.HandleFunc("GET "+route.SignUp, s.signUpForm)
	mux.HandleFunc("POST "+route.SignUp, s.signUp)
	mux.HandleFunc("POST "+route.SignOut, s.signOut)

	mux.HandleFunc("GET "+route.Generate, s.generateInfo)
	mux.HandleFunc("POST "+route.Generate, s.generate)
	mux.HandleFunc("GET "+route.Healthz, s.healthz)

	return mux
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on lis until ctx is cancelled, then shuts down.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(lis)
	}()
	s.logger.Info("http listening", "addr", lis.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// render executes a page into a buffer so template errors become a 500.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.logger.Error("unknown page", "page", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error("render page failed", "page", name, "error", err.Error())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Debug("write page failed", "page", name, "error", err.Error())
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
