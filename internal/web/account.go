package web

import (
	"errors"
	"net/http"

	"github.com/rbright/cloudprep/internal/auth"
	"github.com/rbright/cloudprep/internal/route"
)

const (
	msgAccountCreated = "Account created successfully. Please sign in."
	msgSignedIn       = "Signed in successfully."
	msgUserExists     = "User already exists. Please sign in."
	msgSignInFailed   = "Sign in Failed. Please try again."
)

type authPage struct {
	layout
	SignIn bool
	Name   string
	Email  string
	Error  string
	Fields auth.FieldErrors
}

func (s *Server) authPageFor(r *http.Request, signIn bool) authPage {
	title := "Sign up"
	if signIn {
		title = "Sign in"
	}
	return authPage{layout: s.layoutFor(r, title), SignIn: signIn}
}

// redirectSignedIn sends visitors with a live session to the dashboard.
func (s *Server) redirectSignedIn(w http.ResponseWriter, r *http.Request) bool {
	if _, err := s.auth.CurrentUser(r); err == nil {
		http.Redirect(w, r, route.Home, http.StatusSeeOther)
		return true
	}
	return false
}

func (s *Server) signInForm(w http.ResponseWriter, r *http.Request) {
	if s.redirectSignedIn(w, r) {
		return
	}
	s.render(w, http.StatusOK, "auth", s.authPageFor(r, true))
}

func (s *Server) signUpForm(w http.ResponseWriter, r *http.Request) {
	if s.redirectSignedIn(w, r) {
		return
	}
	s.render(w, http.StatusOK, "auth", s.authPageFor(r, false))
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	in := auth.SignUpInput{
		Name:     r.PostForm.Get("name"),
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	}
	page := s.authPageFor(r, false)
	page.Name, page.Email = in.Name, in.Email

	_, err := s.auth.SignUp(r.Context(), in)
	var fields auth.FieldErrors
	switch {
	case err == nil:
		http.Redirect(w, r, route.WithToast(route.SignIn, msgAccountCreated), http.StatusSeeOther)
	case errors.As(err, &fields):
		page.Fields = fields
		s.render(w, http.StatusUnprocessableEntity, "auth", page)
	case errors.Is(err, auth.ErrEmailTaken):
		page.Error = msgUserExists
		s.render(w, http.StatusConflict, "auth", page)
	default:
		s.serverError(w, r, err)
	}
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	in := auth.SignInInput{
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	}
	page := s.authPageFor(r, true)
	page.Email = in.Email

	login, err := s.auth.SignIn(r.Context(), in)
	var fields auth.FieldErrors
	switch {
	case err == nil:
		s.auth.SetCookie(w, login)
		http.Redirect(w, r, route.WithToast(route.Home, msgSignedIn), http.StatusSeeOther)
	case errors.As(err, &fields):
		page.Fields = fields
		s.render(w, http.StatusUnprocessableEntity, "auth", page)
	case errors.Is(err, auth.ErrInvalidCredentials):
		page.Error = msgSignInFailed
		s.render(w, http.StatusUnauthorized, "auth", page)
	default:
		s.serverError(w, r, err)
	}
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.SignOut(r); err != nil {
		s.logger.Warn("sign out failed", "error", err.Error())
	}
	s.auth.ClearCookie(w)
	http.Redirect(w, r, route.SignIn, http.StatusSeeOther)
}
