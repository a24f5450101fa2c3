// Package auth manages accounts and cookie-backed browser sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rbright/cloudprep/internal/store"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when email or password do not match.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUnauthenticated is returned when a request carries no live session.
	ErrUnauthenticated = errors.New("not signed in")
)

const minFieldLength = 3

// FieldErrors maps form fields to validation messages.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e[field])
	}
	return strings.Join(parts, "; ")
}

// SignUpInput is the sign-up form.
type SignUpInput struct {
	Name     string
	Email    string
	Password string
}

// Validate applies the sign-up form rules.
func (in SignUpInput) Validate() error {
	errs := FieldErrors{}
	if len(strings.TrimSpace(in.Name)) < minFieldLength {
		errs["name"] = "must be at least 3 characters"
	}
	validateCredentials(errs, in.Email, in.Password)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SignInInput is the sign-in form.
type SignInInput struct {
	Email    string
	Password string
}

// Validate applies the sign-in form rules.
func (in SignInInput) Validate() error {
	errs := FieldErrors{}
	validateCredentials(errs, in.Email, in.Password)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateCredentials(errs FieldErrors, email, password string) {
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		errs["email"] = "must be a valid email"
	}
	if len(password) < minFieldLength {
		errs["password"] = "must be at least 3 characters"
	}
}

// Options configures a Service.
type Options struct {
	Secret     []byte
	CookieName string
	SessionTTL time.Duration
	Secure     bool
	Logger     *slog.Logger
}

// Service signs users up and in and resolves the session of a request.
type Service struct {
	store      store.Store
	secret     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
	logger     *slog.Logger
	now        func() time.Time
}

// New returns a Service. Secret must be non-empty.
func New(st store.Store, opts Options) (*Service, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	if opts.CookieName == "" {
		opts.CookieName = "session"
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:      st,
		secret:     opts.Secret,
		cookieName: opts.CookieName,
		ttl:        opts.SessionTTL,
		secure:     opts.Secure,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// SignUp registers a new account with a bcrypt password hash.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (store.User, error) {
	if err := in.Validate(); err != nil {
		return store.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, store.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		PasswordHash: string(hash),
	})
	if errors.Is(err, store.ErrConflict) {
		return store.User{}, ErrEmailTaken
	}
	if err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user signed up", "user_id", user.ID)
	return user, nil
}

// Login is an issued session token.
type Login struct {
	User      store.User
	Token     string
	ExpiresAt time.Time
}

// SignIn checks credentials and opens a session.
func (s *Service) SignIn(ctx context.Context, in SignInInput) (Login, error) {
	if err := in.Validate(); err != nil {
		return Login{}, err
	}

	user, err := s.store.UserByEmail(ctx, in.Email)
	if errors.Is(err, store.ErrNotFound) {
		return Login{}, ErrInvalidCredentials
	}
	if err != nil {
		return Login{}, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return Login{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	sess := store.Session{
		ID:        store.NewID(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return Login{}, fmt.Errorf("create session: %w", err)
	}

	token, err := s.sign(sess)
	if err != nil {
		return Login{}, err
	}

	s.logger.Info("user signed in", "user_id", user.ID)
	return Login{User: user, Token: token, ExpiresAt: sess.ExpiresAt}, nil
}

func (s *Service) sign(sess store.Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   sess.UserID,
		IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

func (s *Service) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// SetCookie writes the session cookie for login.
func (s *Service) SetCookie(w http.ResponseWriter, login Login) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    login.Token,
		Path:     "/",
		Expires:  login.ExpiresAt,
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie.
func (s *Service) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// CurrentUser resolves cookie, session and user for r.
func (s *Service) CurrentUser(r *http.Request) (store.User, error) {
	sess, err := s.session(r)
	if err != nil {
		return store.User{}, err
	}
	user, err := s.store.UserByID(r.Context(), sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrUnauthenticated
	}
	return user, err
}

func (s *Service) session(r *http.Request) (store.Session, error) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return store.Session{}, ErrUnauthenticated
	}
	claims, err := s.parse(cookie.Value)
	if err != nil {
		s.logger.Debug("session token rejected", "error", err.Error())
		return store.Session{}, ErrUnauthenticated
	}

	sess, err := s.store.SessionByID(r.Context(), claims.ID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Session{}, ErrUnauthenticated
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("load session: %w", err)
	}
	if sess.Expired(s.now()) || sess.UserID != claims.Subject {
		return store.Session{}, ErrUnauthenticated
	}
	return sess, nil
}

// SignOut deletes the session carried by r, if any.
func (s *Service) SignOut(r *http.Request) error {
	sess, err := s.session(r)
	if errors.Is(err, ErrUnauthenticated) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.DeleteSession(r.Context(), sess.ID)
}

// SweepExpired deletes every expired session.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredSessions(ctx, s.now())
}
