package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Opts holds configuration shared by the SQL backends.
type Opts struct {
	DSN    string
	Logger *slog.Logger
}

// Option configures a SQL store.
type Option func(*Opts)

// WithDSN sets the database connection string or file path.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Opts) { o.Logger = logger }
}

func applyOpts(opts []Option) Opts {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// dialect isolates the differences between the SQL drivers.
type dialect struct {
	name          string
	numbered      bool
	isUniqueError func(error) bool
}

// SQLStore implements Store over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

func newSQLStore(db *sql.DB, d dialect, migrations string, logger *slog.Logger) (*SQLStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}
	if _, err := db.ExecContext(ctx, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run %s migrations: %w", d.name, err)
	}
	logger.Debug("store migrations applied", "driver", d.name)
	return &SQLStore{db: db, dialect: d, logger: logger}, nil
}

// rebind rewrites ? placeholders into $n for drivers that need numbered ones.
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = NewID()
	}
	u.Email = normalizeEmail(u.Email)
	u.CreatedAt = stamp(u.CreatedAt)

	_, err := s.exec(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if s.dialect.isUniqueError(err) {
			return User{}, ErrConflict
		}
		s.logger.Error("create user failed", "error", err)
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

const userColumns = `id, name, email, password_hash, created_at`

func (s *SQLStore) UserByID(ctx context.Context, id string) (User, error) {
	return s.scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (s *SQLStore) UserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(email)))
}

func (s *SQLStore) scanUser(row *sql.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return User{}, notFound(err, "user")
	}
	return u, nil
}

func (s *SQLStore) CreateInterview(ctx context.Context, iv Interview) (Interview, error) {
	if iv.ID == "" {
		iv.ID = NewID()
	}
	iv.CreatedAt = stamp(iv.CreatedAt)

	techstack, err := encodeList(iv.Techstack)
	if err != nil {
		return Interview{}, err
	}
	questions, err := encodeList(iv.Questions)
	if err != nil {
		return Interview{}, err
	}

	_, err = s.exec(ctx,
		`INSERT INTO interviews (id, user_id, role, level, type, provider, techstack, questions, finalized, cover_image, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		iv.ID, iv.UserID, iv.Role, iv.Level, iv.Type, iv.Provider, techstack, questions, iv.Finalized, iv.CoverImage, iv.CreatedAt,
	)
	if err != nil {
		s.logger.Error("create interview failed", "error", err, "user_id", iv.UserID)
		return Interview{}, fmt.Errorf("insert interview: %w", err)
	}
	return iv, nil
}

const interviewColumns = `id, user_id, role, level, type, provider, techstack, questions, finalized, cover_image, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInterview(row rowScanner) (Interview, error) {
	var (
		iv                   Interview
		techstack, questions string
	)
	err := row.Scan(&iv.ID, &iv.UserID, &iv.Role, &iv.Level, &iv.Type, &iv.Provider,
		&techstack, &questions, &iv.Finalized, &iv.CoverImage, &iv.CreatedAt)
	if err != nil {
		return Interview{}, err
	}
	if err := json.Unmarshal([]byte(techstack), &iv.Techstack); err != nil {
		return Interview{}, fmt.Errorf("decode techstack: %w", err)
	}
	if err := json.Unmarshal([]byte(questions), &iv.Questions); err != nil {
		return Interview{}, fmt.Errorf("decode questions: %w", err)
	}
	return iv, nil
}

func (s *SQLStore) InterviewByID(ctx context.Context, id string) (Interview, error) {
	iv, err := scanInterview(s.queryRow(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE id = ?`, id))
	if err != nil {
		return Interview{}, notFound(err, "interview")
	}
	return iv, nil
}

func (s *SQLStore) InterviewsByUser(ctx context.Context, userID string) ([]Interview, error) {
	return s.listInterviews(ctx,
		`SELECT `+interviewColumns+` FROM interviews WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
}

func (s *SQLStore) LatestInterviews(ctx context.Context, excludeUserID string, limit int) ([]Interview, error) {
	return s.listInterviews(ctx,
		`SELECT `+interviewColumns+` FROM interviews
		 WHERE finalized = ? AND user_id <> ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		true, excludeUserID, limit,
	)
}

func (s *SQLStore) listInterviews(ctx context.Context, query string, args ...any) ([]Interview, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interviews: %w", err)
	}
	defer rows.Close()

	out := make([]Interview, 0)
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interview: %w", err)
		}
		out = append(out, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interviews: %w", err)
	}
	return out, nil
}

func (s *SQLStore) SaveFeedback(ctx context.Context, f Feedback) (Feedback, error) {
	if f.ID == "" {
		f.ID = NewID()
	}
	f.CreatedAt = stamp(f.CreatedAt)

	scores, err := json.Marshal(f.CategoryScores)
	if err != nil {
		return Feedback{}, fmt.Errorf("encode category scores: %w", err)
	}
	strengths, err := encodeList(f.Strengths)
	if err != nil {
		return Feedback{}, err
	}
	improvements, err := encodeList(f.AreasForImprovement)
	if err != nil {
		return Feedback{}, err
	}

	_, err = s.exec(ctx,
		`INSERT INTO feedback (id, interview_id, user_id, total_score, category_scores, strengths, areas_for_improvement, final_assessment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   interview_id = excluded.interview_id,
		   user_id = excluded.user_id,
		   total_score = excluded.total_score,
		   category_scores = excluded.category_scores,
		   strengths = excluded.strengths,
		   areas_for_improvement = excluded.areas_for_improvement,
		   final_assessment = excluded.final_assessment,
		   created_at = excluded.created_at`,
		f.ID, f.InterviewID, f.UserID, f.TotalScore, string(scores), strengths, improvements, f.FinalAssessment, f.CreatedAt,
	)
	if err != nil {
		s.logger.Error("save feedback failed", "error", err, "interview_id", f.InterviewID)
		return Feedback{}, fmt.Errorf("upsert feedback: %w", err)
	}
	return f, nil
}

func (s *SQLStore) FeedbackByInterview(ctx context.Context, interviewID, userID string) (Feedback, error) {
	row := s.queryRow(ctx,
		`SELECT id, interview_id, user_id, total_score, category_scores, strengths, areas_for_improvement, final_assessment, created_at
		 FROM feedback WHERE interview_id = ? AND user_id = ?
		 ORDER BY created_at DESC LIMIT 1`,
		interviewID, userID,
	)

	var (
		f                               Feedback
		scores, strengths, improvements string
	)
	err := row.Scan(&f.ID, &f.InterviewID, &f.UserID, &f.TotalScore, &scores, &strengths, &improvements, &f.FinalAssessment, &f.CreatedAt)
	if err != nil {
		return Feedback{}, notFound(err, "feedback")
	}
	if err := json.Unmarshal([]byte(scores), &f.CategoryScores); err != nil {
		return Feedback{}, fmt.Errorf("decode category scores: %w", err)
	}
	if err := json.Unmarshal([]byte(strengths), &f.Strengths); err != nil {
		return Feedback{}, fmt.Errorf("decode strengths: %w", err)
	}
	if err := json.Unmarshal([]byte(improvements), &f.AreasForImprovement); err != nil {
		return Feedback{}, fmt.Errorf("decode areas for improvement: %w", err)
	}
	return f, nil
}

func (s *SQLStore) CreateSession(ctx context.Context, sess Session) error {
	sess.CreatedAt = stamp(sess.CreatedAt)
	_, err := s.exec(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.CreatedAt, sess.ExpiresAt.UTC(),
	)
	if err != nil {
		if s.dialect.isUniqueError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLStore) SessionByID(ctx context.Context, id string) (Session, error) {
	var sess Session
	err := s.queryRow(ctx, `SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		return Session{}, notFound(err, "session")
	}
	return sess, nil
}

func (s *SQLStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.exec(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count expired sessions: %w", err)
	}
	return n, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(raw), nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("load %s: %w", what, err)
}
