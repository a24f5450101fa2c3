package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute

	uniqueViolation = "23505"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// NewPostgresStore connects to Postgres and applies migrations.
func NewPostgresStore(opts ...Option) (*SQLStore, error) {
	cfg := applyOpts(opts)
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	cfg.Logger.Debug("opening postgres store")
	return newSQLStore(db, dialect{name: "postgres", numbered: true, isUniqueError: isPostgresUnique}, postgresMigrations, cfg.Logger)
}

func isPostgresUnique(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
