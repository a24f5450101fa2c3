package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rbright/cloudprep/internal/auth"
	"github.com/rbright/cloudprep/internal/config"
	"github.com/rbright/cloudprep/internal/llm"
	"github.com/rbright/cloudprep/internal/store"
)

func openStore(cfg config.Config, logger *slog.Logger) (store.Store, error) {
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}
	return st, nil
}

func newLLM(ctx context.Context, cfg config.Config) (llm.Client, error) {
	return llm.New(ctx, llm.Options{
		Backend:       cfg.Generator.Backend,
		Model:         cfg.Generator.Model,
		GoogleAPIKey:  cfg.Secrets.GoogleAPIKey,
		OpenAIAPIKey:  cfg.Secrets.OpenAIAPIKey,
		OpenAIBaseURL: cfg.Secrets.OpenAIBaseURL,
	})
}

// newAuth signs sessions with SESSION_SECRET, or with a per-process random
// secret when it is unset. Sessions then end when the server restarts.
func newAuth(st store.Store, cfg config.Config, logger *slog.Logger, stderr io.Writer) (*auth.Service, error) {
	secret := []byte(strings.TrimSpace(cfg.Secrets.SessionSecret))
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		fmt.Fprintln(stderr, "warning: SESSION_SECRET is not set; sessions will not survive a restart")
		logger.Warn("SESSION_SECRET not set; using an ephemeral secret")
	}

	return auth.New(st, auth.Options{
		Secret:     secret,
		CookieName: cfg.Auth.CookieName,
		SessionTTL: cfg.Auth.SessionTTL,
		Secure:     strings.HasPrefix(cfg.Server.BaseURL, "https://"),
		Logger:     logger,
	})
}
