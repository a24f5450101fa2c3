package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return nil, fmt.Errorf("server.addr must not be empty")
	}
	if err := validateURL("server.base_url", cfg.Server.BaseURL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Server.GRPCAddr) == "" {
		warnings = append(warnings, Warning{Message: "server.grpc_addr is empty; gRPC health endpoint disabled"})
	}

	switch cfg.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("database.driver must be one of: sqlite, postgres")
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, fmt.Errorf("database.dsn must not be empty")
	}

	if err := validateURL("voice.api_base_url", cfg.Voice.APIBaseURL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Voice.WorkflowID) == "" {
		warnings = append(warnings, Warning{Message: "voice.workflow_id is empty; generate sessions are unavailable"})
	}

	switch cfg.Generator.Backend {
	case BackendGemini, BackendOpenAI:
	default:
		return nil, fmt.Errorf("generator.backend must be one of: gemini, openai")
	}
	if strings.TrimSpace(cfg.Generator.Model) == "" {
		return nil, fmt.Errorf("generator.model must not be empty")
	}
	if cfg.Generator.QuestionCount <= 0 {
		return nil, fmt.Errorf("generator.question_count must be > 0")
	}

	if strings.TrimSpace(cfg.Auth.CookieName) == "" {
		return nil, fmt.Errorf("auth.cookie_name must not be empty")
	}
	if cfg.Auth.SessionTTL <= 0 {
		return nil, fmt.Errorf("auth.session_ttl must be > 0")
	}
	if _, err := cron.ParseStandard(cfg.Auth.SweepSchedule); err != nil {
		return nil, fmt.Errorf("auth.sweep_schedule: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Log.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	return warnings, nil
}

func validateURL(field, raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", field)
	}
	return nil
}
