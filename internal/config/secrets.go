package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// LoadSecrets reads optional dotenv files (default ".env") into the process
// environment without overriding existing variables, then parses Secrets.
func LoadSecrets(dotenvFiles ...string) (Secrets, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, file := range dotenvFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Secrets{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var secrets Secrets
	if err := env.Parse(&secrets); err != nil {
		return Secrets{}, fmt.Errorf("parse environment: %w", err)
	}
	return secrets, nil
}

// ApplySecrets attaches secrets to cfg. VAPI_WORKFLOW_ID and DATABASE_URL
// take precedence over the file values.
func ApplySecrets(cfg Config, secrets Secrets) Config {
	cfg.Secrets = secrets
	if id := strings.TrimSpace(secrets.VapiWorkflowID); id != "" {
		cfg.Voice.WorkflowID = id
	}
	if dsn := strings.TrimSpace(secrets.DatabaseURL); dsn != "" {
		cfg.Database.DSN = dsn
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			cfg.Database.Driver = DriverPostgres
		}
	}
	return cfg
}
