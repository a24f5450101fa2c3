// Package config resolves, parses, validates, and defaults cloudprep configuration.
package config

import "time"

// Config is the fully materialized runtime configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Voice     VoiceConfig     `yaml:"voice"`
	Generator GeneratorConfig `yaml:"generator"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`

	// Secrets are read from the environment only.
	Secrets Secrets `yaml:"-"`
}

// ServerConfig controls the HTTP and gRPC listeners.
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	GRPCAddr string `yaml:"grpc_addr"`
	BaseURL  string `yaml:"base_url"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// VoiceConfig controls the voice provider and local audio devices.
type VoiceConfig struct {
	APIBaseURL string      `yaml:"api_base_url"`
	WorkflowID string      `yaml:"workflow_id"`
	Audio      AudioConfig `yaml:"audio"`
}

// AudioConfig controls preferred and fallback microphone selection,
// interviewer playback, and the state change cues.
type AudioConfig struct {
	Input    string `yaml:"input"`
	Fallback string `yaml:"fallback"`
	Playback bool   `yaml:"playback"`
	Cues     bool   `yaml:"cues"`
}

// GeneratorConfig selects the language model used for questions and feedback.
type GeneratorConfig struct {
	Backend       string `yaml:"backend"`
	Model         string `yaml:"model"`
	QuestionCount int    `yaml:"question_count"`
}

// AuthConfig controls browser sessions.
type AuthConfig struct {
	CookieName    string        `yaml:"cookie_name"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SweepSchedule string        `yaml:"sweep_schedule"`
}

// LogConfig controls the structured log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Secrets are credentials supplied through the environment or a .env file.
type Secrets struct {
	VapiAPIKey     string `env:"VAPI_API_KEY"`
	VapiWorkflowID string `env:"VAPI_WORKFLOW_ID"`
	GoogleAPIKey   string `env:"GOOGLE_GENERATIVE_AI_API_KEY"`
	OpenAIAPIKey   string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string `env:"OPENAI_BASE_URL"`
	DatabaseURL    string `env:"DATABASE_URL"`
	SessionSecret  string `env:"SESSION_SECRET"`
}

// Warning is a non-fatal load/validation message.
type Warning struct {
	Line    int
	Message string
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	BackendGemini = "gemini"
	BackendOpenAI = "openai"
)
