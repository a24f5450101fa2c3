package config

import "time"

// Default returns the runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:     "127.0.0.1:3000",
			GRPCAddr: "127.0.0.1:3001",
			BaseURL:  "http://localhost:3000",
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    "cloudprep.db",
		},
		Voice: VoiceConfig{
			APIBaseURL: "https://api.vapi.ai",
			Audio: AudioConfig{
				Input:    "default",
				Fallback: "default",
				Playback: true,
				Cues:     true,
			},
		},
		Generator: GeneratorConfig{
			Backend:       BackendGemini,
			Model:         "gemini-2.0-flash-001",
			QuestionCount: 5,
		},
		Auth: AuthConfig{
			CookieName:    "session",
			SessionTTL:    7 * 24 * time.Hour,
			SweepSchedule: "@hourly",
		},
		Log: LogConfig{Level: "info"},
	}
}
