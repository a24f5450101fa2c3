// Package doctor runs readiness diagnostics for config, secrets, storage, the
// voice API, audio devices, and the health endpoint.
package doctor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rbright/cloudprep/internal/audio"
	"github.com/rbright/cloudprep/internal/config"
	"github.com/rbright/cloudprep/internal/health"
	"github.com/rbright/cloudprep/internal/session"
	"github.com/rbright/cloudprep/internal/store"
	"github.com/rbright/cloudprep/internal/voice/vapi"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes the checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{}

	configMsg := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		configMsg = fmt.Sprintf("%q not found; using defaults", loaded.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMsg})

	checks = append(checks, checkSecret("VAPI_API_KEY", cfg.Secrets.VapiAPIKey))
	switch cfg.Generator.Backend {
	case config.BackendOpenAI:
		checks = append(checks, checkSecret("OPENAI_API_KEY", cfg.Secrets.OpenAIAPIKey))
	default:
		checks = append(checks, checkSecret("GOOGLE_GENERATIVE_AI_API_KEY", cfg.Secrets.GoogleAPIKey))
	}
	checks = append(checks, checkSecret("SESSION_SECRET", cfg.Secrets.SessionSecret))

	checks = append(checks, checkDatabase(ctx, cfg.Database))
	checks = append(checks, checkVoiceAPI(ctx, cfg.Voice.APIBaseURL, cfg.Secrets.VapiAPIKey))
	checks = append(checks, checkAssistants())
	checks = append(checks, checkAudioSelection(ctx, cfg.Voice.Audio))
	checks = append(checks, checkHealth(ctx, cfg.Server.GRPCAddr))

	return Report{Checks: checks}
}

// checkAssistants verifies the embedded assistant definitions include the
// interviewer used by review sessions.
func checkAssistants() Check {
	assistants, err := vapi.LoadAssistants()
	if err != nil {
		return Check{Name: "assistants", Pass: false, Message: err.Error()}
	}
	names := vapi.AssistantNames(assistants)
	if _, ok := assistants[session.InterviewerTemplate]; !ok {
		return Check{Name: "assistants", Pass: false, Message: fmt.Sprintf("missing %q (have %s)", session.InterviewerTemplate, strings.Join(names, ", "))}
	}
	return Check{Name: "assistants", Pass: true, Message: strings.Join(names, ", ")}
}

// checkSecret reports whether an environment credential is populated.
func checkSecret(name, value string) Check {
	if strings.TrimSpace(value) == "" {
		return Check{Name: name, Pass: false, Message: "not set"}
	}
	return Check{Name: name, Pass: true, Message: "set"}
}

// checkDatabase opens the configured store, which also applies migrations.
func checkDatabase(ctx context.Context, db config.DatabaseConfig) Check {
	st, err := store.Open(db.Driver, db.DSN)
	if err != nil {
		return Check{Name: "database", Pass: false, Message: err.Error()}
	}
	defer st.Close()

	pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := st.Ping(pingCtx); err != nil {
		return Check{Name: "database", Pass: false, Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return Check{Name: "database", Pass: true, Message: fmt.Sprintf("%s reachable", db.Driver)}
}

// checkVoiceAPI lists one assistant to confirm the API key is accepted.
func checkVoiceAPI(ctx context.Context, baseURL, apiKey string) Check {
	if strings.TrimSpace(apiKey) == "" {
		return Check{Name: "voice.api", Pass: false, Message: "skipped: VAPI_API_KEY is not set"}
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = vapi.DefaultBaseURL
	}
	url := base + "/assistant?limit=1"

	reqCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return Check{Name: "voice.api", Pass: false, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Check{Name: "voice.api", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Check{Name: "voice.api", Pass: false, Message: fmt.Sprintf("HTTP %d: api key rejected", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Check{Name: "voice.api", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, base)}
	}
	return Check{Name: "voice.api", Pass: true, Message: fmt.Sprintf("reachable at %s", base)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.AudioConfig) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkHealth probes the running server's gRPC health endpoint.
func checkHealth(ctx context.Context, addr string) Check {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Check{Name: "grpc.health", Pass: false, Message: "server.grpc_addr is empty"}
	}

	status, err := health.Probe(ctx, addr, "", probeTimeout)
	if err != nil {
		return Check{Name: "grpc.health", Pass: false, Message: fmt.Sprintf("server not reachable at %s: %v", addr, err)}
	}
	if status != healthpb.HealthCheckResponse_SERVING {
		return Check{Name: "grpc.health", Pass: false, Message: fmt.Sprintf("%s reports %s", addr, status)}
	}
	return Check{Name: "grpc.health", Pass: true, Message: fmt.Sprintf("serving at %s", addr)}
}
