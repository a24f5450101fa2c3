package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rbright/cloudprep/internal/questions"
)

type apiResponse struct {
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// amount accepts a JSON number or a numeric string.
type amount int

func (a *amount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*a = 0
		return nil
	}
	raw = strings.TrimSpace(strings.Trim(raw, `"`))
	if raw == "" {
		*a = 0
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("amount %q is not an integer", raw)
	}
	*a = amount(n)
	return nil
}

type generateRequest struct {
	Level    string `json:"level"`
	Provider string `json:"provider"`
	Amount   amount `json:"amount"`
	UserID   string `json:"userid"`
}

func (s *Server) generateInfo(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: "Thank you!"})
}

// generate is called by the voice workflow once it has collected the
// interview parameters.
func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		s.logger.Warn("generate request decode failed", "error", err.Error())
		s.writeJSON(w, http.StatusInternalServerError, apiResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	_, err := s.questions.Generate(ctx, questions.Request{
		Provider: req.Provider,
		Level:    req.Level,
		Amount:   int(req.Amount),
		UserID:   req.UserID,
	})
	if err != nil {
		s.logger.Error("generate interview failed", "user_id", req.UserID, "error", err.Error())
		s.writeJSON(w, http.StatusInternalServerError, apiResponse{Error: err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, apiResponse{Success: true})
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "healthy", Timestamp: s.now().UTC().Format(time.RFC3339)}
	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check: store ping failed", "error", err.Error())
		resp.Status = "degraded"
		resp.Error = "store unavailable"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

// writeJSON marshals before writing headers so encode failures become a 500.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		s.logger.Error("encode json response failed", "error", err.Error())
		http.Error(w, `{"success":false,"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Debug("write json response failed", "error", err.Error())
	}
}
