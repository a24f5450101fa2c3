// Package llm wraps the text generation backends used for interview
// questions and feedback.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Request is one single-turn generation.
type Request struct {
	System string
	Prompt string
	// JSON asks the backend for a JSON-only reply.
	JSON bool
}

// Client generates text for a prompt.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(context.Context, Request) (string, error)

func (f ClientFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
)

// Options selects and configures a backend.
type Options struct {
	Backend       string
	Model         string
	GoogleAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// New returns the configured backend.
func New(ctx context.Context, opts Options) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case BackendGemini:
		return NewGemini(ctx, opts.GoogleAPIKey, opts.Model, "")
	case BackendOpenAI:
		return NewOpenAI(opts.OpenAIAPIKey, opts.OpenAIBaseURL, opts.Model)
	default:
		return nil, fmt.Errorf("unknown llm backend: %s", opts.Backend)
	}
}

// ErrEmptyResponse is returned when a backend replies without text.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// ExtractJSON trims prose and markdown code fences around a JSON value.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimPrefix(text, "json")
		if end := strings.LastIndex(text, "```"); end >= 0 {
			text = text[:end]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return text
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end < start {
		return text[start:]
	}
	return text[start : end+1]
}
