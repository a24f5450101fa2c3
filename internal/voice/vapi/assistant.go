package vapi

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed assistants/*.yaml
var assistantFS embed.FS

// Assistant is an inline assistant definition sent with a create-call request.
type Assistant struct {
	Name         string          `yaml:"name" json:"name"`
	FirstMessage string          `yaml:"first_message" json:"firstMessage,omitempty"`
	Transcriber  AssistantEngine `yaml:"transcriber" json:"transcriber"`
	Voice        AssistantVoice  `yaml:"voice" json:"voice"`
	Model        AssistantModel  `yaml:"model" json:"model"`
}

// AssistantEngine selects a speech-to-text engine.
type AssistantEngine struct {
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model,omitempty"`
	Language string `yaml:"language" json:"language,omitempty"`
}

// AssistantVoice selects a text-to-speech voice.
type AssistantVoice struct {
	Provider        string  `yaml:"provider" json:"provider"`
	VoiceID         string  `yaml:"voice_id" json:"voiceId"`
	Stability       float64 `yaml:"stability" json:"stability,omitempty"`
	SimilarityBoost float64 `yaml:"similarity_boost" json:"similarityBoost,omitempty"`
	Speed           float64 `yaml:"speed" json:"speed,omitempty"`
	Style           float64 `yaml:"style" json:"style,omitempty"`
	UseSpeakerBoost bool    `yaml:"use_speaker_boost" json:"useSpeakerBoost,omitempty"`
}

// AssistantModel selects the conversation model and its prompt.
type AssistantModel struct {
	Provider string             `yaml:"provider" json:"provider"`
	Model    string             `yaml:"model" json:"model"`
	Messages []AssistantMessage `yaml:"messages" json:"messages"`
}

// AssistantMessage is one seeded model message.
type AssistantMessage struct {
	Role    string `yaml:"role" json:"role"`
	Content string `yaml:"content" json:"content"`
}

// LoadAssistants parses every embedded assistant definition keyed by file
// name without extension.
func LoadAssistants() (map[string]Assistant, error) {
	entries, err := assistantFS.ReadDir("assistants")
	if err != nil {
		return nil, fmt.Errorf("read embedded assistants: %w", err)
	}

	out := make(map[string]Assistant, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".yaml" {
			continue
		}
		raw, err := assistantFS.ReadFile(path.Join("assistants", name))
		if err != nil {
			return nil, fmt.Errorf("read assistant %s: %w", name, err)
		}
		var assistant Assistant
		if err := yaml.Unmarshal(raw, &assistant); err != nil {
			return nil, fmt.Errorf("parse assistant %s: %w", name, err)
		}
		if strings.TrimSpace(assistant.Model.Model) == "" {
			return nil, fmt.Errorf("assistant %s: model.model is required", name)
		}
		out[strings.TrimSuffix(name, ".yaml")] = assistant
	}
	return out, nil
}

// AssistantNames lists the embedded assistant ids in sorted order.
func AssistantNames(assistants map[string]Assistant) []string {
	names := make([]string, 0, len(assistants))
	for name := range assistants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
