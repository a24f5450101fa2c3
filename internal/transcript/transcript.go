// Package transcript models finalized call utterances and renders them for
// prompts and display.
package transcript

import "strings"

// Speaker identifies who produced an utterance.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerSystem    Speaker = "system"
	SpeakerAssistant Speaker = "assistant"
)

// ParseSpeaker maps a provider role onto a known speaker.
func ParseSpeaker(raw string) (Speaker, bool) {
	switch Speaker(strings.ToLower(strings.TrimSpace(raw))) {
	case SpeakerUser:
		return SpeakerUser, true
	case SpeakerSystem:
		return SpeakerSystem, true
	case SpeakerAssistant:
		return SpeakerAssistant, true
	default:
		return "", false
	}
}

// Utterance is one finalized spoken turn.
type Utterance struct {
	Speaker Speaker `json:"role"`
	Text    string  `json:"content"`
}

// Normalize collapses runs of whitespace in recognized text.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Format renders utterances as "- speaker: text" lines with whitespace
// collapsed.
func Format(utterances []Utterance) string {
	if len(utterances) == 0 {
		return ""
	}

	var b strings.Builder
	for _, u := range utterances {
		b.WriteString("- ")
		b.WriteString(string(u.Speaker))
		b.WriteString(": ")
		b.WriteString(Normalize(u.Text))
		b.WriteString("\n")
	}
	return b.String()
}

// Last returns the text of the most recent utterance.
func Last(utterances []Utterance) string {
	if len(utterances) == 0 {
		return ""
	}
	return utterances[len(utterances)-1].Text
}
