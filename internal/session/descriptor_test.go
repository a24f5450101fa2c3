package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateStartConfig(t *testing.T) {
	desc := Descriptor{Kind: KindGenerate, UserID: "u1", UserName: "Ann"}

	cfg := desc.StartConfig(Templates{WorkflowID: "wf-123"})
	require.Equal(t, "wf-123", cfg.TemplateID)
	require.Equal(t, map[string]string{"username": "Ann", "userid": "u1"}, cfg.Variables)
}

func TestReviewStartConfig(t *testing.T) {
	desc := Descriptor{Kind: KindReview, UserID: "u1", InterviewID: "i1", Questions: []string{"Q1", "Q2"}}

	cfg := desc.StartConfig(Templates{})
	require.Equal(t, InterviewerTemplate, cfg.TemplateID)
	require.Equal(t, map[string]string{"questions": "- Q1\n- Q2"}, cfg.Variables)

	cfg = desc.StartConfig(Templates{Interviewer: "custom"})
	require.Equal(t, "custom", cfg.TemplateID)
}

func TestFormatQuestionsEmpty(t *testing.T) {
	require.Empty(t, FormatQuestions(nil))
}

func TestDescriptorCloneIsolatesQuestions(t *testing.T) {
	questions := []string{"Q1"}
	provider := newFakeProvider()
	ctrl, err := NewController(Deps{Provider: provider}, Descriptor{Kind: KindReview, UserID: "u1", InterviewID: "i1", Questions: questions}, Templates{})
	require.NoError(t, err)
	defer ctrl.Close()

	questions[0] = "mutated"
	require.Equal(t, []string{"Q1"}, ctrl.Descriptor().Questions)
}
