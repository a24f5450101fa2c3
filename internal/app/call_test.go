package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/rbright/cloudprep/internal/cli"
	"github.com/rbright/cloudprep/internal/session"
	"github.com/rbright/cloudprep/internal/store"
	"github.com/stretchr/testify/require"
)

func seedCallStore(t *testing.T) (*store.MemoryStore, store.User, store.Interview) {
	t.Helper()

	st := store.NewMemoryStore()
	ctx := context.Background()
	user, err := st.CreateUser(ctx, store.User{Name: "Ann", Email: "ann@example.com"})
	require.NoError(t, err)
	iv, err := st.CreateInterview(ctx, store.Interview{
		UserID:    user.ID,
		Role:      "Cloud Architect",
		Level:     "Associate",
		Provider:  "AWS",
		Questions: []string{"What is a VPC?", "Explain IAM roles."},
	})
	require.NoError(t, err)
	return st, user, iv
}

func TestDescribeCallGenerate(t *testing.T) {
	st, user, _ := seedCallStore(t)

	desc, err := describeCall(context.Background(), st, cli.Invocation{Command: cli.CommandGenerate, User: "ANN@example.com"})
	require.NoError(t, err)
	require.Equal(t, session.KindGenerate, desc.Kind)
	require.Equal(t, user.ID, desc.UserID)
	require.Equal(t, "Ann", desc.UserName)
	require.Empty(t, desc.InterviewID)
}

func TestDescribeCallReviewWithoutPriorFeedback(t *testing.T) {
	st, user, iv := seedCallStore(t)

	desc, err := describeCall(context.Background(), st, cli.Invocation{
		Command:     cli.CommandInterview,
		User:        user.Email,
		InterviewID: iv.ID,
	})
	require.NoError(t, err)
	require.Equal(t, session.KindReview, desc.Kind)
	require.Equal(t, iv.ID, desc.InterviewID)
	require.Equal(t, iv.Questions, desc.Questions)
	require.Empty(t, desc.FeedbackID)
}

func TestDescribeCallRetakeReusesFeedbackID(t *testing.T) {
	st, user, iv := seedCallStore(t)
	prior, err := st.SaveFeedback(context.Background(), store.Feedback{InterviewID: iv.ID, UserID: user.ID, TotalScore: 60})
	require.NoError(t, err)

	desc, err := describeCall(context.Background(), st, cli.Invocation{
		Command:     cli.CommandInterview,
		User:        user.Email,
		InterviewID: iv.ID,
	})
	require.NoError(t, err)
	require.Equal(t, prior.ID, desc.FeedbackID)
}

func TestDescribeCallErrors(t *testing.T) {
	st, user, _ := seedCallStore(t)

	_, err := describeCall(context.Background(), st, cli.Invocation{Command: cli.CommandGenerate, User: "nobody@example.com"})
	require.ErrorContains(t, err, "no account for nobody@example.com")

	_, err = describeCall(context.Background(), st, cli.Invocation{
		Command:     cli.CommandInterview,
		User:        user.Email,
		InterviewID: "missing",
	})
	require.ErrorContains(t, err, "interview missing not found")
}

func TestPrintNavigatorJoinsBaseURL(t *testing.T) {
	var out bytes.Buffer
	navigate := printNavigator(&out, "http://localhost:3000/")

	require.NoError(t, navigate(context.Background(), "/interview/iv-1/feedback"))
	require.Equal(t, "Open http://localhost:3000/interview/iv-1/feedback\n", out.String())
}
