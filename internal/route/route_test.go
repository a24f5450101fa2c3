package route

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterviewPaths(t *testing.T) {
	require.Equal(t, "/interview/i1", Interview("i1"))
	require.Equal(t, "/interview/i1/feedback", Feedback("i1"))
	require.Equal(t, "/interview/a%2Fb/feedback", Feedback("a/b"))
}

func TestWithToast(t *testing.T) {
	require.Equal(t, "/", WithToast("/", ""))
	require.Equal(t, "/sign-in?toast=Account+created", WithToast(SignIn, "Account created"))
}
