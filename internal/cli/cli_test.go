package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (Invocation, string, error) {
	t.Helper()

	var got Invocation
	root := NewRootCommand("cloudprep", "cloudprep test", func(_ context.Context, inv Invocation) error {
		got = inv
		return nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return got, out.String(), err
}

func TestRootWithoutArgsPrintsHelp(t *testing.T) {
	inv, out, err := execute(t)
	require.NoError(t, err)
	require.Empty(t, inv.Command)
	require.Contains(t, out, "Usage:")
	require.Contains(t, out, "interview")
}

func TestVersionFlag(t *testing.T) {
	_, out, err := execute(t, "--version")
	require.NoError(t, err)
	require.Equal(t, "cloudprep test\n", out)
}

func TestParseCommandWithConfig(t *testing.T) {
	inv, _, err := execute(t, "--config", "/tmp/cloudprep.yaml", "doctor")
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, inv.Command)
	require.Equal(t, "/tmp/cloudprep.yaml", inv.ConfigPath)
}

func TestArgMatrix(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
		want    Invocation
	}{
		{
			name: "serve",
			args: []string{"serve"},
			want: Invocation{Command: CommandServe},
		},
		{
			name: "interview with user",
			args: []string{"interview", "iv-1", "--user", "ann@example.com"},
			want: Invocation{Command: CommandInterview, InterviewID: "iv-1", User: "ann@example.com"},
		},
		{
			name: "generate with user",
			args: []string{"generate", "--user", "ann@example.com"},
			want: Invocation{Command: CommandGenerate, User: "ann@example.com"},
		},
		{
			name: "status",
			args: []string{"status"},
			want: Invocation{Command: CommandStatus},
		},
		{
			name: "stop",
			args: []string{"stop"},
			want: Invocation{Command: CommandStop},
		},
		{
			name: "transcript",
			args: []string{"transcript"},
			want: Invocation{Command: CommandTranscript},
		},
		{
			name: "devices",
			args: []string{"devices"},
			want: Invocation{Command: CommandDevices},
		},
		{
			name: "version command",
			args: []string{"version"},
			want: Invocation{Command: CommandVersion},
		},
		{
			name:    "unknown command",
			args:    []string{"bogus"},
			wantErr: "unknown command",
		},
		{
			name:    "unknown flag",
			args:    []string{"status", "--bogus"},
			wantErr: "unknown flag",
		},
		{
			name:    "interview requires id",
			args:    []string{"interview", "--user", "ann@example.com"},
			wantErr: "accepts 1 arg",
		},
		{
			name:    "interview requires user",
			args:    []string{"interview", "iv-1"},
			wantErr: `required flag(s) "user" not set`,
		},
		{
			name:    "status takes no args",
			args:    []string{"status", "extra"},
			wantErr: "unknown command",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inv, _, err := execute(t, tc.args...)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				var exitErr *ExitError
				require.False(t, errors.As(err, &exitErr))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, inv)
		})
	}
}

func TestHandlerErrorsBecomeExitErrors(t *testing.T) {
	root := NewRootCommand("cloudprep", "v", func(context.Context, Invocation) error {
		return errors.New("boom")
	})
	root.SetArgs([]string{"status"})
	err := root.ExecuteContext(context.Background())

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 1, exitErr.Code)
	require.EqualError(t, err, "boom")
}

func TestHandlerExitCodeIsPreserved(t *testing.T) {
	root := NewRootCommand("cloudprep", "v", func(context.Context, Invocation) error {
		return &ExitError{Code: 3}
	})
	root.SetArgs([]string{"doctor"})
	err := root.ExecuteContext(context.Background())

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 3, exitErr.Code)
	require.Nil(t, exitErr.Err)
}
