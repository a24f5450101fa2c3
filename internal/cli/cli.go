// Package cli defines the cobra command tree of the cloudprep binary.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

type Command string

const (
	CommandServe      Command = "serve"
	CommandInterview  Command = "interview"
	CommandGenerate   Command = "generate"
	CommandStatus     Command = "status"
	CommandStop       Command = "stop"
	CommandTranscript Command = "transcript"
	CommandDevices    Command = "devices"
	CommandDoctor     Command = "doctor"
	CommandVersion    Command = "version"
)

// Invocation is one parsed command line.
type Invocation struct {
	Command     Command
	ConfigPath  string
	User        string
	InterviewID string
}

// Handler runs a parsed invocation.
type Handler func(ctx context.Context, inv Invocation) error

// ExitError carries the process exit code of a failed handler. A nil Err
// exits silently.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewRootCommand builds the command tree. Errors returned by run are wrapped
// in ExitError with code 1 unless they already carry a code; any other error
// from Execute is a usage error.
func NewRootCommand(binaryName, version string, run Handler) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   binaryName,
		Short: "Voice mock interviews for cloud certifications",
		Long: `cloudprep generates practice questions for cloud certifications,
runs voice mock interviews against them, and scores the transcript.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/cloudprep/config.yaml)")

	invoke := func(cmd Command, fill func(*Invocation)) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, _ []string) error {
			inv := Invocation{Command: cmd, ConfigPath: configPath}
			if fill != nil {
				fill(&inv)
			}
			return asExitError(run(c.Context(), inv))
		}
	}

	serveCmd := &cobra.Command{
		Use:   string(CommandServe),
		Short: "Serve the web dashboard, the generate API and gRPC health",
		Args:  cobra.NoArgs,
		RunE:  invoke(CommandServe, nil),
	}

	var interviewUser string
	interviewCmd := &cobra.Command{
		Use:   string(CommandInterview) + " <interview-id>",
		Short: "Take a voice interview and score it",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return invoke(CommandInterview, func(inv *Invocation) {
				inv.User = interviewUser
				inv.InterviewID = args[0]
			})(c, args)
		},
	}
	interviewCmd.Flags().StringVar(&interviewUser, "user", "", "email of the account taking the interview")
	_ = interviewCmd.MarkFlagRequired("user")

	var generateUser string
	generateCmd := &cobra.Command{
		Use:   string(CommandGenerate),
		Short: "Talk to the assistant to generate a new interview",
		Args:  cobra.NoArgs,
		RunE: invoke(CommandGenerate, func(inv *Invocation) {
			inv.User = generateUser
		}),
	}
	generateCmd.Flags().StringVar(&generateUser, "user", "", "email of the account the interview is generated for")
	_ = generateCmd.MarkFlagRequired("user")

	root.AddCommand(
		serveCmd,
		interviewCmd,
		generateCmd,
		&cobra.Command{
			Use:   string(CommandStatus),
			Short: "Print the state of the running call session",
			Args:  cobra.NoArgs,
			RunE:  invoke(CommandStatus, nil),
		},
		&cobra.Command{
			Use:   string(CommandStop),
			Short: "End the running call session",
			Args:  cobra.NoArgs,
			RunE:  invoke(CommandStop, nil),
		},
		&cobra.Command{
			Use:   string(CommandTranscript),
			Short: "Print the finalized transcript of the running call session",
			Args:  cobra.NoArgs,
			RunE:  invoke(CommandTranscript, nil),
		},
		&cobra.Command{
			Use:   string(CommandDevices),
			Short: "List available input devices",
			Args:  cobra.NoArgs,
			RunE:  invoke(CommandDevices, nil),
		},
		&cobra.Command{
			Use:   string(CommandDoctor),
			Short: "Run configuration and environment checks",
			Args:  cobra.NoArgs,
			RunE:  invoke(CommandDoctor, nil),
		},
		&cobra.Command{
			Use:   string(CommandVersion),
			Short: "Print version information",
			Args:  cobra.NoArgs,
			RunE:  invoke(CommandVersion, nil),
		},
	)

	return root
}

func asExitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return &ExitError{Code: 1, Err: err}
}
