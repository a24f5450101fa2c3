// Package app wires configuration, logging, storage, and the voice stack
// behind each cloudprep command.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rbright/cloudprep/internal/audio"
	"github.com/rbright/cloudprep/internal/cli"
	"github.com/rbright/cloudprep/internal/config"
	"github.com/rbright/cloudprep/internal/doctor"
	"github.com/rbright/cloudprep/internal/ipc"
	"github.com/rbright/cloudprep/internal/logging"
	"github.com/rbright/cloudprep/internal/version"
)

const (
	binaryName     = "cloudprep"
	controlTimeout = 220 * time.Millisecond
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute runs one command line and returns the process exit code: 0 on
// success, 1 on runtime failure, 2 on usage errors.
func (r Runner) Execute(ctx context.Context, args []string) int {
	root := cli.NewRootCommand(binaryName, version.String(), r.dispatch)
	root.SetArgs(args)
	root.SetOut(r.Stdout)
	root.SetErr(r.Stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", exitErr.Err)
		}
		return exitErr.Code
	}

	fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
	fmt.Fprint(r.Stderr, root.UsageString())
	return 2
}

func (r Runner) dispatch(ctx context.Context, inv cli.Invocation) error {
	switch inv.Command {
	case cli.CommandVersion:
		fmt.Fprintln(r.Stdout, version.String())
		return nil
	case cli.CommandStatus, cli.CommandStop, cli.CommandTranscript:
		// Control commands only talk to the socket and never need config.
		return r.withLogger("", inv, func(*slog.Logger) error { return r.commandControl(ctx, inv.Command) })
	}

	cfgLoaded, err := config.Load(inv.ConfigPath)
	if err != nil {
		return err
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
	}

	return r.withLogger(cfgLoaded.Config.Log.Level, inv, func(logger *slog.Logger) error {
		for _, w := range cfgLoaded.Warnings {
			logger.Warn("config warning", "line", w.Line, "message", w.Message)
		}
		logger.Info("config loaded", "path", cfgLoaded.Path, "exists", cfgLoaded.Exists)

		switch inv.Command {
		case cli.CommandDoctor:
			report := doctor.Run(ctx, cfgLoaded)
			fmt.Fprintln(r.Stdout, report.String())
			if report.OK() {
				return nil
			}
			return &cli.ExitError{Code: 1}
		case cli.CommandDevices:
			return r.commandDevices(ctx)
		case cli.CommandServe:
			return r.commandServe(ctx, cfgLoaded.Config, logger)
		case cli.CommandInterview, cli.CommandGenerate:
			return r.commandCall(ctx, cfgLoaded.Config, logger, inv)
		default:
			return &cli.ExitError{Code: 2, Err: fmt.Errorf("unsupported command %q", inv.Command)}
		}
	})
}

// withLogger opens the JSONL log for the duration of fn.
func (r Runner) withLogger(level string, inv cli.Invocation, fn func(*slog.Logger) error) error {
	logRuntime, err := logging.New(logging.Options{Level: level})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}
	logger.Info("command start", "command", inv.Command, "log", logRuntime.Path)

	err = fn(logger)
	if err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || exitErr.Err != nil {
			logger.Error("command failed", "command", inv.Command, "error", err.Error())
		}
	}
	return err
}

func (r Runner) commandDevices(ctx context.Context) error {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no input devices found")
		return &cli.ExitError{Code: 1}
	}

	tw := tabwriter.NewWriter(r.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tDESCRIPTION\tSTATE\tAVAILABLE\tMUTED")
	for _, d := range devices {
		mark := ""
		if d.Default {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, d.ID, d.Description, d.State, yesNo(d.Available), yesNo(d.Muted))
	}
	return tw.Flush()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// commandControl forwards a control command to the running call session.
// status reports "idle" when no session is listening.
func (r Runner) commandControl(ctx context.Context, command cli.Command) error {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		if command == cli.CommandStatus {
			fmt.Fprintln(r.Stdout, "idle")
			return nil
		}
		return err
	}

	resp, running, err := forward(ctx, socketPath, string(command))
	if !running {
		if command == cli.CommandStatus {
			fmt.Fprintln(r.Stdout, "idle")
			return nil
		}
		return errors.New("no active cloudprep session")
	}
	if err != nil {
		return err
	}

	switch command {
	case cli.CommandStatus:
		fmt.Fprintln(r.Stdout, describeStatus(resp))
	case cli.CommandTranscript:
		for _, line := range resp.Transcript {
			fmt.Fprintf(r.Stdout, "%s: %s\n", line.Role, line.Content)
		}
	default:
		if resp.Message != "" {
			fmt.Fprintln(r.Stdout, resp.Message)
		}
	}
	return nil
}

// describeStatus renders e.g. "ACTIVE (speaking, 3 utterances)".
func describeStatus(resp ipc.Response) string {
	state := resp.State
	if state == "" {
		return "idle"
	}
	var details []string
	if resp.Speaking {
		details = append(details, "speaking")
	}
	if resp.Utterances > 0 {
		details = append(details, fmt.Sprintf("%d utterances", resp.Utterances))
	}
	if len(details) == 0 {
		return state
	}
	return fmt.Sprintf("%s (%s)", state, strings.Join(details, ", "))
}

// forward reports running=false when nothing listens on socketPath. A stale
// socket file is left in place for the next session to reclaim.
func forward(ctx context.Context, socketPath string, command string) (resp ipc.Response, running bool, err error) {
	client := ipc.Client{Path: socketPath, Timeout: controlTimeout}
	resp, err = client.Do(ctx, ipc.Request{Command: command})
	switch {
	case err == nil && resp.OK:
		return resp, true, nil
	case err == nil:
		return resp, true, errors.New(resp.Error)
	case ipc.Unavailable(err):
		return ipc.Response{}, false, nil
	default:
		return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
	}
}
