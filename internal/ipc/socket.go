package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// SocketName is the control socket file created under XDG_RUNTIME_DIR.
const SocketName = "cloudprep.sock"

// ErrAlreadyRunning is returned by Acquire when another session answers on the socket.
var ErrAlreadyRunning = errors.New("cloudprep interview session already running")

// RuntimeSocketPath resolves the control socket of the interview session.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, SocketName), nil
}

// AcquireOptions tune how a stale socket is reclaimed.
type AcquireOptions struct {
	ProbeTimeout time.Duration
	Retries      int
}

// Acquire claims the control socket. A socket nobody answers on is unlinked
// and the claim retried; a live owner yields ErrAlreadyRunning.
func Acquire(ctx context.Context, path string, opts AcquireOptions) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}
	probe := Client{Path: path, Timeout: opts.ProbeTimeout}

	for attempt := range opts.Retries + 1 {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return listener, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		if err := reclaim(ctx, probe); err != nil {
			return nil, err
		}

		backoff := time.Duration(25*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, fmt.Errorf("failed to acquire socket %s after %d retries", path, opts.Retries)
}

// reclaim removes the socket file at probe.Path unless an owner answers.
func reclaim(ctx context.Context, probe Client) error {
	alive, err := probe.Alive(ctx)
	if alive {
		return ErrAlreadyRunning
	}
	if err != nil {
		return fmt.Errorf("probe existing socket %s: %w", probe.Path, err)
	}
	if err := os.Remove(probe.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", probe.Path, err)
	}
	return nil
}
