package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func serveForTest(t *testing.T, handler HandlerFunc) (string, func()) {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), SocketName)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, listener, handler) }()

	return socketPath, func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestClientDoRoundTrip(t *testing.T) {
	socketPath, shutdown := serveForTest(t, func(_ context.Context, req Request) Response {
		require.Equal(t, CommandTranscript, req.Command)
		return Response{
			OK:         true,
			State:      "ACTIVE",
			Speaking:   true,
			Utterances: 1,
			Transcript: []Line{{Role: "assistant", Content: "Tell me about VPCs."}},
		}
	})
	defer shutdown()

	resp, err := Client{Path: socketPath, Timeout: 200 * time.Millisecond}.Do(context.Background(), Request{Command: CommandTranscript})
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "ACTIVE", resp.State)
	require.True(t, resp.Speaking)
	require.Equal(t, []Line{{Role: "assistant", Content: "Tell me about VPCs."}}, resp.Transcript)
}

func TestClientDoReportsMalformedResponse(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), SocketName)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()
		var req Request
		_ = json.NewDecoder(conn).Decode(&req)
		_, _ = conn.Write([]byte("not-json\n"))
	}()

	_, err = Client{Path: socketPath, Timeout: 200 * time.Millisecond}.Do(context.Background(), Request{Command: CommandStatus})
	require.ErrorContains(t, err, "decode response")
}

func TestClientDoReportsClosedConnection(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), SocketName)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr == nil {
			_ = conn.Close()
		}
	}()

	_, err = Client{Path: socketPath, Timeout: 200 * time.Millisecond}.Do(context.Background(), Request{Command: CommandStatus})
	require.ErrorContains(t, err, "read response")
}

func TestServeRejectsMalformedRequest(t *testing.T) {
	socketPath, shutdown := serveForTest(t, func(context.Context, Request) Response {
		return Response{OK: true}
	})
	defer shutdown()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not-json\n"))
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "decode request")
}

func TestClientAlive(t *testing.T) {
	socketPath, shutdown := serveForTest(t, func(context.Context, Request) Response {
		return Response{OK: true, State: "INACTIVE"}
	})

	client := Client{Path: socketPath, Timeout: 200 * time.Millisecond}
	alive, err := client.Alive(context.Background())
	require.NoError(t, err)
	require.True(t, alive)

	shutdown()

	alive, err = client.Alive(context.Background())
	require.NoError(t, err)
	require.False(t, alive)
}

func TestUnavailable(t *testing.T) {
	require.False(t, Unavailable(nil))
	require.True(t, Unavailable(os.ErrNotExist))
	require.True(t, Unavailable(syscall.ECONNREFUSED))
	require.True(t, Unavailable(errors.New("dial unix /tmp/cloudprep.sock: connect: no such file or directory")))
	require.False(t, Unavailable(errors.New("i/o timeout")))
}

func TestFailureFormatsError(t *testing.T) {
	resp := Failure("ACTIVE", "cannot stop from state %s", "INACTIVE")
	require.False(t, resp.OK)
	require.Equal(t, "ACTIVE", resp.State)
	require.Equal(t, "cannot stop from state INACTIVE", resp.Error)

	require.Equal(t, "session busy", Failure("", "session busy").Error)
}
