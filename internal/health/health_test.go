package health

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return srv, lis.Addr().String()
}

func TestProbeReportsOverallServing(t *testing.T) {
	_, addr := startServer(t)

	status, err := Probe(context.Background(), addr, "", 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, status)
}

func TestSetServingReflectsInProbe(t *testing.T) {
	srv, addr := startServer(t)
	srv.SetServing(StoreService, false)

	status, err := Probe(context.Background(), addr, StoreService, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)

	srv.SetServing(StoreService, true)
	status, err = Probe(context.Background(), addr, StoreService, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, status)
}

func TestProbeUnknownServiceFails(t *testing.T) {
	_, addr := startServer(t)

	_, err := Probe(context.Background(), addr, "missing.service", 2*time.Second)
	require.Error(t, err)
}

func TestProbeUnreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	_, err = Probe(context.Background(), addr, "", 200*time.Millisecond)
	require.Error(t, err)
}

func TestMonitorTracksCheckResult(t *testing.T) {
	srv, addr := startServer(t)

	var healthy atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Monitor(ctx, StoreService, 20*time.Millisecond, func(context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("db down")
	})

	require.Eventually(t, func() bool {
		status, err := Probe(context.Background(), addr, StoreService, time.Second)
		return err == nil && status == healthpb.HealthCheckResponse_NOT_SERVING
	}, 3*time.Second, 20*time.Millisecond)

	healthy.Store(true)
	require.Eventually(t, func() bool {
		status, err := Probe(context.Background(), addr, StoreService, time.Second)
		return err == nil && status == healthpb.HealthCheckResponse_SERVING
	}, 3*time.Second, 20*time.Millisecond)
}
