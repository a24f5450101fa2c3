package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/rbright/cloudprep/internal/config"
	"github.com/rbright/cloudprep/internal/health"
	"github.com/rbright/cloudprep/internal/questions"
	"github.com/rbright/cloudprep/internal/scheduler"
	"github.com/rbright/cloudprep/internal/web"
)

const storeHealthInterval = 30 * time.Second

// commandServe runs the HTTP server, the gRPC health server, and the session
// sweeper until ctx is cancelled or a listener fails.
func (r Runner) commandServe(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	generator, err := newLLM(ctx, cfg)
	if err != nil {
		return err
	}
	authSvc, err := newAuth(st, cfg, logger, r.Stderr)
	if err != nil {
		return err
	}

	site, err := web.New(web.Options{
		Auth:      authSvc,
		Store:     st,
		Questions: questions.NewService(generator, st, cfg.Generator.QuestionCount, logger),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	httpLis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen http %s: %w", cfg.Server.Addr, err)
	}

	sched := scheduler.New(logger)
	if err := sched.Add(scheduler.SessionSweep(cfg.Auth.SweepSchedule, authSvc.SweepExpired, logger)); err != nil {
		_ = httpLis.Close()
		return err
	}
	sched.Start()
	defer sched.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	running := 1
	go func() { errCh <- site.Serve(ctx, httpLis) }()

	if addr := strings.TrimSpace(cfg.Server.GRPCAddr); addr != "" {
		grpcLis, err := net.Listen("tcp", addr)
		if err != nil {
			cancel()
			<-errCh
			return fmt.Errorf("listen grpc %s: %w", addr, err)
		}
		healthSrv := health.NewServer(logger)
		go healthSrv.Monitor(ctx, health.StoreService, storeHealthInterval, st.Ping)
		running++
		go func() { errCh <- healthSrv.Serve(ctx, grpcLis) }()
	}

	fmt.Fprintf(r.Stdout, "cloudprep serving %s\n", cfg.Server.BaseURL)

	var firstErr error
	for range running {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	logger.Info("server stopped")
	return firstErr
}
