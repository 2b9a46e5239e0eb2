package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/carrier-reconciler/internal/analytics"
	"github.com/joseph-ayodele/carrier-reconciler/internal/app"
	"github.com/joseph-ayodele/carrier-reconciler/internal/async"
	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/export"
	"github.com/joseph-ayodele/carrier-reconciler/internal/ingest"
	"github.com/joseph-ayodele/carrier-reconciler/internal/ledger"
	"github.com/joseph-ayodele/carrier-reconciler/internal/server"
	"github.com/joseph-ayodele/carrier-reconciler/internal/store"
)

func main() {
	common.LoadDotEnv()
	cfg := common.LoadConfig()
	logger := app.NewJSONLogger(cfg)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("config.invalid", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("reconcilerd.failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	pool, err := ledger.Open(ctx, cfg.Ledger, logger)
	if err != nil {
		return err
	}
	defer ledger.Close(pool, logger)
	if err := ledger.HealthCheck(ctx, pool, cfg.Ledger.DialTimeout, logger); err != nil {
		return err
	}

	orch, err := app.NewOrchestrator(cfg, ledger.NewPostgresLedger(pool, cfg.Ledger, logger), logger)
	if err != nil {
		return err
	}

	runs, err := store.Open(ctx, cfg.Runs.DBPath, logger)
	if err != nil {
		return err
	}
	defer func() { _ = runs.Close() }()

	recorder := &app.Recorder{
		Runs:      runs,
		Exporter:  export.NewExporter(logger),
		ExportDir: cfg.Runs.ExportDir,
		Logger:    logger,
	}
	if len(cfg.Analytics.Brokers) > 0 {
		pub := analytics.NewKafkaPublisher(cfg.Analytics.Brokers, cfg.Analytics.Topic, logger)
		defer func() { _ = pub.Close() }()
		recorder.Events = pub
	}

	queue := async.NewRunQueue(orch, logger,
		async.WithWorkers(cfg.Runs.Workers),
		async.WithProcessTimeout(cfg.Runs.Timeout),
		async.WithSinkTimeout(cfg.Runs.SinkTimeout),
		async.WithSinks(recorder),
	)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		queue.Shutdown(shutdownCtx)
	}()

	if cfg.Runs.InboxDir != "" {
		inbox := ingest.NewInbox(cfg.Runs.InboxDir, 500*time.Millisecond, logger)
		go func() {
			err := inbox.Run(ctx, func(ctx context.Context, s ingest.Submission) error {
				req, err := s.Request()
				if err != nil {
					return err
				}
				return queue.Enqueue(ctx, async.Job{Source: s.Primary, Request: req})
			})
			if err != nil {
				logger.Error("ingest.inbox.stopped", "error", err)
			}
		}()
	}

	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	server.RegisterReconcilerServer(grpcServer, server.NewReconcilerServer(orch, recorder, runs, logger))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}
	logger.Info("reconcilerd.serving", "addr", cfg.Server.GRPCAddr)

	serveErr := make(chan error, 1)
	go func() { serveErr <- grpcServer.Serve(lis) }()

	select {
	case <-ctx.Done():
		logger.Info("reconcilerd.shutting_down")
		hs.Shutdown()
		grpcServer.GracefulStop()
		return nil
	case err := <-serveErr:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}
