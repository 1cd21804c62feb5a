package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	cadmesh "github.com/flywave/go-cadmesh"
	"github.com/flywave/go-cadmesh/internal/logger"
	"github.com/flywave/go-cadmesh/internal/objstore"
	"github.com/flywave/go-cadmesh/stepconv"
)

// Exit codes let scripts tell the three failure classes apart.
const (
	exitFailure     = 1
	exitInput       = 2
	exitReconfigure = 3
	exitRetry       = 4
)

func exitCode(err error) int {
	switch {
	case cadmesh.IsInputError(err):
		return exitInput
	case cadmesh.NeedsReconfiguration(err):
		return exitReconfigure
	case cadmesh.IsRetryable(err):
		return exitRetry
	}
	return exitFailure
}

// signalContext is cancelled on SIGINT/SIGTERM so running conversions are
// killed instead of orphaned.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func probeBackends(ctx context.Context) (*cadmesh.Capabilities, error) {
	log := logger.Named("step")
	candidates, err := stepconv.FromConfig(cfg.Step, log)
	if err != nil {
		return nil, err
	}
	caps := cadmesh.ProbeCapabilities(ctx, candidates, log)
	caps.Placeholder = cfg.Step.PlaceholderOnUnavailable
	return caps, nil
}

func newPipeline(ctx context.Context) (*cadmesh.Pipeline, error) {
	caps, err := probeBackends(ctx)
	if err != nil {
		return nil, err
	}
	return cadmesh.New(caps,
		cadmesh.WithLogger(logger.Named("pipeline")),
		cadmesh.WithTargetTriangles(cfg.Pipeline.TargetTriangles),
		cadmesh.WithWorkDir(cfg.Pipeline.WorkDir),
		cadmesh.WithStepFormat(cfg.Step.Format),
	), nil
}

// newStore returns nil when none of paths is an object URI.
func newStore(paths ...string) (*objstore.Client, error) {
	for _, p := range paths {
		if objstore.IsURI(p) {
			return objstore.NewClient(cfg.Storage.S3, logger.Named("objstore"))
		}
	}
	return nil, nil
}

// serveMetrics exposes /metrics while a long command runs.
func serveMetrics() func() {
	if cfg.Metrics.Listen == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics listener stopped", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
