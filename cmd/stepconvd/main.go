// Command stepconvd is the STEP converter service: it accepts STEP uploads
// over HTTP and answers with the tessellated STL or OBJ bytes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	cadmesh "github.com/flywave/go-cadmesh"
	"github.com/flywave/go-cadmesh/internal/config"
	"github.com/flywave/go-cadmesh/internal/logger"
	"github.com/flywave/go-cadmesh/stepconv"
)

var (
	flagConfig = flag.String("config", "", "Path to config file")
	flagListen = flag.String("listen", "", "Listen address, overrides server.listen")
	flagDebug  = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*flagConfig)
	if err != nil {
		return err
	}
	if *flagListen != "" {
		cfg.Server.Listen = *flagListen
	}
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	candidates, err := stepconv.FromConfig(serverBackends(cfg.Step), logger.Named("step"))
	if err != nil {
		return err
	}
	caps := cadmesh.ProbeCapabilities(ctx, candidates, logger.Named("step"))
	if !caps.HasStep() {
		logger.Warn("no converter backend available, /health will report unavailable")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           newServer(caps, cfg.Pipeline.WorkDir, logger.Named("http")).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("converter service listening", zap.String("addr", cfg.Server.Listen),
			zap.Strings("backends", caps.BackendNames()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// serverBackends drops backends that would forward to another service: the
// converter must tessellate itself.
func serverBackends(step config.StepConfig) config.StepConfig {
	var keep []string
	for _, b := range step.Backends {
		if b == "local" || b == "docker" {
			keep = append(keep, b)
		}
	}
	step.Backends = keep
	return step
}
