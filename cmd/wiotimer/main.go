// wiotimer connects to the Wio button hub and runs a timed rainbow on the LED
// strip whenever the button is pressed.
// Usage: go run ./cmd/wiotimer --config configs/wiotimer.example.yaml
//
// Type "stop" on stdin or send SIGINT/SIGTERM to shut down.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/wiotimer/internal/config"
	"github.com/rickgao/wiotimer/internal/connection"
	"github.com/rickgao/wiotimer/internal/lights"
	"github.com/rickgao/wiotimer/internal/logging"
	"github.com/rickgao/wiotimer/internal/metrics"
	"github.com/rickgao/wiotimer/internal/timer"
	"github.com/rickgao/wiotimer/internal/transport"
	"github.com/rickgao/wiotimer/internal/trigger"
	"github.com/rickgao/wiotimer/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/wiotimer.example.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "wiotimer: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return err
	}

	logger, closeLogs, err := logging.Setup(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closeLogs()

	logger.Info().
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("config", configPath).
		Str("instance_id", cfg.Instance.ID).
		Msg("starting wiotimer")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()
	go watchStdin(os.Stdin, cancel, logger)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.NewPrometheusCollector(promReg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	dialer, err := transport.NewDialer(transport.Kind(cfg.Socket.Transport), transport.Config{
		ChunkSize:        cfg.Socket.ChunkSize,
		HandshakeTimeout: cfg.Socket.HandshakeTimeout,
		KeepAlive:        cfg.Socket.KeepAlive,
		CloseTimeout:     cfg.Socket.CloseTimeout,
	})
	if err != nil {
		return err
	}

	registry := connection.NewRegistry(dialer,
		connection.WithLogger(logging.FromZerolog(logger.With().Str("component", "connection").Logger())),
		connection.WithMetrics(collector),
		connection.WithChunkSize(cfg.Socket.ChunkSize),
		connection.WithAnnounceID(cfg.Socket.Announce()),
		connection.WithOperationTimeout(cfg.Socket.OperationTimeout),
	)

	detector, err := trigger.New(cfg.Trigger.Expression)
	if err != nil {
		return err
	}

	lightsClient := lights.NewClient(
		cfg.Lights.BaseURL,
		lights.WithPaths(cfg.Lights.StartPath, cfg.Lights.StopPath),
		lights.WithTimeout(cfg.Lights.Timeout),
		lights.WithRetries(cfg.Lights.MaxRetries, 500*time.Millisecond),
		lights.WithLogger(logger.With().Str("component", "lights").Logger()),
	)

	t := timer.New(timer.FromConfig(cfg), registry, lightsClient, detector, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           newHandler(promReg, cfg.Metrics.Path, registry, cfg.Socket.ID),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Int("port", cfg.Metrics.Port).Msg("starting metrics server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := t.Start(gctx); err != nil {
			return fmt.Errorf("start timer: %w", err)
		}
		logger.Info().
			Str("uri", cfg.Socket.URI).
			Str("health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port)).
			Msg("wiotimer running")

		<-gctx.Done()
		logger.Info().Msg("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := t.Stop(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("timer stop")
		}
		if err := registry.Close(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("registry close")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info().Msg("wiotimer stopped")
	return err
}

// watchStdin cancels when a "stop" line arrives. EOF leaves the process
// running so it can be started without a terminal.
func watchStdin(r io.Reader, cancel context.CancelFunc, logger zerolog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if strings.EqualFold(strings.TrimSpace(scanner.Text()), "stop") {
			logger.Info().Msg("stop requested on stdin")
			cancel()
			return
		}
	}
}
