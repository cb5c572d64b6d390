// wsprobe connects to a WebSocket endpoint through the connection registry,
// prints every inbound message and sends each stdin line as a message.
// Usage: go run ./cmd/wsprobe --uri ws://localhost:8080/socket --id probe
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rickgao/wiotimer/internal/connection"
	"github.com/rickgao/wiotimer/internal/frame"
	"github.com/rickgao/wiotimer/internal/logging"
	"github.com/rickgao/wiotimer/internal/transport"
)

func main() {
	uri := flag.String("uri", "ws://localhost:8080/socket", "endpoint to connect to")
	id := flag.String("id", "wsprobe", "connection id")
	kind := flag.String("transport", string(transport.KindGorilla), "gorilla or coder")
	chunk := flag.Int("chunk", frame.DefaultChunkSize, "frame size in bytes")
	announce := flag.Bool("announce", false, "send the connection id after connecting")
	verbose := flag.Bool("verbose", false, "log connection internals")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	cfg := transport.DefaultConfig()
	cfg.ChunkSize = *chunk
	dialer, err := transport.NewDialer(transport.Kind(*kind), cfg)
	if err != nil {
		logger.Error().Err(err).Msg("invalid transport")
		os.Exit(1)
	}

	registry := connection.InitDefault(dialer,
		connection.WithLogger(logging.FromZerolog(logger)),
		connection.WithChunkSize(*chunk),
		connection.WithAnnounceID(*announce),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("received shutdown signal")
		cancel()
	}()

	callbacks := connection.Callbacks{
		OnConnect: func(context.Context) error {
			logger.Info().Str("uri", *uri).Msg("connected")
			return nil
		},
		OnDisconnect: func(context.Context) error {
			logger.Info().Msg("disconnected")
			cancel()
			return nil
		},
		OnMessage: func(_ context.Context, payload string) error {
			fmt.Printf("[RECV %d bytes] %s\n", len(payload), payload)
			return nil
		},
	}

	if err := connection.Default().Add(ctx, *id, *uri, callbacks, true); err != nil {
		logger.Error().Err(err).Msg("failed to connect")
		os.Exit(1)
	}

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if err := registry.Send(ctx, *id, scanner.Text()); err != nil {
				logger.Warn().Err(err).Msg("send failed")
			}
		}
	}()

	logger.Info().Msg("probe running - type lines to send, Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := registry.Remove(shutdownCtx, *id); err != nil {
		logger.Warn().Err(err).Msg("remove")
	}
	logger.Info().Msg("shutdown complete")
}
