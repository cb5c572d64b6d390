package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rickgao/wiotimer/internal/frame"
)

// Errors
var (
	ErrDisposed     = errors.New("transport: disposed")
	ErrUnknownKind  = errors.New("transport: unknown kind")
	ErrEmptyAddress = errors.New("transport: empty address")
)

// Transport is one open socket. ReadFrame is called from a single goroutine;
// WriteFrame calls are serialized by the caller. Close and Dispose may be
// called concurrently with both.
type Transport interface {
	// WriteFrame writes one frame of the current outbound text message.
	// A Final frame completes the message.
	WriteFrame(ctx context.Context, f frame.Frame) error

	// ReadFrame returns the next chunk of the current inbound message.
	// A peer close is reported as a frame of KindClose, not as an error.
	ReadFrame(ctx context.Context) (frame.Frame, error)

	// Close sends a normal closure with reason. Only the first call writes.
	Close(ctx context.Context, reason string) error

	// Dispose releases the socket. Safe to call more than once.
	Dispose() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, uri string) (Transport, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, uri string) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context, uri string) (Transport, error) {
	return f(ctx, uri)
}

// Config configures the WebSocket dialers. ChunkSize is clamped to
// frame.MaxChunkSize.
type Config struct {
	ChunkSize        int           // Frame size for reads and write buffers
	HandshakeTimeout time.Duration // Max time for the opening handshake
	KeepAlive        time.Duration // Ping interval (0 = disabled)
	CloseTimeout     time.Duration // Close write deadline when ctx has none
	Header           http.Header   // Extra handshake headers
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:        frame.DefaultChunkSize,
		HandshakeTimeout: 10 * time.Second,
		KeepAlive:        20 * time.Second,
		CloseTimeout:     time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	c.ChunkSize = frame.ClampChunkSize(c.ChunkSize)
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = def.CloseTimeout
	}
	return c
}

// Kind names a Dialer implementation.
type Kind string

const (
	KindGorilla Kind = "gorilla"
	KindCoder   Kind = "coder"
)

// NewDialer returns the Dialer for kind.
func NewDialer(kind Kind, cfg Config) (Dialer, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case "", KindGorilla:
		return NewGorillaDialer(cfg), nil
	case KindCoder:
		return NewCoderDialer(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// deadline returns the ctx deadline, or now+fallback.
func deadline(ctx context.Context, fallback time.Duration) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(fallback)
}
