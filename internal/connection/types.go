package connection

import (
	"context"
	"time"

	"github.com/rickgao/wiotimer/internal/frame"
	"github.com/rickgao/wiotimer/internal/logging"
	"github.com/rickgao/wiotimer/internal/metrics"
)

// State is the lifecycle state of a Handle.
type State int32

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Hook names used in logs, metrics and CallbackError.
const (
	HookConnect    = "onConnect"
	HookDisconnect = "onDisconnect"
	HookMessage    = "onMessage"
)

// Callbacks are the caller's notifications for one connection. All three
// are required. A callback must not synchronously Connect, Disconnect or
// Remove its own connection; do that from another goroutine.
type Callbacks struct {
	// OnConnect runs after the handshake, before Connect returns. The
	// connection is open and may send. An error aborts the connect.
	OnConnect func(ctx context.Context) error

	// OnDisconnect runs once per session after the connection is closed,
	// whether locally, by the peer or by a read failure.
	OnDisconnect func(ctx context.Context) error

	// OnMessage runs on the read loop for each complete inbound message, in
	// arrival order. Errors and panics are logged, never propagated.
	OnMessage func(ctx context.Context, payload string) error
}

func (c Callbacks) validate() error {
	switch {
	case c.OnConnect == nil:
		return &ArgumentError{Field: "callbacks", Reason: "OnConnect is nil"}
	case c.OnDisconnect == nil:
		return &ArgumentError{Field: "callbacks", Reason: "OnDisconnect is nil"}
	case c.OnMessage == nil:
		return &ArgumentError{Field: "callbacks", Reason: "OnMessage is nil"}
	}
	return nil
}

// Stats provides statistics about the registry.
type Stats struct {
	Registered int
	Open       int
}

// DefaultOperationTimeout bounds Connect, Send and Disconnect when the
// caller's context has no deadline.
const DefaultOperationTimeout = 30 * time.Second

// Option configures a Registry.
type Option func(*options)

type options struct {
	logger    logging.Logger
	metrics   metrics.Collector
	chunkSize int
	announce  bool
	timeout   time.Duration
}

func defaultOptions() options {
	return options{
		logger:    logging.Nop(),
		metrics:   metrics.Noop(),
		chunkSize: frame.DefaultChunkSize,
		timeout:   DefaultOperationTimeout,
	}
}

// WithLogger sets the logger handed to every connection.
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(o *options) {
		if c != nil {
			o.metrics = c
		}
	}
}

// WithChunkSize sets the outbound frame size. Values <= 0 keep the default;
// values above frame.MaxChunkSize are clamped.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = frame.ClampChunkSize(n)
		}
	}
}

// WithAnnounceID makes every connection send its id as the first message
// after OnConnect succeeds.
func WithAnnounceID(enabled bool) Option {
	return func(o *options) {
		o.announce = enabled
	}
}

// WithOperationTimeout sets the deadline applied to operations whose
// context has none. Zero disables it.
func WithOperationTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}
