package connection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rickgao/wiotimer/internal/logging"
	"github.com/rickgao/wiotimer/internal/transport"
)

const waitTimeout = 2 * time.Second

// recorder collects callback invocations.
type recorder struct {
	mu          sync.Mutex
	connects    int
	disconnects int
	messages    []string

	connectErr    error
	disconnectErr error
	onConnect     func(ctx context.Context) error
	onMessage     func(payload string) error

	disconnected chan struct{}
	received     chan string
}

func newRecorder() *recorder {
	return &recorder{
		disconnected: make(chan struct{}, 16),
		received:     make(chan string, 1024),
	}
}

func (rc *recorder) callbacks() Callbacks {
	return Callbacks{
		OnConnect: func(ctx context.Context) error {
			rc.mu.Lock()
			rc.connects++
			fn, err := rc.onConnect, rc.connectErr
			rc.mu.Unlock()
			if fn != nil {
				if ferr := fn(ctx); ferr != nil {
					return ferr
				}
			}
			return err
		},
		OnDisconnect: func(ctx context.Context) error {
			rc.mu.Lock()
			rc.disconnects++
			err := rc.disconnectErr
			rc.mu.Unlock()
			rc.disconnected <- struct{}{}
			return err
		},
		OnMessage: func(ctx context.Context, payload string) error {
			rc.mu.Lock()
			rc.messages = append(rc.messages, payload)
			fn := rc.onMessage
			rc.mu.Unlock()
			rc.received <- payload
			if fn != nil {
				return fn(payload)
			}
			return nil
		},
	}
}

func (rc *recorder) counts() (connects, disconnects int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.connects, rc.disconnects
}

func (rc *recorder) got() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]string(nil), rc.messages...)
}

func (rc *recorder) waitDisconnect(t *testing.T) {
	t.Helper()
	select {
	case <-rc.disconnected:
	case <-time.After(waitTimeout):
		t.Fatal("timeout waiting for OnDisconnect")
	}
}

func (rc *recorder) waitMessage(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-rc.received:
		return msg
	case <-time.After(waitTimeout):
		t.Fatal("timeout waiting for OnMessage")
		return ""
	}
}

// noDisconnect asserts OnDisconnect does not fire within a short window.
func (rc *recorder) noDisconnect(t *testing.T) {
	t.Helper()
	select {
	case <-rc.disconnected:
		t.Fatal("unexpected OnDisconnect")
	case <-time.After(50 * time.Millisecond):
	}
}

// captureLogger records log lines by severity.
type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (c *captureLogger) Write(sev logging.Severity, msg string) {
	c.mu.Lock()
	c.lines = append(c.lines, sev.String()+": "+msg)
	c.mu.Unlock()
}

func (c *captureLogger) WriteError(sev logging.Severity, err error) {
	c.Write(sev, err.Error())
}

func (c *captureLogger) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// fakeMetrics records collector calls.
type fakeMetrics struct {
	mu       sync.Mutex
	opened   int
	closed   []string
	received int
	sent     int
	frames   int
	failed   []string
}

func (f *fakeMetrics) ConnectionOpened(string) {
	f.mu.Lock()
	f.opened++
	f.mu.Unlock()
}

func (f *fakeMetrics) ConnectionClosed(_, reason string) {
	f.mu.Lock()
	f.closed = append(f.closed, reason)
	f.mu.Unlock()
}

func (f *fakeMetrics) MessageReceived(string, int) {
	f.mu.Lock()
	f.received++
	f.mu.Unlock()
}

func (f *fakeMetrics) MessageSent(_ string, _ int, frames int) {
	f.mu.Lock()
	f.sent++
	f.frames += frames
	f.mu.Unlock()
}

func (f *fakeMetrics) CallbackFailed(_, hook string) {
	f.mu.Lock()
	f.failed = append(f.failed, hook)
	f.mu.Unlock()
}

func (f *fakeMetrics) closeReasons() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.closed...)
}

func (f *fakeMetrics) failures() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.failed...)
}

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *transport.MemoryDialer) {
	t.Helper()
	d := transport.NewMemoryDialer()
	all := append([]Option{WithOperationTimeout(waitTimeout)}, opts...)
	reg := NewRegistry(d, all...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		reg.Close(ctx)
	})
	return reg, d
}

func requireState(t *testing.T, reg *Registry, id string, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, ok := reg.State(id)
		return ok && s == want
	}, waitTimeout, 5*time.Millisecond, "connection %s never reached %s", id, want)
}
