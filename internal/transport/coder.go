package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/rickgao/wiotimer/internal/frame"
)

// coderReadLimit bounds a single inbound message.
const coderReadLimit = 32 * 1024 * 1024

// CoderDialer opens WebSocket transports with coder/websocket.
type CoderDialer struct {
	cfg Config
}

// NewCoderDialer creates a dialer. Zero fields of cfg take defaults.
func NewCoderDialer(cfg Config) *CoderDialer {
	return &CoderDialer{cfg: cfg.withDefaults()}
}

// Dial performs the opening handshake.
func (d *CoderDialer) Dial(ctx context.Context, uri string) (Transport, error) {
	if uri == "" {
		return nil, ErrEmptyAddress
	}

	dialCtx, cancel := context.WithTimeout(ctx, d.cfg.HandshakeTimeout)
	defer cancel()

	opts := &websocket.DialOptions{}
	if d.cfg.Header != nil {
		opts.HTTPHeader = d.cfg.Header.Clone()
	}

	conn, _, err := websocket.Dial(dialCtx, uri, opts)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(coderReadLimit)

	c := &coderConn{
		conn: conn,
		cfg:  d.cfg,
		done: make(chan struct{}),
	}

	if d.cfg.KeepAlive > 0 {
		go c.heartbeatLoop()
	}

	return c, nil
}

// coderConn implements Transport over a coder/websocket connection.
type coderConn struct {
	conn *websocket.Conn
	cfg  Config

	reader io.Reader

	writeMu sync.Mutex
	writer  io.WriteCloser

	closeSent   atomic.Bool
	disposeOnce sync.Once
	done        chan struct{}
}

// WriteFrame writes one frame of the current text message.
func (c *coderConn) WriteFrame(ctx context.Context, f frame.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.disposed() {
		return ErrDisposed
	}

	if c.writer == nil {
		w, err := c.conn.Writer(ctx, websocket.MessageText)
		if err != nil {
			return contextError(ctx, err)
		}
		c.writer = w
	}

	if _, err := c.writer.Write(f.Payload); err != nil {
		c.writer = nil
		return contextError(ctx, err)
	}

	if f.Final {
		err := c.writer.Close()
		c.writer = nil
		if err != nil {
			return contextError(ctx, err)
		}
	}

	return nil
}

// ReadFrame reads up to one chunk of the current inbound message.
func (c *coderConn) ReadFrame(ctx context.Context) (frame.Frame, error) {
	if c.disposed() {
		return frame.Frame{}, ErrDisposed
	}

	if c.reader == nil {
		_, r, err := c.conn.Reader(ctx)
		if err != nil {
			return c.readError(ctx, err)
		}
		c.reader = r
	}

	buf := make([]byte, c.cfg.ChunkSize)
	n, err := io.ReadFull(c.reader, buf)
	switch {
	case err == nil:
		return frame.Frame{Payload: buf[:n], Kind: frame.KindData}, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.reader = nil
		return frame.Frame{Payload: buf[:n], Final: true, Kind: frame.KindData}, nil
	default:
		c.reader = nil
		return c.readError(ctx, err)
	}
}

func (c *coderConn) readError(ctx context.Context, err error) (frame.Frame, error) {
	if websocket.CloseStatus(err) != -1 {
		return frame.Frame{Final: true, Kind: frame.KindClose}, nil
	}
	return frame.Frame{}, contextError(ctx, err)
}

// Close performs the closing handshake. coder/websocket waits for the peer's
// close frame itself; ctx bounds that wait.
func (c *coderConn) Close(ctx context.Context, reason string) error {
	if c.closeSent.Swap(true) {
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.conn.Close(websocket.StatusNormalClosure, reason)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		c.conn.CloseNow()
		return ctx.Err()
	}
}

// Dispose closes the connection without a handshake.
func (c *coderConn) Dispose() error {
	var err error
	c.disposeOnce.Do(func() {
		close(c.done)
		err = c.conn.CloseNow()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	})
	return err
}

func (c *coderConn) disposed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *coderConn) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
