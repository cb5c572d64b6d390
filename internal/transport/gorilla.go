package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/wiotimer/internal/frame"
)

// GorillaDialer opens WebSocket transports with gorilla/websocket.
type GorillaDialer struct {
	cfg Config
}

// NewGorillaDialer creates a dialer. Zero fields of cfg take defaults.
func NewGorillaDialer(cfg Config) *GorillaDialer {
	return &GorillaDialer{cfg: cfg.withDefaults()}
}

// Dial performs the opening handshake.
func (d *GorillaDialer) Dial(ctx context.Context, uri string) (Transport, error) {
	if uri == "" {
		return nil, ErrEmptyAddress
	}

	// Buffer sizes match the chunk size so wire frames follow chunk boundaries.
	dialer := websocket.Dialer{
		HandshakeTimeout: d.cfg.HandshakeTimeout,
		ReadBufferSize:   d.cfg.ChunkSize,
		WriteBufferSize:  d.cfg.ChunkSize,
	}

	conn, _, err := dialer.DialContext(ctx, uri, d.cfg.Header)
	if err != nil {
		return nil, err
	}

	c := &gorillaConn{
		conn: conn,
		cfg:  d.cfg,
		done: make(chan struct{}),
	}

	// Answer a peer close exactly once; the read side reports it as a close frame.
	conn.SetCloseHandler(func(code int, text string) error {
		err := c.writeClose(code, "", time.Now().Add(c.cfg.CloseTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	if d.cfg.KeepAlive > 0 {
		go c.heartbeatLoop()
	}

	return c, nil
}

// gorillaConn implements Transport over a gorilla connection.
type gorillaConn struct {
	conn *websocket.Conn
	cfg  Config

	// Current inbound message; touched only by the reading goroutine.
	reader io.Reader

	// Current outbound message.
	writeMu sync.Mutex
	writer  io.WriteCloser

	closeSent   atomic.Bool
	disposeOnce sync.Once
	disposeErr  error
	done        chan struct{}
}

// WriteFrame writes one frame of the current text message.
func (c *gorillaConn) WriteFrame(ctx context.Context, f frame.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.disposed() {
		return ErrDisposed
	}

	if d, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(d)
	} else {
		c.conn.SetWriteDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.NetConn().SetWriteDeadline(time.Now())
	})
	defer stop()

	if c.writer == nil {
		w, err := c.conn.NextWriter(websocket.TextMessage)
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
func (c *gorillaConn) ReadFrame(ctx context.Context) (frame.Frame, error) {
	if c.disposed() {
		return frame.Frame{}, ErrDisposed
	}

	if d, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(d)
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.NetConn().SetReadDeadline(time.Now())
	})
	defer stop()

	if c.reader == nil {
		_, r, err := c.conn.NextReader()
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

// readError maps a peer close frame to a close frame; everything else,
// including an abnormal closure (no close frame on the wire), is an error.
func (c *gorillaConn) readError(ctx context.Context, err error) (frame.Frame, error) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
		return frame.Frame{Final: true, Kind: frame.KindClose}, nil
	}
	return frame.Frame{}, contextError(ctx, err)
}

// Close sends a normal closure.
func (c *gorillaConn) Close(ctx context.Context, reason string) error {
	err := c.writeClose(websocket.CloseNormalClosure, reason, deadline(ctx, c.cfg.CloseTimeout))
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

func (c *gorillaConn) writeClose(code int, reason string, dl time.Time) error {
	if c.closeSent.Swap(true) {
		return nil
	}
	msg := websocket.FormatCloseMessage(code, reason)
	return c.conn.WriteControl(websocket.CloseMessage, msg, dl)
}

// Dispose closes the network connection.
func (c *gorillaConn) Dispose() error {
	c.disposeOnce.Do(func() {
		close(c.done)
		c.disposeErr = c.conn.Close()
	})
	return c.disposeErr
}

func (c *gorillaConn) disposed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// heartbeatLoop sends keep-alive pings until the transport is disposed.
func (c *gorillaConn) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			dl := time.Now().Add(c.cfg.CloseTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), dl); err != nil {
				return
			}
		}
	}
}

// contextError prefers the context's error when it caused err.
func contextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
