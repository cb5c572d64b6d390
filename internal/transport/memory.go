package transport

import (
	"bytes"
	"context"
	"sync"

	"github.com/rickgao/wiotimer/internal/frame"
)

// MemoryDialer hands out in-process transports whose peer side is driven
// by the caller. It records every connection it opens.
type MemoryDialer struct {
	mu      sync.Mutex
	conns   []*MemoryConn
	failErr error
	onDial  func(*MemoryConn)
}

// NewMemoryDialer creates an in-memory dialer.
func NewMemoryDialer() *MemoryDialer {
	return &MemoryDialer{}
}

// FailNext makes the next Dial return err.
func (d *MemoryDialer) FailNext(err error) {
	d.mu.Lock()
	d.failErr = err
	d.mu.Unlock()
}

// OnDial registers fn to run on every new connection before Dial returns.
func (d *MemoryDialer) OnDial(fn func(*MemoryConn)) {
	d.mu.Lock()
	d.onDial = fn
	d.mu.Unlock()
}

// Dial opens a new MemoryConn.
func (d *MemoryDialer) Dial(ctx context.Context, uri string) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if uri == "" {
		return nil, ErrEmptyAddress
	}

	d.mu.Lock()
	if err := d.failErr; err != nil {
		d.failErr = nil
		d.mu.Unlock()
		return nil, err
	}
	c := NewMemoryConn(uri)
	d.conns = append(d.conns, c)
	hook := d.onDial
	d.mu.Unlock()

	if hook != nil {
		hook(c)
	}
	return c, nil
}

// Dials returns the number of successful dials.
func (d *MemoryDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// Last returns the most recent connection, or nil.
func (d *MemoryDialer) Last() *MemoryConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type inbound struct {
	f   frame.Frame
	err error
}

// MemoryConn is one in-process transport. Push, PeerClose and Fail act as the
// remote peer; the accessors expose what the local side wrote.
type MemoryConn struct {
	uri     string
	inbound chan inbound
	done    chan struct{}

	disposeOnce sync.Once

	mu          sync.Mutex
	written     []frame.Frame
	closes      []string
	closeSent   bool
	peerClosed  bool
	silentPeer  bool
	writeErr    error
	writeBudget int // Frames accepted before writeErr (-1 = unlimited)
}

// NewMemoryConn creates a standalone connection.
func NewMemoryConn(uri string) *MemoryConn {
	return &MemoryConn{
		uri:         uri,
		inbound:     make(chan inbound, 64),
		done:        make(chan struct{}),
		writeBudget: -1,
	}
}

// URI returns the dialed address.
func (c *MemoryConn) URI() string { return c.uri }

// Push delivers frames from the peer. It blocks while the inbound buffer is
// full and drops frames once the connection is disposed.
func (c *MemoryConn) Push(frames ...frame.Frame) {
	for _, f := range frames {
		c.deliver(inbound{f: f})
	}
}

// PushMessage delivers msg split into chunk-sized frames.
func (c *MemoryConn) PushMessage(msg string, chunkSize int) {
	c.Push(frame.Encode(msg, chunkSize)...)
}

// PeerClose delivers a close frame from the peer.
func (c *MemoryConn) PeerClose() {
	c.mu.Lock()
	c.peerClosed = true
	c.mu.Unlock()
	c.deliver(inbound{f: frame.Frame{Final: true, Kind: frame.KindClose}})
}

// Fail makes the next read return err.
func (c *MemoryConn) Fail(err error) {
	c.deliver(inbound{err: err})
}

// FailWrites accepts after more frames, then fails every write with err.
func (c *MemoryConn) FailWrites(after int, err error) {
	c.mu.Lock()
	c.writeBudget = after
	c.writeErr = err
	c.mu.Unlock()
}

// IgnoreClose stops the peer from confirming a local Close.
func (c *MemoryConn) IgnoreClose() {
	c.mu.Lock()
	c.silentPeer = true
	c.mu.Unlock()
}

// Written returns the frames written so far.
func (c *MemoryConn) Written() []frame.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]frame.Frame, len(c.written))
	copy(out, c.written)
	return out
}

// Messages reassembles the written frames into complete messages.
func (c *MemoryConn) Messages() []string {
	var msgs []string
	var buf bytes.Buffer
	for _, f := range c.Written() {
		buf.Write(f.Payload)
		if f.Final {
			msgs = append(msgs, buf.String())
			buf.Reset()
		}
	}
	return msgs
}

// CloseReasons returns the reasons passed to Close, in order.
func (c *MemoryConn) CloseReasons() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.closes...)
}

// Disposed reports whether Dispose has run.
func (c *MemoryConn) Disposed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done is closed when the connection is disposed.
func (c *MemoryConn) Done() <-chan struct{} { return c.done }

// WriteFrame records f.
func (c *MemoryConn) WriteFrame(ctx context.Context, f frame.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.Disposed() {
		return ErrDisposed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeBudget == 0 {
		return c.writeErr
	}
	if c.writeBudget > 0 {
		c.writeBudget--
	}

	c.written = append(c.written, frame.Frame{
		Payload: append([]byte(nil), f.Payload...),
		Final:   f.Final,
		Kind:    f.Kind,
	})
	return nil
}

// ReadFrame returns the next frame pushed by the peer.
func (c *MemoryConn) ReadFrame(ctx context.Context) (frame.Frame, error) {
	if c.Disposed() {
		return frame.Frame{}, ErrDisposed
	}
	select {
	case in := <-c.inbound:
		return in.f, in.err
	case <-c.done:
		return frame.Frame{}, ErrDisposed
	case <-ctx.Done():
		return frame.Frame{}, ctx.Err()
	}
}

// Close records reason; unless the peer already closed or ignores closes,
// the peer confirms with a close frame.
func (c *MemoryConn) Close(ctx context.Context, reason string) error {
	c.mu.Lock()
	if c.closeSent {
		c.mu.Unlock()
		return nil
	}
	c.closeSent = true
	c.closes = append(c.closes, reason)
	confirm := !c.peerClosed && !c.silentPeer
	c.mu.Unlock()

	if confirm {
		c.deliver(inbound{f: frame.Frame{Final: true, Kind: frame.KindClose}})
	}
	return nil
}

// Dispose releases the connection.
func (c *MemoryConn) Dispose() error {
	c.disposeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *MemoryConn) deliver(in inbound) {
	if c.Disposed() {
		return
	}
	select {
	case c.inbound <- in:
	case <-c.done:
	}
}
