package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/wiotimer/internal/frame"
	"github.com/rickgao/wiotimer/internal/logging"
	"github.com/rickgao/wiotimer/internal/metrics"
	"github.com/rickgao/wiotimer/internal/transport"
)

// closeReplyTimeout bounds the close frame written in reply to a peer close.
const closeReplyTimeout = time.Second

// Handle is one managed connection. The URI and callbacks are fixed at
// construction; the transport and session change on every connect.
type Handle struct {
	id        string
	uri       string
	dialer    transport.Dialer
	chunkSize int
	announce  bool
	timeout   time.Duration
	log       logging.Logger
	metrics   metrics.Collector

	// Cancelled on release.
	ctx    context.Context
	cancel context.CancelFunc

	// Serializes Connect, Disconnect and release.
	mu sync.Mutex

	// Keeps the frames of one outbound message contiguous.
	sendMu sync.Mutex

	// Guards the fields below; shared with the read loop.
	stateMu  sync.RWMutex
	state    State
	conn     transport.Transport
	session  string
	closing  bool
	loopDone chan struct{}

	// Set while the read loop runs OnMessage for conn.
	dispatching bool

	// nil once released.
	router atomic.Pointer[router]
}

func newHandle(id, uri string, cb Callbacks, dialer transport.Dialer, o options) *Handle {
	log := logging.With(o.logger, "connection", id)
	ctx, cancel := context.WithCancel(context.Background())

	h := &Handle{
		id:        id,
		uri:       uri,
		dialer:    dialer,
		chunkSize: o.chunkSize,
		announce:  o.announce,
		timeout:   o.timeout,
		log:       log,
		metrics:   o.metrics,
		ctx:       ctx,
		cancel:    cancel,
	}
	h.router.Store(newRouter(id, cb, log, o.metrics))
	return h
}

// ID returns the connection identifier.
func (h *Handle) ID() string { return h.id }

// URI returns the endpoint the handle dials.
func (h *Handle) URI() string { return h.uri }

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.state
}

// Session returns the id of the current session, or "" while closed.
func (h *Handle) Session() string {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.session
}

// Released reports whether the handle has been released.
func (h *Handle) Released() bool {
	return h.router.Load() == nil
}

// Connect opens the connection and runs OnConnect. It is a no-op while open.
func (h *Handle) Connect(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.router.Load()
	if r == nil {
		return fmt.Errorf("connection %s: connect: %w", h.id, ErrReleased)
	}
	if h.State() == StateOpen {
		return nil
	}

	ctx, cancel := h.bound(ctx)
	defer cancel()

	conn, err := h.dialer.Dial(ctx, h.uri)
	if err != nil {
		return &TransportError{Op: "connect", ID: h.id, URI: h.uri, Err: err}
	}

	session := uuid.NewString()
	h.stateMu.Lock()
	h.state = StateOpen
	h.conn = conn
	h.session = session
	h.closing = false
	h.stateMu.Unlock()

	if err := r.connect(ctx); err != nil {
		h.abort(ctx, conn)
		h.log.WriteError(logging.SeverityError, err)
		return err
	}

	done := make(chan struct{})
	h.stateMu.Lock()
	h.loopDone = done
	h.stateMu.Unlock()

	h.metrics.ConnectionOpened(h.id)
	h.log.Write(logging.SeverityDebug, "connected to "+h.uri+" (session "+session+")")
	go h.readLoop(conn, r, done)

	if h.announce {
		if err := h.Send(ctx, h.id); err != nil {
			h.log.WriteError(logging.SeverityWarn, err)
		}
	}
	return nil
}

// abort tears down a session whose OnConnect failed. OnDisconnect does not
// fire for it.
func (h *Handle) abort(ctx context.Context, conn transport.Transport) {
	h.stateMu.Lock()
	h.closing = true
	h.stateMu.Unlock()

	h.sendMu.Lock()
	conn.Close(ctx, "")
	conn.Dispose()
	h.sendMu.Unlock()

	h.stateMu.Lock()
	h.setClosed()
	h.stateMu.Unlock()
}

// Disconnect closes an open connection, waits for its read loop and runs
// OnDisconnect. With cleanup the handle is also released, even when it was
// already closed. Messages that arrive once Disconnect has started are
// dropped. When called while OnMessage is running, including from OnMessage
// itself, Disconnect does not wait for the read loop; the transport is
// disposed and the loop exits when the callback returns.
func (h *Handle) Disconnect(ctx context.Context, cleanup bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.router.Load()
	if r == nil {
		return nil
	}

	err := h.disconnect(ctx, r)
	if cleanup {
		h.releaseLocked()
	}
	return err
}

func (h *Handle) disconnect(ctx context.Context, r *router) error {
	h.stateMu.Lock()
	if h.state != StateOpen || h.closing {
		h.stateMu.Unlock()
		return nil
	}
	h.closing = true
	conn, done, inCallback := h.conn, h.loopDone, h.dispatching
	h.stateMu.Unlock()

	ctx, cancel := h.bound(ctx)
	defer cancel()

	var closeErr error
	if err := conn.Close(ctx, ""); err != nil {
		closeErr = &TransportError{Op: "disconnect", ID: h.id, URI: h.uri, Err: err}
		conn.Dispose()
	}

	if inCallback {
		conn.Dispose()
	} else if err := h.awaitLoop(ctx, conn, done); err != nil && closeErr == nil {
		closeErr = &TransportError{Op: "disconnect", ID: h.id, URI: h.uri, Err: err}
	}

	h.stateMu.Lock()
	h.setClosed()
	h.stateMu.Unlock()

	h.metrics.ConnectionClosed(h.id, metrics.ReasonLocal)
	h.log.Write(logging.SeverityDebug, "disconnected")

	if err := r.disconnect(context.WithoutCancel(ctx)); err != nil {
		h.log.WriteError(logging.SeverityError, err)
		return err
	}
	return closeErr
}

// awaitLoop waits for the read loop to observe the close. Once ctx expires
// the transport is disposed and the loop gets closeReplyTimeout to exit.
func (h *Handle) awaitLoop(ctx context.Context, conn transport.Transport, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	h.log.Write(logging.SeverityWarn, "close not confirmed, disposing transport")
	conn.Dispose()

	wait := time.NewTimer(closeReplyTimeout)
	defer wait.Stop()
	select {
	case <-done:
		return nil
	case <-wait.C:
		return ctx.Err()
	}
}

// Release clears the callbacks and cancels the handle's context. An open
// session ends without OnDisconnect. Later Connect calls fail with
// ErrReleased.
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releaseLocked()
}

func (h *Handle) releaseLocked() {
	if h.router.Swap(nil) != nil {
		h.cancel()
	}
}

// Send writes msg as one text message. The handle must be open.
func (h *Handle) Send(ctx context.Context, msg string) error {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	h.stateMu.RLock()
	state, conn, closing := h.state, h.conn, h.closing
	h.stateMu.RUnlock()

	if state != StateOpen || closing || conn == nil {
		return &StateError{Op: "send", ID: h.id, State: state}
	}

	ctx, cancel := h.bound(ctx)
	defer cancel()

	frames := frame.Encode(msg, h.chunkSize)
	for _, f := range frames {
		if err := conn.WriteFrame(ctx, f); err != nil {
			return &TransportError{Op: "send", ID: h.id, Err: err}
		}
	}

	h.metrics.MessageSent(h.id, len(msg), len(frames))
	return nil
}

// readLoop decodes inbound messages until the session ends. It owns conn and
// disposes it on exit.
func (h *Handle) readLoop(conn transport.Transport, r *router, done chan struct{}) {
	defer close(done)
	defer conn.Dispose()

	for {
		msg, err := frame.Decode(h.ctx, conn)
		if err == nil {
			h.metrics.MessageReceived(h.id, len(msg))
			if !h.beginDispatch(conn) {
				if h.current(conn) {
					// Closing: keep reading until the close is confirmed.
					continue
				}
				return
			}
			r.message(h.ctx, msg)
			if !h.endDispatch(conn) {
				return
			}
			continue
		}

		reason := metrics.ReasonError
		if errors.Is(err, frame.ErrClosed) {
			reason = metrics.ReasonPeer
			replyCtx, cancel := context.WithTimeout(context.Background(), closeReplyTimeout)
			conn.Close(replyCtx, "")
			cancel()
		}

		// While closing, the close frame or error confirms our own Disconnect.
		if !h.markClosed(conn) {
			return
		}

		if h.Released() {
			h.metrics.ConnectionClosed(h.id, metrics.ReasonLocal)
			h.log.Write(logging.SeverityDebug, "released while open")
			return
		}

		h.metrics.ConnectionClosed(h.id, reason)
		if reason == metrics.ReasonPeer {
			h.log.Write(logging.SeverityDebug, "closed by peer")
		} else {
			h.log.WriteError(logging.SeverityWarn, fmt.Errorf("read failed: %w", err))
		}

		if err := r.disconnect(h.ctx); err != nil {
			h.log.WriteError(logging.SeverityError, err)
		}
		return
	}
}

// beginDispatch marks the loop as inside OnMessage. It reports false once a
// local Disconnect has started or conn is no longer current.
func (h *Handle) beginDispatch(conn transport.Transport) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	if h.closing || h.conn != conn {
		return false
	}
	h.dispatching = true
	return true
}

// endDispatch clears the marker and reports whether conn is still current.
func (h *Handle) endDispatch(conn transport.Transport) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	if h.conn != conn {
		return false
	}
	h.dispatching = false
	return true
}

func (h *Handle) current(conn transport.Transport) bool {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.conn == conn
}

// markClosed moves the handle to Closed unless a local Disconnect owns the
// transition or conn is no longer current.
func (h *Handle) markClosed(conn transport.Transport) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	if h.closing || h.conn != conn {
		return false
	}
	h.setClosed()
	return true
}

// setClosed requires stateMu.
func (h *Handle) setClosed() {
	h.state = StateClosed
	h.conn = nil
	h.session = ""
	h.closing = false
	h.loopDone = nil
	h.dispatching = false
}

// bound applies the default operation timeout when ctx has no deadline.
func (h *Handle) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}
