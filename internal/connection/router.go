package connection

import (
	"context"
	"fmt"

	"github.com/rickgao/wiotimer/internal/logging"
	"github.com/rickgao/wiotimer/internal/metrics"
)

// router wraps a connection's callbacks with logging and the error policy:
// lifecycle errors are returned, message errors are logged and counted.
type router struct {
	id      string
	cb      Callbacks
	log     logging.Logger
	metrics metrics.Collector
}

func newRouter(id string, cb Callbacks, log logging.Logger, m metrics.Collector) *router {
	return &router{id: id, cb: cb, log: log, metrics: m}
}

func (r *router) connect(ctx context.Context) error {
	r.log.Write(logging.SeverityDebug, HookConnect+" invoked")
	return r.lifecycle(HookConnect, func() error { return r.cb.OnConnect(ctx) })
}

func (r *router) disconnect(ctx context.Context) error {
	r.log.Write(logging.SeverityDebug, HookDisconnect+" invoked")
	return r.lifecycle(HookDisconnect, func() error { return r.cb.OnDisconnect(ctx) })
}

func (r *router) message(ctx context.Context, payload string) {
	r.log.Write(logging.SeverityDebug, HookMessage+" invoked")
	if err := guard(func() error { return r.cb.OnMessage(ctx, payload) }); err != nil {
		r.metrics.CallbackFailed(r.id, HookMessage)
		r.log.WriteError(logging.SeverityError, &CallbackError{Hook: HookMessage, ID: r.id, Err: err})
	}
}

func (r *router) lifecycle(hook string, fn func() error) error {
	if err := guard(fn); err != nil {
		r.metrics.CallbackFailed(r.id, hook)
		return &CallbackError{Hook: hook, ID: r.id, Err: err}
	}
	return nil
}

// guard runs fn, converting a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrCallbackPanic, p)
		}
	}()
	return fn()
}
