package connection

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/wiotimer/internal/logging"
	"github.com/rickgao/wiotimer/internal/transport"
)

// Registry maps connection ids to Handles. Operations on unknown ids are
// silent no-ops. Ids are matched exactly; Add and Exists also match the
// trimmed id so padded duplicates are not registered twice.
type Registry struct {
	dialer transport.Dialer
	opts   options

	mu      sync.RWMutex
	entries map[string]*Handle
}

// NewRegistry creates a registry that opens connections with dialer.
func NewRegistry(dialer transport.Dialer, opts ...Option) *Registry {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{
		dialer:  dialer,
		opts:    o,
		entries: make(map[string]*Handle),
	}
}

// Add registers a connection. An id or uri that is empty or only whitespace
// is rejected with an ArgumentError. Registering an id that already exists
// is a no-op and the new uri and callbacks are discarded. With autoConnect the
// connection is opened before Add returns; if that fails the entry stays
// registered and the error is returned.
func (r *Registry) Add(ctx context.Context, id, uri string, cb Callbacks, autoConnect bool) error {
	if strings.TrimSpace(id) == "" {
		return &ArgumentError{Field: "id", Reason: "empty"}
	}
	if strings.TrimSpace(uri) == "" {
		return &ArgumentError{Field: "uri", Reason: "empty"}
	}
	if err := cb.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	if r.lookupLocked(id) != nil {
		r.mu.Unlock()
		r.opts.logger.Write(logging.SeverityDebug, "connection "+id+" already registered")
		return nil
	}
	h := newHandle(id, uri, cb, r.dialer, r.opts)
	r.entries[id] = h
	r.mu.Unlock()

	if !autoConnect {
		return nil
	}
	return h.Connect(ctx)
}

// Connect opens the connection registered under id.
func (r *Registry) Connect(ctx context.Context, id string) error {
	h := r.get(id)
	if h == nil {
		return nil
	}
	return h.Connect(ctx)
}

// Disconnect closes the connection registered under id. The entry and its
// callbacks are kept, so it can be connected again.
func (r *Registry) Disconnect(ctx context.Context, id string) error {
	h := r.get(id)
	if h == nil {
		return nil
	}
	return h.Disconnect(ctx, false)
}

// Remove disconnects id (OnDisconnect fires if it was open), deletes the
// entry and releases the handle.
func (r *Registry) Remove(ctx context.Context, id string) error {
	h := r.get(id)
	if h == nil {
		return nil
	}

	err := h.Disconnect(ctx, false)

	r.mu.Lock()
	if r.entries[id] == h {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	h.Release()
	return err
}

// Send writes msg on the connection registered under id.
func (r *Registry) Send(ctx context.Context, id, msg string) error {
	h := r.get(id)
	if h == nil {
		return nil
	}
	return h.Send(ctx, msg)
}

// Exists reports whether id (or its trimmed form) is registered.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupLocked(id) != nil
}

// Get returns the handle registered under id.
func (r *Registry) Get(id string) (*Handle, bool) {
	h := r.get(id)
	return h, h != nil
}

// State returns the state of id and whether it is registered.
func (r *Registry) State(id string) (State, bool) {
	h := r.get(id)
	if h == nil {
		return StateClosed, false
	}
	return h.State(), true
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Stats returns current registry statistics.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{Registered: len(r.entries)}
	for _, h := range r.entries {
		if h.State() == StateOpen {
			stats.Open++
		}
	}
	return stats
}

// Close disconnects and releases every connection concurrently and empties
// the registry. The first error is returned after all handles are done.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.entries))
	for _, h := range r.entries {
		handles = append(handles, h)
	}
	r.entries = make(map[string]*Handle)
	r.mu.Unlock()

	var g errgroup.Group
	for _, h := range handles {
		h := h
		g.Go(func() error {
			return h.Disconnect(ctx, true)
		})
	}
	return g.Wait()
}

func (r *Registry) get(id string) *Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id]
}

// lookupLocked matches id exactly, then trimmed. Requires mu.
func (r *Registry) lookupLocked(id string) *Handle {
	if h, ok := r.entries[id]; ok {
		return h
	}
	return r.entries[strings.TrimSpace(id)]
}
