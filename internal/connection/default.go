package connection

import (
	"sync"

	"github.com/rickgao/wiotimer/internal/transport"
)

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// InitDefault builds the process-wide registry on first call and returns it.
// Later calls ignore their arguments.
func InitDefault(dialer transport.Dialer, opts ...Option) *Registry {
	defaultOnce.Do(func() {
		if dialer == nil {
			dialer = transport.NewGorillaDialer(transport.DefaultConfig())
		}
		defaultRegistry = NewRegistry(dialer, opts...)
	})
	return defaultRegistry
}

// Default returns the process-wide registry, creating it with the gorilla
// dialer and default options if InitDefault has not run.
func Default() *Registry {
	return InitDefault(nil)
}
