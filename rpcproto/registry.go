package rpcproto

import (
	"fmt"
	"sync"
)

// Handler runs one remote procedure: it reads the input arguments already
// populated in av and overwrites the output arguments (including the
// trailing status slot) in place. Handlers never return a Go error for a
// failed host operation — per spec.md §4.3 that belongs in the status slot;
// a non-nil error here signals a codec-level problem and is treated as a
// transport failure by the server loop.
type Handler func(av *ArgVector) error

// Registry is the server-side table of registered remote procedures,
// mirroring rpcRegister/rpc_watdfs_server_register from the original
// implementation.
type Registry struct {
	mu    sync.RWMutex
	procs map[string]Handler
}

// NewRegistry returns an empty procedure registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[string]Handler)}
}

// Register adds a procedure. It returns an error if the name is already
// registered, the Go equivalent of the original's negative rpcRegister
// return code that server startup treats as a RegistrationFailure.
func (r *Registry) Register(name string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.procs[name]; exists {
		return fmt.Errorf("rpcproto: procedure %q already registered", name)
	}
	r.procs[name] = h
	return nil
}

// Lookup returns the handler registered for name, if any.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.procs[name]
	return h, ok
}
