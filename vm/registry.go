package vm

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/game"
)

// ErrNoHandler is returned for a transaction type nothing registered.
var ErrNoHandler = errors.New("no handler registered")

// Handler is the function signature every transaction module must implement.
type Handler func(ctx *Context, payload json.RawMessage) error

// Registry maps TxTypes to Handlers. Thread-safe for concurrent registration.
type Registry struct {
	mu       sync.RWMutex
	handlers map[core.TxType]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[core.TxType]Handler)}
}

// Register associates typ with h. Panics on duplicate registration.
func (r *Registry) Register(typ core.TxType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[typ]; exists {
		panic(fmt.Sprintf("vm: handler already registered for TxType %q", typ))
	}
	r.handlers[typ] = h
}

// Execute dispatches payload to the handler registered for typ. A handler
// panic is returned as a fatal error so the block is reverted instead of
// the node crashing.
func (r *Registry) Execute(typ core.TxType, ctx *Context, payload json.RawMessage) (err error) {
	r.mu.RLock()
	h, ok := r.handlers[typ]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoHandler, typ)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %s handler panicked: %v", game.ErrInvariantBroken, typ, p)
		}
	}()
	return h(ctx, payload)
}

// Types lists the registered transaction types in order.
func (r *Registry) Types() []core.TxType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.TxType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// globalRegistry is the package-level singleton that modules register into.
var globalRegistry = NewRegistry()

// Register adds a handler to the global registry.
// Module init() functions call this to self-register.
func Register(typ core.TxType, h Handler) {
	globalRegistry.Register(typ, h)
}

// RegisteredTypes lists the transaction types of the global registry.
func RegisteredTypes() []core.TxType {
	return globalRegistry.Types()
}
