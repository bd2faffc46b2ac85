// Package connectivity is the in-process message router that joins the page
// side of prquick to its agent side. Each side only sees service names and
// byte payloads:
//
//	router := connectivity.New()
//	router.RegisterLocal("broker", broker.Handler())
//
//	// Page side, knows nothing about the broker's types:
//	resp, err := router.Call(ctx, "broker", payload)
//
// A service can be switched off at runtime with Disable; calls to a disabled
// service fail with ErrServiceDisabled instead of reaching the handler.
package connectivity

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Handler is a transport-agnostic service function: bytes in, bytes out.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// Router dispatches service calls to registered handlers.
// Thread-safe: calls use RLock, registration uses full Lock.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	disabled map[string]bool
	logger   *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets a custom logger for the router.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a Router with no services.
func New(opts ...Option) *Router {
	r := &Router{
		handlers: make(map[string]Handler),
		disabled: make(map[string]bool),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterLocal registers an in-memory handler for a service, replacing any
// previous one.
func (r *Router) RegisterLocal(service string, h Handler) {
	r.mu.Lock()
	r.handlers[service] = h
	r.mu.Unlock()
}

// Unregister removes a service. Later calls fail with ErrServiceNotFound,
// which is what a torn-down agent looks like from the page side.
func (r *Router) Unregister(service string) {
	r.mu.Lock()
	delete(r.handlers, service)
	delete(r.disabled, service)
	r.mu.Unlock()
}

// Disable makes calls to service fail fast without reaching its handler.
func (r *Router) Disable(service string, off bool) {
	r.mu.Lock()
	if off {
		r.disabled[service] = true
	} else {
		delete(r.disabled, service)
	}
	r.mu.Unlock()
}

// Services lists registered service names in sorted order.
func (r *Router) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Call dispatches a service call.
func (r *Router) Call(ctx context.Context, service string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	h := r.handlers[service]
	off := r.disabled[service]
	r.mu.RUnlock()

	if h == nil {
		return nil, &ErrServiceNotFound{Service: service}
	}
	if off {
		r.logger.DebugContext(ctx, "routing disabled", "service", service)
		return nil, &ErrServiceDisabled{Service: service}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.logger.DebugContext(ctx, "routing local", "service", service)
	return h(ctx, payload)
}
