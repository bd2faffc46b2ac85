// Package kit holds the small endpoint abstraction shared by the broker's
// outer surfaces (MCP tools, admin HTTP) and the context keys they use to
// carry request metadata into logs.
package kit

import "context"

// Endpoint is a transport-agnostic operation: typed request in, typed response out.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware decorates an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares; the first one is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
