// Package kit holds the small endpoint plumbing shared by the engine's
// tool surfaces: a transport-agnostic Endpoint type, middleware chaining,
// and the MCP registration adapter.
package kit

import "context"

// Endpoint is one callable operation: typed request in, typed response
// out. Transports (MCP, HTTP) adapt around this shape.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares outermost-first: Chain(a, b)(e) runs a,
// then b, then e.
func Chain(mws ...Middleware) Middleware {
	return func(e Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			e = mws[i](e)
		}
		return e
	}
}
