package audit

import "context"

type contextKey struct{}

// WithChain attaches chain to ctx so any function receiving ctx can append
// to it without threading an explicit *Chain parameter through every call.
func WithChain(ctx context.Context, chain *Chain) context.Context {
	return context.WithValue(ctx, contextKey{}, chain)
}

// FromContext returns the chain attached by WithChain, or nil if none was
// attached — callers treat a nil chain as "auditing not configured" and
// skip the append rather than erroring.
func FromContext(ctx context.Context) *Chain {
	chain, _ := ctx.Value(contextKey{}).(*Chain)
	return chain
}

// Append is a convenience that appends to the chain attached to ctx, if
// any, silently doing nothing otherwise.
func Append(ctx context.Context, eventType EventType, detail map[string]interface{}) {
	chain := FromContext(ctx)
	if chain == nil {
		return
	}
	chain.Append(eventType, detail)
}
