package identity

import "context"

// Principal is the resolved identity of a caller.
// The zero value is the anonymous principal.
type Principal struct {
	ID string
}

// Anonymous is the sentinel for callers without a verified credential.
var Anonymous = Principal{}

// IsAnonymous reports whether no verified identity backs the principal.
func (p Principal) IsAnonymous() bool {
	return p.ID == ""
}

type principalKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal on ctx, or Anonymous.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p
	}
	return Anonymous
}
