package domain

import "context"

type principalKey struct{}

// ContextPrincipal carries the authenticated identity through request
// context. The pipeline itself never reads credentials from globals; the
// session handle is scoped to one request.
type ContextPrincipal struct {
	Name        string
	PortalToken string // opaque token authorizing remote content operations
}

// WithPrincipal stores a ContextPrincipal in the context.
func WithPrincipal(ctx context.Context, p ContextPrincipal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext extracts the ContextPrincipal from the context.
func PrincipalFromContext(ctx context.Context) (ContextPrincipal, bool) {
	p, ok := ctx.Value(principalKey{}).(ContextPrincipal)
	return p, ok
}
