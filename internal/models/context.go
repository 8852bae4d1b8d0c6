package models

import "context"

type principalContextKey struct{}

// WithPrincipal attaches the authenticated operator identity to a context so
// services can stamp audit entries without threading it through every call.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFrom returns the operator identity carried by ctx, or SYSTEM if absent.
func PrincipalFrom(ctx context.Context) string {
	if p, ok := ctx.Value(principalContextKey{}).(string); ok && p != "" {
		return p
	}
	return PerformedBySystem
}
