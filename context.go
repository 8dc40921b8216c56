package deviceflags

import "context"

type scopeKey struct{}

// WithScope returns a copy of ctx carrying scope.
func WithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFrom returns the scope carried by ctx, or nil.
func ScopeFrom(ctx context.Context) *Scope {
	scope, _ := ctx.Value(scopeKey{}).(*Scope)
	return scope
}

// RequirePermission fails with ErrorPermissionDenied unless ctx carries a live
// scope holding perm. Stores that enforce permissions call it first.
func RequirePermission(ctx context.Context, perm Permission) error {
	scope := ScopeFrom(ctx)
	if scope == nil || !scope.Holds(perm) {
		return &PermissionError{Permission: perm}
	}
	return nil
}
