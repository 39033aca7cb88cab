package shared

import "context"

// Identity is the resolved caller: the tenant (business) and the acting user.
type Identity struct {
	BusinessID int64
	UserID     int64
	Scopes     []string
}

// HasScope reports whether the identity carries scope.
func (i Identity) HasScope(scope string) bool {
	for _, s := range i.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || id.BusinessID == 0 {
		return Identity{}, false
	}
	return id, true
}
