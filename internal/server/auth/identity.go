package auth

import "context"

// Identity is the authenticated requester. The zero value is anonymous.
type Identity struct {
	UserID  string
	IsStaff bool
}

// Anonymous reports whether no user is attached.
func (i Identity) Anonymous() bool {
	return i.UserID == ""
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.Anonymous() {
		return Identity{}, false
	}
	return id, true
}
