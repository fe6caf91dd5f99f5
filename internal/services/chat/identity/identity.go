// Package identity resolves connection credentials to stable user
// identities.
//
// The chat core never inspects credentials itself; it consumes a
// Provider and treats the returned Identity as an immutable value for
// the lifetime of a session.
package identity

import "context"

// Identity is the resolved subject of a connection or request.
type Identity struct {
	UserID   int64
	Username string
	Active   bool
}

// Anonymous is the explicit sentinel bound to connections whose
// credential could not be resolved. Downstream authorization checks
// reject it; it is never represented as a missing value.
var Anonymous = Identity{Username: "anonymous"}

// IsAnonymous reports whether this identity is the unresolved sentinel.
func (id Identity) IsAnonymous() bool {
	return id.UserID == 0
}

// Provider resolves credentials and user identifiers to identities.
type Provider interface {
	// ResolveToken authenticates an access token. The returned identity
	// carries the directory's active flag; an invalid or expired token
	// yields an UNAUTHORIZED error.
	ResolveToken(ctx context.Context, token string) (Identity, error)
	// ResolveUser looks up a user by identifier. A missing directory
	// entry yields an UNKNOWN_USER error.
	ResolveUser(ctx context.Context, userID int64) (Identity, error)
}
