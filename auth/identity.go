package auth

import (
	"slices"
	"time"
)

// AuthMethod indicates how authentication was performed.
type AuthMethod string

const (
	AuthMethodJWT    AuthMethod = "jwt"
	AuthMethodAPIKey AuthMethod = "api_key"
)

// Identity is an authenticated caller.
type Identity struct {
	// Principal is the unique identifier (token subject or key owner).
	Principal string

	// Roles are the roles assigned to this identity.
	Roles []string

	// Method indicates how authentication was performed.
	Method AuthMethod

	// Claims contains the raw token claims, or key metadata.
	Claims map[string]any

	// ExpiresAt is when this identity expires (zero = never).
	ExpiresAt time.Time
}

// HasRole reports whether the identity carries role.
func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// IsExpired reports whether the identity has expired.
func (id *Identity) IsExpired() bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(id.ExpiresAt)
}
