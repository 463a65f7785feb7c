package auth

import (
	"slices"
	"time"
)

// AuthMethod indicates how authentication was performed.
type AuthMethod string

const (
	AuthMethodNone      AuthMethod = "none"
	AuthMethodJWT       AuthMethod = "jwt"
	AuthMethodForwarded AuthMethod = "forwarded"
	AuthMethodLocal     AuthMethod = "local"
	AuthMethodAnonymous AuthMethod = "anonymous"
)

// Identity represents an authenticated principal.
type Identity struct {
	// Principal is the unique identifier (e.g., user ID, email).
	Principal string

	// TenantID is the tenant this identity belongs to.
	TenantID string

	// UserName is the login name, usually an email address.
	UserName string

	// DisplayName is the human-readable name.
	DisplayName string

	// GivenName and FamilyName are the name parts when known.
	GivenName  string
	FamilyName string

	// Emails lists addresses; the first is primary.
	Emails []string

	// Roles are the roles assigned to this identity.
	Roles []string

	// Method indicates how authentication was performed.
	Method AuthMethod

	// Token is the raw credential the identity was built from. It is
	// forwarded to the upstream API and never logged.
	Token string `json:"-"`

	// Claims contains the raw claims from the token.
	Claims map[string]any

	// ExpiresAt is when this identity expires.
	ExpiresAt time.Time

	// IssuedAt is when this identity was created.
	IssuedAt time.Time
}

// HasRole checks if the identity has a specific role.
func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// IsExpired reports whether the identity expired before now.
func (id *Identity) IsExpired(now time.Time) bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return now.After(id.ExpiresAt)
}

// IsAnonymous returns true if this is an anonymous identity.
func (id *Identity) IsAnonymous() bool {
	return id == nil || id.Method == AuthMethodAnonymous || id.Principal == ""
}

// CacheScope returns the segment that partitions per-user cache keys:
// "tenant/principal", or just the principal without a tenant.
func (id *Identity) CacheScope() string {
	if id.IsAnonymous() {
		return "anonymous"
	}
	if id.TenantID == "" {
		return id.Principal
	}
	return id.TenantID + "/" + id.Principal
}

// PrimaryEmail returns the first email, falling back to UserName.
func (id *Identity) PrimaryEmail() string {
	if len(id.Emails) > 0 {
		return id.Emails[0]
	}
	return id.UserName
}

// AnonymousIdentity creates a default anonymous identity.
func AnonymousIdentity() *Identity {
	return &Identity{
		Principal: "anonymous",
		Method:    AuthMethodAnonymous,
		Claims:    make(map[string]any),
	}
}

// LocalDevIdentity is the identity used when the server runs outside a
// hosted workspace and no credentials are configured.
func LocalDevIdentity() *Identity {
	return &Identity{
		Principal:   "local-dev-user",
		UserName:    "local@developer.com",
		DisplayName: "Local Developer",
		GivenName:   "Local",
		FamilyName:  "Developer",
		Emails:      []string{"local@developer.com"},
		Method:      AuthMethodLocal,
		Claims:      make(map[string]any),
	}
}
