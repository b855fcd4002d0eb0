package auth

import (
	"context"
)

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
	IdentityFromToken(ctx context.Context, token string) (Identity, error)
}

// Identity holds the attributes of an identity
type Identity interface {
	ID() string
	Username() string
	Email() string
	Role() string
}

// Config holds token options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// LookupKind selects the attribute used to look up a federated user.
type LookupKind string

const (
	LookupByUsername LookupKind = "username"
	LookupByID       LookupKind = "id"
	LookupByEmail    LookupKind = "email"
)

// UserLookup resolves users by username, opaque id or email.
// A missing user is reported with found == false and a nil error.
type UserLookup interface {
	LookupUser(ctx context.Context, identifier string, kind LookupKind) (identity Identity, found bool, err error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}
