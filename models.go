package auth

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleGuest is an guest role (ie. view)
	RoleGuest UserRole = "guest"
	// RoleMember us a member (i.e. view, edit)
	RoleMember UserRole = "member"
	// RoleAdmin is an admin role (i.e. view, edit, create)
	RoleAdmin UserRole = "admin"
	// RoleOwner is an admin role (i.e. view, edit, create, delete)
	RoleOwner UserRole = "owner"
)

// User is the local user record. Records imported from a federation source
// carry that source in Origin; locally registered users leave it empty.
type User struct {
	bun.BaseModel       `bun:"table:users,alias:usr"`
	ID                  uuid.UUID           `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role                UserRole            `bun:"user_role,notnull" json:"user_role,omitempty"`
	Username            string              `bun:"username,notnull,unique" json:"username,omitempty"`
	Email               string              `bun:"email" json:"email,omitempty"`
	EmailVerified       bool                `bun:"is_email_verified,notnull" json:"is_email_verified"`
	FirstName           string              `bun:"first_name" json:"first_name,omitempty"`
	LastName            string              `bun:"last_name" json:"last_name,omitempty"`
	Enabled             bool                `bun:"enabled,notnull" json:"enabled"`
	Origin              string              `bun:"origin" json:"origin,omitempty"`
	FederationLink      *string             `bun:"federation_link,nullzero" json:"federation_link,omitempty"`
	Attributes          map[string][]string `bun:"attributes" json:"attributes,omitempty"`
	PasswordHash        string              `bun:"password_hash" json:"-"`
	CredentialUpdatedAt *time.Time          `bun:"credential_updated_at,nullzero" json:"credential_updated_at,omitempty"`
	LoggedInAt          *time.Time          `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt           *time.Time          `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time          `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// SetAttribute replaces the values stored under key.
func (u *User) SetAttribute(key string, values []string) *User {
	if u.Attributes == nil {
		u.Attributes = make(map[string][]string)
	}
	u.Attributes[key] = slices.Clone(values)
	return u
}

// RemoveAttribute drops key, it is a no-op when absent.
func (u *User) RemoveAttribute(key string) *User {
	delete(u.Attributes, key)
	return u
}

// Attribute returns a copy of the values stored under key.
func (u *User) Attribute(key string) ([]string, bool) {
	values, ok := u.Attributes[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(values), true
}

// IsLocalTo reports whether the record may be reconciled in place by
// source: it was registered locally or imported by source itself.
func (u *User) IsLocalTo(source string) bool {
	if u == nil {
		return false
	}
	return u.Origin == "" || u.Origin == source
}

// ClaimFor stamps the record as owned by source, created at now.
func (u *User) ClaimFor(source string, now time.Time) *User {
	u.Origin = source
	u.FederationLink = nil
	u.CreatedAt = &now
	return u
}
