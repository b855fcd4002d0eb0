package legacy

import (
	"github.com/goliatone/go-auth-legacy"
)

// ProfileIdentity is a read-only auth.Identity view over a remote profile.
type ProfileIdentity struct {
	profile    RemoteProfile
	providerID string
}

// NewProfileIdentity wraps profile, providerID is used to build its storage id.
func NewProfileIdentity(profile RemoteProfile, providerID string) *ProfileIdentity {
	return &ProfileIdentity{profile: profile, providerID: providerID}
}

// ID returns the opaque storage id.
func (p *ProfileIdentity) ID() string {
	return EncodeStorageID(p.providerID, p.profile.Username())
}

func (p *ProfileIdentity) Username() string { return p.profile.Username() }
func (p *ProfileIdentity) Email() string    { return p.profile.Email() }

// Role returns the first remote role, the full list is in Roles.
func (p *ProfileIdentity) Role() string {
	roles := p.profile.Roles()
	if len(roles) == 0 {
		return ""
	}
	return roles[0]
}

func (p *ProfileIdentity) Roles() []string { return p.profile.Roles() }

// EmailVerified the facade is trusted as the verification authority.
func (p *ProfileIdentity) EmailVerified() bool { return p.profile.HasEmail() }

func (p *ProfileIdentity) FirstName() string {
	first, _, _ := SplitDisplayName(p.profile.DisplayName())
	return first
}

func (p *ProfileIdentity) LastName() string {
	_, last, _ := SplitDisplayName(p.profile.DisplayName())
	return last
}

// Origin names the federation provider that produced the identity.
func (p *ProfileIdentity) Origin() string { return p.providerID }

// Profile returns the wrapped profile.
func (p *ProfileIdentity) Profile() RemoteProfile { return p.profile }

var _ auth.Identity = (*ProfileIdentity)(nil)
