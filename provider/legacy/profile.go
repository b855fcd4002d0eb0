package legacy

import (
	"encoding/json"
	"slices"
	"strings"
)

// RemoteProfile is a user as known by the legacy facade. It is immutable
// once built, the roles slice is copied on the way in and on the way out.
type RemoteProfile struct {
	username    string
	displayName string
	email       string
	roles       []string
}

// NewRemoteProfile builds a profile, nil roles become an empty slice.
func NewRemoteProfile(username, displayName, email string, roles []string) RemoteProfile {
	copied := make([]string, 0, len(roles))
	copied = append(copied, roles...)
	return RemoteProfile{
		username:    username,
		displayName: displayName,
		email:       email,
		roles:       copied,
	}
}

func (p RemoteProfile) Username() string    { return p.username }
func (p RemoteProfile) DisplayName() string { return p.displayName }
func (p RemoteProfile) Email() string       { return p.email }

// Roles returns a copy of the role names, never nil.
func (p RemoteProfile) Roles() []string {
	if p.roles == nil {
		return []string{}
	}
	return slices.Clone(p.roles)
}

// HasEmail reports whether the profile carries a non blank email.
func (p RemoteProfile) HasEmail() bool {
	return strings.TrimSpace(p.email) != ""
}

// IsZero reports whether the profile was never populated.
func (p RemoteProfile) IsZero() bool {
	return p.username == ""
}

// profilePayload is the facade's JSON representation.
type profilePayload struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"displayName,omitempty"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

func (p profilePayload) toProfile() RemoteProfile {
	return NewRemoteProfile(p.Username, p.DisplayName, p.Email, p.Roles)
}

// MarshalJSON encodes the profile in the facade's wire shape.
func (p RemoteProfile) MarshalJSON() ([]byte, error) {
	return json.Marshal(profilePayload{
		Username:    p.username,
		DisplayName: p.displayName,
		Email:       p.email,
		Roles:       p.Roles(),
	})
}

// UnmarshalJSON decodes the facade's wire shape, unknown fields are ignored.
func (p *RemoteProfile) UnmarshalJSON(data []byte) error {
	var payload profilePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	*p = payload.toProfile()
	return nil
}
