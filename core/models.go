package core

import (
	"sort"
	"time"
)

// ProviderCredential is the provider name used in session claims when an
// account authenticated with its password.
const ProviderCredential = "credential"

// Account is the canonical identity record
//
// One per normalized email; every proof of identity resolves to it.
type Account struct {
	ID              string           `json:"id"`
	Email           string           `json:"email"`
	PasswordHash    *string          `json:"-"` // Never expose in JSON
	DisplayName     *string          `json:"displayName,omitempty"`
	AvatarURL       *string          `json:"avatarUrl,omitempty"`
	EmailVerifiedAt *time.Time       `json:"emailVerifiedAt,omitempty"`
	Identities      []LinkedIdentity `json:"-"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// HasPassword reports whether a password has been provisioned.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// IdentityFor returns the linked identity for provider, or nil.
func (a *Account) IdentityFor(provider string) *LinkedIdentity {
	for i := range a.Identities {
		if a.Identities[i].Provider == provider {
			return &a.Identities[i]
		}
	}
	return nil
}

// Providers lists the linked provider names in a stable order.
func (a *Account) Providers() []string {
	out := make([]string, 0, len(a.Identities))
	for _, li := range a.Identities {
		out = append(out, li.Provider)
	}
	sort.Strings(out)
	return out
}

// LinkedIdentity attaches a federated identity to an Account
//
// (Provider, ProviderSubjectID) is unique across all accounts and an account
// holds at most one identity per provider.
type LinkedIdentity struct {
	ID                string `json:"id"`
	AccountID         string `json:"accountId"`
	Provider          string `json:"provider"` // "google", "github"
	ProviderSubjectID string `json:"providerSubjectId"`
	ProviderTokens
	CreatedAt time.Time `json:"createdAt"`
}

// ProviderTokens are stored for later provider API calls only.
type ProviderTokens struct {
	AccessToken  *string    `json:"-"` // Never expose in JSON
	RefreshToken *string    `json:"-"` // Never expose in JSON
	IDToken      *string    `json:"-"` // Never expose in JSON
	Scope        string     `json:"scope,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// ProfileHints carries optional profile fields supplied by an identity source.
type ProfileHints struct {
	DisplayName *string `json:"displayName,omitempty" validate:"omitempty,max=100"`
	AvatarURL   *string `json:"avatarUrl,omitempty" validate:"omitempty,url,max=2048"`
}

// ProfileFields are applied by the store only where the account's value is unset.
type ProfileFields struct {
	DisplayName     *string
	AvatarURL       *string
	EmailVerifiedAt *time.Time
}

// Empty reports whether there is nothing to backfill.
func (p ProfileFields) Empty() bool {
	return p.DisplayName == nil && p.AvatarURL == nil && p.EmailVerifiedAt == nil
}

// MissingFrom drops the fields that are already set on a.
func (p ProfileFields) MissingFrom(a *Account) ProfileFields {
	out := ProfileFields{}
	if a.DisplayName == nil && p.DisplayName != nil {
		out.DisplayName = p.DisplayName
	}
	if a.AvatarURL == nil && p.AvatarURL != nil {
		out.AvatarURL = p.AvatarURL
	}
	if a.EmailVerifiedAt == nil && p.EmailVerifiedAt != nil {
		out.EmailVerifiedAt = p.EmailVerifiedAt
	}
	return out
}

// SessionClaims is the signed, stateless proof that a request is
// authenticated as an account. Never persisted.
type SessionClaims struct {
	AccountID   string
	Email       string
	DisplayName *string
	AvatarURL   *string

	// internal, stripped by projection
	SessionID string
	Provider  string
	AuthTime  time.Time
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ProfilePatch is a client initiated profile update applied to live claims.
type ProfilePatch struct {
	DisplayName *string `json:"displayName,omitempty" validate:"omitempty,max=100"`
	AvatarURL   *string `json:"avatarUrl,omitempty" validate:"omitempty,url,max=2048"`
}

// SessionUser is the account part of the outward session view.
type SessionUser struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name,omitempty"`
	Image *string `json:"image,omitempty"`
}

// SessionView is the model returned to clients
type SessionView struct {
	User    SessionUser `json:"user"`
	Expires time.Time   `json:"expires"`
}
