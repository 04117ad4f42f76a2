package core

import "strings"

// NormalizeEmail lowercases and trims an email so that it can be used as the
// reconciliation key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUpRequest registers (or provisions) a password for an email
type SignUpRequest struct {
	Email       string  `json:"email" validate:"required,email,max=254"`
	Password    string  `json:"password" validate:"required,min=8,max=72"`
	DisplayName *string `json:"displayName,omitempty" validate:"omitempty,max=100"`
}

// SignInRequest contains the credentials for password authentication
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// FederatedSignInRequest is an identity assertion from an external provider.
// The assertion is trusted; verifying it is the caller's job.
type FederatedSignInRequest struct {
	Provider          string         `json:"provider" validate:"required,max=64"`
	ProviderSubjectID string         `json:"providerSubjectId" validate:"required,max=255"`
	Email             string         `json:"email" validate:"required,email,max=254"`
	Profile           ProfileHints   `json:"profile"`
	Tokens            ProviderTokens `json:"-"`
}

// Result is returned when a flow reaches ClaimsIssued.
type Result struct {
	Account *Account      `json:"-"`
	Claims  SessionClaims `json:"-"`
	Token   string        `json:"token"`
	Session SessionView   `json:"session"`
	Path    []State       `json:"-"`
}
