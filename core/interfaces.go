package core

import (
	"context"
	"time"
)

// ============================================
// AUTH HANDLER (for HTTP adapters)
// ============================================

// AuthHandler provides the reconciliation operations for HTTP adapters
type AuthHandler interface {
	SignUp(ctx context.Context, req SignUpRequest) (*Result, error)
	SignIn(ctx context.Context, req SignInRequest) (*Result, error)
	FederatedSignIn(ctx context.Context, req FederatedSignInRequest) (*Result, error)

	// GetSession verifies a signed token and returns its outward view.
	GetSession(token string) (*SessionView, error)

	// RefreshSession re-signs a token with patched profile fields.
	RefreshSession(token string, patch ProfilePatch) (*Result, error)
}

// ============================================
// FEDERATED ASSERTIONS
// ============================================

// AssertionVerifier turns a provider credential (for example an ID token)
// into a trusted federated sign-in request.
type AssertionVerifier interface {
	VerifyAssertion(ctx context.Context, provider, credential string) (*FederatedSignInRequest, error)
}

// ============================================
// HTTP PORT
// ============================================

type HTTPAdapter interface {
	RegisterRoutes(handler AuthHandler, basePath string, ttl time.Duration) error
}
