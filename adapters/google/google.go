// Package google verifies Google ID tokens for federated sign-in.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/api/googleapi"
	oauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/lborres/pasok"
)

// Provider is the name linked identities are stored under.
const Provider = "google"

type Verifier struct {
	clientID string
	service  *oauth2.Service
}

var _ pasok.AssertionVerifier = (*Verifier)(nil)

// New returns a Verifier that accepts ID tokens issued to clientID. Extra
// options are passed to the oauth2 service, for example option.WithEndpoint
// in tests.
func New(ctx context.Context, clientID string, opts ...option.ClientOption) (*Verifier, error) {
	if clientID == "" {
		return nil, errors.New("google: client id is required")
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(&http.Client{})}, opts...)
	service, err := oauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: create oauth2 service: %w", err)
	}

	return &Verifier{clientID: clientID, service: service}, nil
}

// VerifyAssertion checks the ID token with Google's tokeninfo endpoint and
// turns it into a federated sign-in request.
func (v *Verifier) VerifyAssertion(ctx context.Context, provider, credential string) (*pasok.FederatedSignInRequest, error) {
	if !strings.EqualFold(strings.TrimSpace(provider), Provider) {
		return nil, pasok.ErrUnsupportedProvider
	}
	if credential == "" {
		return nil, pasok.ErrInvalidAssertion
	}

	info, err := v.service.Tokeninfo().IdToken(credential).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 {
			return nil, fmt.Errorf("%w: %v", pasok.ErrInvalidAssertion, err)
		}
		return nil, fmt.Errorf("google: tokeninfo: %w", err)
	}

	if info.Audience != v.clientID {
		return nil, fmt.Errorf("%w: audience mismatch", pasok.ErrInvalidAssertion)
	}
	if info.UserId == "" || info.Email == "" {
		return nil, fmt.Errorf("%w: missing subject or email", pasok.ErrInvalidAssertion)
	}
	if !info.VerifiedEmail {
		return nil, pasok.ErrEmailNotVerified
	}

	return &pasok.FederatedSignInRequest{
		Provider:          Provider,
		ProviderSubjectID: info.UserId,
		Email:             info.Email,
		Profile:           profileHints(credential),
		Tokens:            pasok.ProviderTokens{IDToken: &credential, Scope: info.Scope},
	}, nil
}

// idTokenClaims are the profile claims Google puts in an ID token.
type idTokenClaims struct {
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// profileHints reads name and picture from an ID token tokeninfo has already
// accepted. Tokeninfo itself does not return them.
func profileHints(credential string) pasok.ProfileHints {
	var claims idTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(credential, &claims); err != nil {
		return pasok.ProfileHints{}
	}

	var hints pasok.ProfileHints
	if claims.Name != "" {
		hints.DisplayName = &claims.Name
	}
	if claims.Picture != "" {
		hints.AvatarURL = &claims.Picture
	}
	return hints
}
