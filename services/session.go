package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lborres/pasok/core"
)

const tokenLeeway = 5 * time.Second

// SessionIssuer mints, refreshes and verifies stateless session claims.
// Nothing is persisted; a token is valid until it expires.
type SessionIssuer struct {
	config core.SessionConfig
	secret []byte
	now    func() time.Time
}

func NewSessionIssuer(config core.SessionConfig, secret string) *SessionIssuer {
	return &SessionIssuer{config: config, secret: []byte(secret), now: time.Now}
}

// sessionJWT is the wire form of core.SessionClaims.
type sessionJWT struct {
	jwt.RegisteredClaims
	Email    string  `json:"email"`
	Name     *string `json:"name,omitempty"`
	Picture  *string `json:"picture,omitempty"`
	Provider string  `json:"idp"`
	AuthTime int64   `json:"auth_time"`
}

// Issue mints fresh claims for account, authenticated via provider.
func (si *SessionIssuer) Issue(account *core.Account, provider string) core.SessionClaims {
	now := si.now().UTC().Truncate(time.Second)
	return core.SessionClaims{
		AccountID:   account.ID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		AvatarURL:   account.AvatarURL,
		SessionID:   uuid.NewString(),
		Provider:    provider,
		AuthTime:    now,
		IssuedAt:    now,
		ExpiresAt:   now.Add(si.config.MaxAge),
	}
}

// Refresh applies patch to existing claims and extends their lifetime. The
// account is not re-read. An empty string in patch clears the field.
func (si *SessionIssuer) Refresh(existing core.SessionClaims, patch core.ProfilePatch) core.SessionClaims {
	out := existing
	if patch.DisplayName != nil {
		out.DisplayName = clearable(*patch.DisplayName)
	}
	if patch.AvatarURL != nil {
		out.AvatarURL = clearable(*patch.AvatarURL)
	}

	now := si.now().UTC().Truncate(time.Second)
	out.IssuedAt = now
	out.ExpiresAt = now.Add(si.config.MaxAge)
	return out
}

func clearable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// Project strips internal fields from claims for the client.
func Project(claims core.SessionClaims) core.SessionView {
	return core.SessionView{
		User: core.SessionUser{
			ID:    claims.AccountID,
			Email: claims.Email,
			Name:  claims.DisplayName,
			Image: claims.AvatarURL,
		},
		Expires: claims.ExpiresAt,
	}
}

// Sign encodes claims as an HS256 token.
func (si *SessionIssuer) Sign(claims core.SessionClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionJWT{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    si.config.Issuer,
			Subject:   claims.AccountID,
			Audience:  jwt.ClaimStrings{si.config.Issuer},
			ID:        claims.SessionID,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
		Email:    claims.Email,
		Name:     claims.DisplayName,
		Picture:  claims.AvatarURL,
		Provider: claims.Provider,
		AuthTime: claims.AuthTime.Unix(),
	})

	signed, err := token.SignedString(si.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify decodes a token produced by Sign.
func (si *SessionIssuer) Verify(tokenString string) (core.SessionClaims, error) {
	if tokenString == "" {
		return core.SessionClaims{}, core.ErrInvalidToken
	}

	parsed := &sessionJWT{}
	_, err := jwt.ParseWithClaims(tokenString, parsed,
		func(*jwt.Token) (any, error) { return si.secret, nil },
		jwt.WithIssuer(si.config.Issuer),
		jwt.WithAudience(si.config.Issuer),
		jwt.WithLeeway(tokenLeeway),
		jwt.WithTimeFunc(si.now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return core.SessionClaims{}, core.ErrSessionExpired
	case err != nil:
		return core.SessionClaims{}, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}
	if parsed.Subject == "" || parsed.ID == "" {
		return core.SessionClaims{}, core.ErrInvalidToken
	}

	return core.SessionClaims{
		AccountID:   parsed.Subject,
		Email:       parsed.Email,
		DisplayName: parsed.Name,
		AvatarURL:   parsed.Picture,
		SessionID:   parsed.ID,
		Provider:    parsed.Provider,
		AuthTime:    time.Unix(parsed.AuthTime, 0).UTC(),
		IssuedAt:    parsed.IssuedAt.Time.UTC(),
		ExpiresAt:   parsed.ExpiresAt.Time.UTC(),
	}, nil
}
