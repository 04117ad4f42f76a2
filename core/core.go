package core

import (
	"time"

	"go.uber.org/zap"

	"github.com/lborres/pasok/pkg/crypto"
)

type Config struct {
	Secret string

	Store CredentialStore

	// Optional config
	HTTP           HTTPAdapter
	Logger         *zap.Logger
	SessionConfig  *SessionConfig
	PasswordHasher crypto.PasswordHandler
	BasePath       string
}

type SessionConfig struct {
	MaxAge time.Duration

	// Issuer and audience of signed session tokens.
	Issuer string
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxAge: 24 * time.Hour,
		Issuer: "pasok",
	}
}
