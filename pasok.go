package pasok

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/lborres/pasok/core"
	"github.com/lborres/pasok/pkg/crypto"
	"github.com/lborres/pasok/services"
)

// interfaces
type (
	CredentialStore   = core.CredentialStore
	AuthHandler       = core.AuthHandler
	HTTPAdapter       = core.HTTPAdapter
	AssertionVerifier = core.AssertionVerifier

	PasswordHandler = crypto.PasswordHandler
)

// structs
type (
	Config        = core.Config
	SessionConfig = core.SessionConfig
)

type (
	Account        = core.Account
	LinkedIdentity = core.LinkedIdentity
	ProviderTokens = core.ProviderTokens
	ProfileHints   = core.ProfileHints
	ProfileFields  = core.ProfileFields
	ProfilePatch   = core.ProfilePatch
	SessionClaims  = core.SessionClaims
	SessionUser    = core.SessionUser
	SessionView    = core.SessionView
	Result         = core.Result
	AuthFailure    = core.AuthFailure
	Reason         = core.Reason
	State          = core.State
	Endpoint       = core.Endpoint
	ErrorResponse  = core.ErrorResponse
)

type (
	SignUpRequest          = core.SignUpRequest
	SignInRequest          = core.SignInRequest
	FederatedSignInRequest = core.FederatedSignInRequest
)

const (
	defaultBasePath  = "/api/auth"
	defaultSecretLen = 32
)

const ProviderCredential = core.ProviderCredential

const (
	ReasonAlreadyExists    = core.ReasonAlreadyExists
	ReasonNoAccount        = core.ReasonNoAccount
	ReasonNoPasswordSet    = core.ReasonNoPasswordSet
	ReasonWrongPassword    = core.ReasonWrongPassword
	ReasonLinkConflict     = core.ReasonLinkConflict
	ReasonStoreUnavailable = core.ReasonStoreUnavailable
)

// Constructors & helpers (convenience re-exports)
var (
	NewArgon2            = crypto.NewArgon2
	NewBcrypt            = crypto.NewBcrypt
	NewPasswordHandler   = crypto.NewPasswordHandler
	DefaultSessionConfig = core.DefaultSessionConfig
	NormalizeEmail       = core.NormalizeEmail
	AsFailure            = core.AsFailure
	Reject               = core.Reject
	Unavailable          = core.Unavailable
	NewEndpointRegistry  = services.NewEndpointRegistry
)

var (
	ErrAlreadyExists    = core.ErrAlreadyExists
	ErrNoAccount        = core.ErrNoAccount
	ErrNoPasswordSet    = core.ErrNoPasswordSet
	ErrWrongPassword    = core.ErrWrongPassword
	ErrLinkConflict     = core.ErrLinkConflict
	ErrStoreUnavailable = core.ErrStoreUnavailable
)

var (
	ErrAccountNotFound       = core.ErrAccountNotFound
	ErrEmailTaken            = core.ErrEmailTaken
	ErrIdentityTaken         = core.ErrIdentityTaken
	ErrProviderAlreadyLinked = core.ErrProviderAlreadyLinked
	ErrPasswordAlreadySet    = core.ErrPasswordAlreadySet
)

var (
	ErrMissingAuthHeader = core.ErrMissingAuthHeader
	ErrInvalidToken      = core.ErrInvalidToken
	ErrSessionExpired    = core.ErrSessionExpired
)

var (
	ErrUnsupportedProvider = core.ErrUnsupportedProvider
	ErrInvalidAssertion    = core.ErrInvalidAssertion
	ErrEmailNotVerified    = core.ErrEmailNotVerified
)

var (
	ErrInvalidRequest   = core.ErrInvalidRequest
	ErrEmailRequired    = core.ErrEmailRequired
	ErrInvalidEmail     = core.ErrInvalidEmail
	ErrPasswordRequired = core.ErrPasswordRequired
	ErrPasswordTooShort = core.ErrPasswordTooShort
	ErrPasswordTooLong  = core.ErrPasswordTooLong
	ErrProviderRequired = core.ErrProviderRequired
	ErrSubjectRequired  = core.ErrSubjectRequired
)

var (
	ErrStoreRequired  = core.ErrStoreRequired
	ErrSecretRequired = core.ErrSecretRequired
	ErrSecretTooShort = core.ErrSecretTooShort
)

// Pasok reconciles sign-ups and sign-ins against one CredentialStore and
// issues stateless session tokens.
type Pasok struct {
	*services.Orchestrator

	SessionConfig SessionConfig
	BasePath      string
}

var _ AuthHandler = (*Pasok)(nil)

func New(config Config) (*Pasok, error) {
	if config.Secret == "" {
		return nil, ErrSecretRequired
	}
	if len(config.Secret) < defaultSecretLen {
		return nil, fmt.Errorf("%w - minimum of %d characters", ErrSecretTooShort, defaultSecretLen)
	}
	if config.Store == nil {
		return nil, ErrStoreRequired
	}

	// Set Defaults

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sessionConfig := DefaultSessionConfig()
	if config.SessionConfig != nil {
		if config.SessionConfig.MaxAge > 0 {
			sessionConfig.MaxAge = config.SessionConfig.MaxAge
		}
		if config.SessionConfig.Issuer != "" {
			sessionConfig.Issuer = config.SessionConfig.Issuer
		}
	}

	passwordHasher := config.PasswordHasher
	if passwordHasher == nil {
		passwordHasher = NewArgon2()
	}

	basePath := config.BasePath
	if basePath == "" {
		basePath = defaultBasePath
	}

	issuer := services.NewSessionIssuer(sessionConfig, config.Secret)

	p := &Pasok{
		Orchestrator:  services.NewOrchestrator(config.Store, passwordHasher, issuer, logger),
		SessionConfig: sessionConfig,
		BasePath:      basePath,
	}

	if config.HTTP != nil {
		if err := config.HTTP.RegisterRoutes(p, basePath, sessionConfig.MaxAge); err != nil {
			return nil, err
		}
	}

	logger.Info("pasok initialized",
		zap.String("base_path", basePath),
		zap.Duration("session_max_age", sessionConfig.MaxAge),
	)

	return p, nil
}
