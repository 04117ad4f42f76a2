package core

import (
	"errors"
	"fmt"
	"strings"
)

// Reconciliation outcomes. Each one is a terminal rejection.
var (
	ErrAlreadyExists    = errors.New("account already exists, sign in instead")   // 409 Conflict
	ErrNoAccount        = errors.New("no account found for this email")           // 401 Unauthorized
	ErrNoPasswordSet    = errors.New("account has no password set")               // 401 Unauthorized
	ErrWrongPassword    = errors.New("invalid email or password")                 // 401 Unauthorized
	ErrLinkConflict     = errors.New("identity is linked to a different account") // 409 Conflict
	ErrStoreUnavailable = errors.New("credential store unavailable")              // 503 Service Unavailable
)

// Credential store errors. Adapters translate driver errors into these.
var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrEmailTaken            = errors.New("email already belongs to an account")
	ErrIdentityTaken         = errors.New("provider identity already linked")
	ErrProviderAlreadyLinked = errors.New("account already linked to provider")
	ErrPasswordAlreadySet    = errors.New("password already set")
)

// Session errors
var (
	ErrMissingAuthHeader = errors.New("missing authorization header") // 401
	ErrInvalidToken      = errors.New("invalid session token")        // 401
	ErrSessionExpired    = errors.New("session expired")              // 401
)

// Federated assertion errors
var (
	ErrUnsupportedProvider = errors.New("unsupported identity provider")  // 400
	ErrInvalidAssertion    = errors.New("invalid identity assertion")     // 401
	ErrEmailNotVerified    = errors.New("provider email is not verified") // 401
)

// Validation errors (client input)
var (
	ErrInvalidRequest   = errors.New("invalid request")                 // 400
	ErrEmailRequired    = errors.New("email is required")               // 400
	ErrInvalidEmail     = errors.New("invalid email format")            // 400
	ErrPasswordRequired = errors.New("password is required")            // 400
	ErrPasswordTooShort = errors.New("password is too short")           // 400
	ErrPasswordTooLong  = errors.New("password is too long")            // 400
	ErrProviderRequired = errors.New("provider is required")            // 400
	ErrSubjectRequired  = errors.New("provider subject id is required") // 400
)

// Config errors (server-side configuration)
var (
	ErrStoreRequired  = errors.New("credential store is required") // 500
	ErrSecretRequired = errors.New("secret is required")           // 500
	ErrSecretTooShort = errors.New("secret too short")             // 500
)

// Reason enumerates why a request was rejected.
type Reason string

const (
	ReasonAlreadyExists    Reason = "already_exists"
	ReasonNoAccount        Reason = "no_account"
	ReasonNoPasswordSet    Reason = "no_password_set"
	ReasonWrongPassword    Reason = "wrong_password"
	ReasonLinkConflict     Reason = "link_conflict"
	ReasonStoreUnavailable Reason = "store_unavailable"
)

var reasonErrors = map[Reason]error{
	ReasonAlreadyExists:    ErrAlreadyExists,
	ReasonNoAccount:        ErrNoAccount,
	ReasonNoPasswordSet:    ErrNoPasswordSet,
	ReasonWrongPassword:    ErrWrongPassword,
	ReasonLinkConflict:     ErrLinkConflict,
	ReasonStoreUnavailable: ErrStoreUnavailable,
}

// AuthFailure is the typed rejection returned by every reconciliation flow.
//
// errors.Is(err, ErrNoAccount) and friends match on Reason.
type AuthFailure struct {
	Reason Reason

	// Providers linked to the account, set for ReasonNoPasswordSet.
	Providers []string

	// States visited before the rejection.
	Path []State

	// Underlying cause, only set for ReasonStoreUnavailable.
	Err error
}

// Reject builds an AuthFailure for reason.
func Reject(reason Reason) *AuthFailure {
	return &AuthFailure{Reason: reason}
}

// Unavailable wraps a persistence fault. Always fails closed.
func Unavailable(err error) *AuthFailure {
	return &AuthFailure{Reason: ReasonStoreUnavailable, Err: err}
}

func (f *AuthFailure) Error() string {
	switch f.Reason {
	case ReasonNoPasswordSet:
		if len(f.Providers) == 0 {
			return "account has no password set, sign in with a linked provider"
		}
		return fmt.Sprintf("account has no password set, sign in with %s", strings.Join(f.Providers, " or "))
	case ReasonStoreUnavailable:
		if f.Err != nil {
			return fmt.Sprintf("%s: %v", ErrStoreUnavailable, f.Err)
		}
	}
	if err, ok := reasonErrors[f.Reason]; ok {
		return err.Error()
	}
	return string(f.Reason)
}

func (f *AuthFailure) Is(target error) bool {
	return reasonErrors[f.Reason] == target
}

func (f *AuthFailure) Unwrap() error {
	return f.Err
}

// AsFailure extracts an AuthFailure from err.
func AsFailure(err error) (*AuthFailure, bool) {
	var f *AuthFailure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
