package core

import "context"

// CredentialStore is the durable account table this engine reconciles against.
//
// Uniqueness of accounts.email, (provider, provider_subject_id) and
// (account_id, provider) must be enforced by the store itself, not by
// check-then-insert in callers.
type CredentialStore interface {
	// FindByEmail returns the account, with its linked identities, for an
	// already normalized email. ErrAccountNotFound when absent.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByIdentity returns the account owning (provider, subject).
	// ErrAccountNotFound when absent.
	FindByIdentity(ctx context.Context, provider, subject string) (*Account, error)

	// CreateAccount inserts a and, when first is non-nil, its first linked
	// identity in one transaction. A non-nil a.PasswordHash is written in the
	// same transaction. Returns ErrEmailTaken or ErrIdentityTaken on
	// uniqueness violations; nothing is committed in that case.
	CreateAccount(ctx context.Context, a *Account, first *LinkedIdentity) error

	// SetPassword stores hash only if the account has no password yet.
	// ErrPasswordAlreadySet otherwise, ErrAccountNotFound if missing.
	SetPassword(ctx context.Context, accountID, hash string) error

	// CreateLinkedIdentity attaches li to its account. Returns ErrIdentityTaken
	// or ErrProviderAlreadyLinked on uniqueness violations.
	CreateLinkedIdentity(ctx context.Context, li *LinkedIdentity) error

	// UpdateProfileFieldsIfUnset writes each non-nil field only where the
	// stored value is null and returns the resulting account.
	UpdateProfileFieldsIfUnset(ctx context.Context, accountID string, fields ProfileFields) (*Account, error)
}
