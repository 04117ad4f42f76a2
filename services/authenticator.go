package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lborres/pasok/core"
	"github.com/lborres/pasok/pkg/crypto"
)

// Authenticator registers and verifies password credentials.
type Authenticator struct {
	store    core.CredentialStore
	resolver *Resolver
	hasher   crypto.PasswordHandler
	now      func() time.Time
}

func NewAuthenticator(store core.CredentialStore, resolver *Resolver, hasher crypto.PasswordHandler) *Authenticator {
	return &Authenticator{store: store, resolver: resolver, hasher: hasher, now: time.Now}
}

// Register creates a password account, or provisions a password onto an
// existing federated-only account. Rejects with ReasonAlreadyExists when the
// account already has a password.
func (a *Authenticator) Register(ctx context.Context, req core.SignUpRequest) (*core.Account, error) {
	return a.register(ctx, req, nil)
}

func (a *Authenticator) register(ctx context.Context, req core.SignUpRequest, step stepFunc) (*core.Account, error) {
	step.enter(core.StateResolvingEmail)
	account, found, err := a.resolver.Resolve(ctx, req.Email)
	if err != nil {
		return nil, core.Unavailable(err)
	}

	if found {
		step.enter(core.StateLinking)
		return a.provision(ctx, account, req)
	}

	step.enter(core.StateCreating)
	account, err = a.create(ctx, req)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, core.ErrEmailTaken) {
		return nil, err
	}

	// A concurrent sign-up or federated sign-in created the account first.
	if account, err = a.resolver.mustResolve(ctx, req.Email); err != nil {
		return nil, err
	}
	step.enter(core.StateLinking)
	return a.provision(ctx, account, req)
}

// create inserts the account with its password hash in one statement. There
// is no separate verification step, so password sign-up verifies the email.
func (a *Authenticator) create(ctx context.Context, req core.SignUpRequest) (*core.Account, error) {
	hash, err := a.hasher.Hash(req.Password)
	if err != nil {
		return nil, hashFailure(err)
	}
	id, err := crypto.NewAccountID()
	if err != nil {
		return nil, core.Unavailable(fmt.Errorf("generate account id: %w", err))
	}

	now := a.now()
	account := &core.Account{
		ID:              id,
		Email:           req.Email,
		PasswordHash:    &hash,
		DisplayName:     req.DisplayName,
		EmailVerifiedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = a.store.CreateAccount(ctx, account, nil)
	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, core.ErrEmailTaken):
		return nil, core.ErrEmailTaken
	default:
		return nil, core.Unavailable(err)
	}
}

// provision sets a password on an account that has none. Linked identities
// are left intact so the account can authenticate either way.
func (a *Authenticator) provision(ctx context.Context, account *core.Account, req core.SignUpRequest) (*core.Account, error) {
	if account.HasPassword() {
		return nil, core.Reject(core.ReasonAlreadyExists)
	}

	hash, err := a.hasher.Hash(req.Password)
	if err != nil {
		return nil, hashFailure(err)
	}

	err = a.store.SetPassword(ctx, account.ID, hash)
	switch {
	case errors.Is(err, core.ErrPasswordAlreadySet):
		return nil, core.Reject(core.ReasonAlreadyExists)
	case err != nil:
		return nil, core.Unavailable(err)
	}
	account.PasswordHash = &hash

	now := a.now()
	return backfill(ctx, a.store, account, core.ProfileFields{
		DisplayName:     req.DisplayName,
		EmailVerifiedAt: &now,
	})
}

// Authenticate verifies a password against the resolved account.
func (a *Authenticator) Authenticate(ctx context.Context, req core.SignInRequest) (*core.Account, error) {
	return a.authenticate(ctx, req, nil)
}

func (a *Authenticator) authenticate(ctx context.Context, req core.SignInRequest, step stepFunc) (*core.Account, error) {
	step.enter(core.StateResolvingEmail)
	account, found, err := a.resolver.Resolve(ctx, req.Email)
	if err != nil {
		return nil, core.Unavailable(err)
	}
	if !found {
		return nil, core.Reject(core.ReasonNoAccount)
	}

	step.enter(core.StateAuthenticating)
	if !account.HasPassword() {
		// Also covers an account with no credential at all, which gets an
		// empty provider list.
		failure := core.Reject(core.ReasonNoPasswordSet)
		failure.Providers = account.Providers()
		return nil, failure
	}

	ok, err := a.hasher.Verify(req.Password, *account.PasswordHash)
	if err != nil {
		return nil, core.Unavailable(fmt.Errorf("verify password hash: %w", err))
	}
	if !ok {
		return nil, core.Reject(core.ReasonWrongPassword)
	}

	return account, nil
}

// hashFailure maps hasher errors: input limits are the caller's fault,
// anything else is an infrastructure fault.
func hashFailure(err error) error {
	if errors.Is(err, crypto.ErrPasswordTooLong) {
		return core.ErrPasswordTooLong
	}
	return core.Unavailable(fmt.Errorf("hash password: %w", err))
}
