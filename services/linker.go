package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lborres/pasok/core"
	"github.com/lborres/pasok/pkg/crypto"
)

// stepFunc observes state machine transitions. May be nil.
type stepFunc func(core.State)

func (f stepFunc) enter(s core.State) {
	if f != nil {
		f(s)
	}
}

// Linker attaches federated identities to accounts, creating the account on
// first sign-in.
type Linker struct {
	store    core.CredentialStore
	resolver *Resolver
	now      func() time.Time
}

func NewLinker(store core.CredentialStore, resolver *Resolver) *Linker {
	return &Linker{store: store, resolver: resolver, now: time.Now}
}

// LinkOrCreate resolves req.Email and then creates, links or returns the
// account. It never creates two accounts for one email and never overwrites
// profile fields that are already set.
func (l *Linker) LinkOrCreate(ctx context.Context, req core.FederatedSignInRequest) (*core.Account, error) {
	return l.linkOrCreate(ctx, req, nil)
}

func (l *Linker) linkOrCreate(ctx context.Context, req core.FederatedSignInRequest, step stepFunc) (*core.Account, error) {
	step.enter(core.StateResolvingEmail)
	account, found, err := l.resolver.Resolve(ctx, req.Email)
	if err != nil {
		return nil, core.Unavailable(err)
	}

	if !found {
		step.enter(core.StateCreating)
		account, err = l.create(ctx, req)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, core.ErrEmailTaken) {
			return nil, err
		}
		// Lost the race against a concurrent sign-up for the same email.
		if account, err = l.resolver.mustResolve(ctx, req.Email); err != nil {
			return nil, err
		}
	}

	step.enter(core.StateLinking)
	return l.link(ctx, account, req)
}

// create inserts the account and its first identity atomically. Federated
// providers are trusted to have verified the email.
func (l *Linker) create(ctx context.Context, req core.FederatedSignInRequest) (*core.Account, error) {
	now := l.now()
	accountID, err := crypto.NewAccountID()
	if err != nil {
		return nil, core.Unavailable(fmt.Errorf("generate account id: %w", err))
	}
	identity, err := newIdentity(accountID, req, now)
	if err != nil {
		return nil, core.Unavailable(err)
	}

	account := &core.Account{
		ID:              accountID,
		Email:           req.Email,
		DisplayName:     req.Profile.DisplayName,
		AvatarURL:       req.Profile.AvatarURL,
		EmailVerifiedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = l.store.CreateAccount(ctx, account, identity)
	switch {
	case err == nil:
		account.Identities = []core.LinkedIdentity{*identity}
		return account, nil
	case errors.Is(err, core.ErrEmailTaken):
		return nil, core.ErrEmailTaken
	case errors.Is(err, core.ErrIdentityTaken):
		// The subject already belongs to an account under another email.
		return nil, core.Reject(core.ReasonLinkConflict)
	default:
		return nil, core.Unavailable(err)
	}
}

func (l *Linker) link(ctx context.Context, account *core.Account, req core.FederatedSignInRequest) (*core.Account, error) {
	owner, err := l.store.FindByIdentity(ctx, req.Provider, req.ProviderSubjectID)
	switch {
	case err == nil && owner.ID != account.ID:
		return nil, core.Reject(core.ReasonLinkConflict)
	case err == nil:
		// Idempotent re-login.
		return account, nil
	case !errors.Is(err, core.ErrAccountNotFound):
		return nil, core.Unavailable(err)
	}

	if account.IdentityFor(req.Provider) != nil {
		// One link per provider; a second subject from the same provider is
		// not attached.
		return account, nil
	}

	now := l.now()
	identity, err := newIdentity(account.ID, req, now)
	if err != nil {
		return nil, core.Unavailable(err)
	}

	err = l.store.CreateLinkedIdentity(ctx, identity)
	switch {
	case errors.Is(err, core.ErrIdentityTaken):
		return l.afterDuplicateLink(ctx, account, req)
	case errors.Is(err, core.ErrProviderAlreadyLinked):
		// A concurrent request linked this provider first.
		return l.resolver.mustResolve(ctx, account.Email)
	case err != nil:
		return nil, core.Unavailable(err)
	}
	account.Identities = append(account.Identities, *identity)

	return backfill(ctx, l.store, account, core.ProfileFields{
		DisplayName:     req.Profile.DisplayName,
		AvatarURL:       req.Profile.AvatarURL,
		EmailVerifiedAt: &now,
	})
}

// afterDuplicateLink decides whether a duplicate (provider, subject) insert
// was a concurrent identical request or a genuine conflict.
func (l *Linker) afterDuplicateLink(ctx context.Context, account *core.Account, req core.FederatedSignInRequest) (*core.Account, error) {
	owner, err := l.store.FindByIdentity(ctx, req.Provider, req.ProviderSubjectID)
	if err != nil {
		return nil, core.Unavailable(err)
	}
	if owner.ID != account.ID {
		return nil, core.Reject(core.ReasonLinkConflict)
	}
	return owner, nil
}

func newIdentity(accountID string, req core.FederatedSignInRequest, now time.Time) (*core.LinkedIdentity, error) {
	id, err := crypto.NewIdentityID()
	if err != nil {
		return nil, fmt.Errorf("generate identity id: %w", err)
	}
	return &core.LinkedIdentity{
		ID:                id,
		AccountID:         accountID,
		Provider:          req.Provider,
		ProviderSubjectID: req.ProviderSubjectID,
		ProviderTokens:    req.Tokens,
		CreatedAt:         now,
	}, nil
}

// backfill writes the fields the account is still missing.
func backfill(ctx context.Context, store core.CredentialStore, account *core.Account, fields core.ProfileFields) (*core.Account, error) {
	missing := fields.MissingFrom(account)
	if missing.Empty() {
		return account, nil
	}
	updated, err := store.UpdateProfileFieldsIfUnset(ctx, account.ID, missing)
	if err != nil {
		return nil, core.Unavailable(err)
	}
	return updated, nil
}
