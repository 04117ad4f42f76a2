package services

import (
	"context"
	"errors"

	"github.com/lborres/pasok/core"
)

// Resolver looks up the canonical account for a normalized email.
type Resolver struct {
	store core.CredentialStore
}

func NewResolver(store core.CredentialStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve is a pure lookup. Absence is reported through found, not err; err
// is always a store fault.
func (r *Resolver) Resolve(ctx context.Context, email string) (account *core.Account, found bool, err error) {
	account, err = r.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return account, true, nil
	case errors.Is(err, core.ErrAccountNotFound):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

// mustResolve re-reads an account that a uniqueness violation proved to exist.
func (r *Resolver) mustResolve(ctx context.Context, email string) (*core.Account, error) {
	account, found, err := r.Resolve(ctx, email)
	if err != nil {
		return nil, core.Unavailable(err)
	}
	if !found {
		return nil, core.Unavailable(errors.New("account missing after duplicate email violation"))
	}
	return account, nil
}
