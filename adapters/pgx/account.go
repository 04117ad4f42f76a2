package pgx

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/lborres/pasok"
)

const accountColumns = `id, email, password_hash, display_name, avatar_url, email_verified_at, created_at, updated_at`

func scanAccount(row pgx.Row) (*pasok.Account, error) {
	acc := &pasok.Account{}
	err := row.Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.DisplayName, &acc.AvatarURL, &acc.EmailVerifiedAt, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	return acc, nil
}

func (a *Adapter) FindByEmail(ctx context.Context, email string) (*pasok.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM public.accounts WHERE email = $1`
	acc, err := scanAccount(a.pool.QueryRow(ctx, q, email))
	if err != nil {
		return nil, err
	}
	return a.withIdentities(ctx, acc)
}

func (a *Adapter) FindByIdentity(ctx context.Context, provider, subject string) (*pasok.Account, error) {
	q := `SELECT a.id, a.email, a.password_hash, a.display_name, a.avatar_url, a.email_verified_at, a.created_at, a.updated_at
	      FROM public.accounts a
	      JOIN public.linked_identities li ON li.account_id = a.id
	      WHERE li.provider = $1 AND li.provider_subject_id = $2`
	acc, err := scanAccount(a.pool.QueryRow(ctx, q, provider, subject))
	if err != nil {
		return nil, err
	}
	return a.withIdentities(ctx, acc)
}

// CreateAccount inserts the account, its password hash and its first linked
// identity in one transaction.
func (a *Adapter) CreateAccount(ctx context.Context, acc *pasok.Account, first *pasok.LinkedIdentity) error {
	err := pgx.BeginFunc(ctx, a.pool, func(tx pgx.Tx) error {
		q := `INSERT INTO public.accounts (id, email, password_hash, display_name, avatar_url, email_verified_at, created_at, updated_at)
		      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		_, err := tx.Exec(ctx, q,
			acc.ID, acc.Email, acc.PasswordHash, acc.DisplayName, acc.AvatarURL, acc.EmailVerifiedAt, acc.CreatedAt, acc.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if first == nil {
			return nil
		}
		return insertIdentity(ctx, tx, first)
	})
	return translateError(err)
}

// SetPassword writes hash only where none is stored yet.
func (a *Adapter) SetPassword(ctx context.Context, accountID, hash string) error {
	q := `UPDATE public.accounts SET password_hash = $2, updated_at = now()
	      WHERE id = $1 AND password_hash IS NULL`
	tag, err := a.pool.Exec(ctx, q, accountID, hash)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = a.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM public.accounts WHERE id = $1)`, accountID).Scan(&exists)
	if err != nil {
		return translateError(err)
	}
	if !exists {
		return pasok.ErrAccountNotFound
	}
	return pasok.ErrPasswordAlreadySet
}

// UpdateProfileFieldsIfUnset fills null columns only; COALESCE keeps any
// value written by a concurrent request.
func (a *Adapter) UpdateProfileFieldsIfUnset(ctx context.Context, accountID string, fields pasok.ProfileFields) (*pasok.Account, error) {
	q := `UPDATE public.accounts SET
	          display_name      = COALESCE(display_name, $2),
	          avatar_url        = COALESCE(avatar_url, $3),
	          email_verified_at = COALESCE(email_verified_at, $4),
	          updated_at        = now()
	      WHERE id = $1
	      RETURNING ` + accountColumns
	acc, err := scanAccount(a.pool.QueryRow(ctx, q, accountID, fields.DisplayName, fields.AvatarURL, fields.EmailVerifiedAt))
	if err != nil {
		return nil, err
	}
	return a.withIdentities(ctx, acc)
}

func (a *Adapter) withIdentities(ctx context.Context, acc *pasok.Account) (*pasok.Account, error) {
	identities, err := a.identitiesFor(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	acc.Identities = identities
	return acc, nil
}
