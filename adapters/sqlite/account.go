package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/lborres/pasok"
)

const accountColumns = `id, email, password_hash, display_name, avatar_url, email_verified_at, created_at, updated_at`

func scanAccount(row *sql.Row) (*pasok.Account, error) {
	acc := &pasok.Account{}
	err := row.Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.DisplayName, &acc.AvatarURL, &acc.EmailVerifiedAt, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	return acc, nil
}

func (a *Adapter) FindByEmail(ctx context.Context, email string) (*pasok.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE email = ?`
	acc, err := scanAccount(a.db.QueryRowContext(ctx, q, email))
	if err != nil {
		return nil, err
	}
	return a.withIdentities(ctx, acc)
}

func (a *Adapter) FindByIdentity(ctx context.Context, provider, subject string) (*pasok.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts
	      WHERE id = (SELECT account_id FROM linked_identities WHERE provider = ? AND provider_subject_id = ?)`
	acc, err := scanAccount(a.db.QueryRowContext(ctx, q, provider, subject))
	if err != nil {
		return nil, err
	}
	return a.withIdentities(ctx, acc)
}

func (a *Adapter) findByID(ctx context.Context, id string) (*pasok.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	acc, err := scanAccount(a.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, err
	}
	return a.withIdentities(ctx, acc)
}

// CreateAccount inserts the account, its password hash and its first linked
// identity in one transaction.
func (a *Adapter) CreateAccount(ctx context.Context, acc *pasok.Account, first *pasok.LinkedIdentity) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return translateError(err)
	}

	q := `INSERT INTO accounts (` + accountColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, q,
		acc.ID, acc.Email, acc.PasswordHash, acc.DisplayName, acc.AvatarURL, acc.EmailVerifiedAt, acc.CreatedAt, acc.UpdatedAt,
	)
	if err != nil {
		tx.Rollback()
		return translateError(err)
	}

	if first != nil {
		if err := insertIdentity(ctx, tx, first); err != nil {
			tx.Rollback()
			return translateError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return translateError(err)
	}

	return nil
}

// SetPassword writes hash only where none is stored yet.
func (a *Adapter) SetPassword(ctx context.Context, accountID, hash string) error {
	q := `UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ? AND password_hash IS NULL`
	res, err := a.db.ExecContext(ctx, q, hash, time.Now().UTC(), accountID)
	if err != nil {
		return translateError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}

	var exists bool
	err = a.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = ?)`, accountID).Scan(&exists)
	if err != nil {
		return translateError(err)
	}
	if !exists {
		return pasok.ErrAccountNotFound
	}
	return pasok.ErrPasswordAlreadySet
}

// UpdateProfileFieldsIfUnset fills null columns only.
func (a *Adapter) UpdateProfileFieldsIfUnset(ctx context.Context, accountID string, fields pasok.ProfileFields) (*pasok.Account, error) {
	q := `UPDATE accounts SET
	          display_name      = COALESCE(display_name, ?),
	          avatar_url        = COALESCE(avatar_url, ?),
	          email_verified_at = COALESCE(email_verified_at, ?),
	          updated_at        = ?
	      WHERE id = ?`
	res, err := a.db.ExecContext(ctx, q, fields.DisplayName, fields.AvatarURL, fields.EmailVerifiedAt, time.Now().UTC(), accountID)
	if err != nil {
		return nil, translateError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, pasok.ErrAccountNotFound
	}
	return a.findByID(ctx, accountID)
}

func (a *Adapter) withIdentities(ctx context.Context, acc *pasok.Account) (*pasok.Account, error) {
	identities, err := a.identitiesFor(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	acc.Identities = identities
	return acc, nil
}
