package sqlite

import (
	"context"
	"database/sql"

	"github.com/lborres/pasok"
)

const identityColumns = `id, account_id, provider, provider_subject_id, access_token, refresh_token, id_token, scope, token_expires_at, created_at`

func (a *Adapter) CreateLinkedIdentity(ctx context.Context, li *pasok.LinkedIdentity) error {
	return translateError(insertIdentity(ctx, a.db, li))
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertIdentity(ctx context.Context, db execer, li *pasok.LinkedIdentity) error {
	q := `INSERT INTO linked_identities (` + identityColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q,
		li.ID, li.AccountID, li.Provider, li.ProviderSubjectID, li.AccessToken, li.RefreshToken, li.IDToken, li.Scope, li.ExpiresAt, li.CreatedAt,
	)
	return err
}

func (a *Adapter) identitiesFor(ctx context.Context, accountID string) ([]pasok.LinkedIdentity, error) {
	q := `SELECT ` + identityColumns + ` FROM linked_identities WHERE account_id = ? ORDER BY created_at, id`
	rows, err := a.db.QueryContext(ctx, q, accountID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var identities []pasok.LinkedIdentity
	for rows.Next() {
		var li pasok.LinkedIdentity
		err := rows.Scan(
			&li.ID, &li.AccountID, &li.Provider, &li.ProviderSubjectID, &li.AccessToken, &li.RefreshToken, &li.IDToken, &li.Scope, &li.ExpiresAt, &li.CreatedAt,
		)
		if err != nil {
			return nil, translateError(err)
		}
		identities = append(identities, li)
	}

	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}

	return identities, nil
}
