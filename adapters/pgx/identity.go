package pgx

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lborres/pasok"
)

func (a *Adapter) CreateLinkedIdentity(ctx context.Context, li *pasok.LinkedIdentity) error {
	return translateError(insertIdentity(ctx, a.pool, li))
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertIdentity(ctx context.Context, db execer, li *pasok.LinkedIdentity) error {
	q := `INSERT INTO public.linked_identities
	          (id, account_id, provider, provider_subject_id, access_token, refresh_token, id_token, scope, token_expires_at, created_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := db.Exec(ctx, q,
		li.ID, li.AccountID, li.Provider, li.ProviderSubjectID, li.AccessToken, li.RefreshToken, li.IDToken, li.Scope, li.ExpiresAt, li.CreatedAt,
	)
	return err
}

func (a *Adapter) identitiesFor(ctx context.Context, accountID string) ([]pasok.LinkedIdentity, error) {
	q := `SELECT id, account_id, provider, provider_subject_id, access_token, refresh_token, id_token, scope, token_expires_at, created_at
	      FROM public.linked_identities WHERE account_id = $1 ORDER BY created_at, id`

	rows, err := a.pool.Query(ctx, q, accountID)
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

	if err = rows.Err(); err != nil {
		return nil, translateError(err)
	}

	return identities, nil
}
