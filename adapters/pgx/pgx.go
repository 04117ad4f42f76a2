package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lborres/pasok"
)

const uniqueViolation = "23505"

// Constraint names created by Migrate. Uniqueness errors are classified by
// which of these fired.
const (
	constraintAccountEmail    = "accounts_email_key"
	constraintProviderSubject = "linked_identities_provider_subject_key"
	constraintAccountProvider = "linked_identities_account_provider_key"
)

type Adapter struct {
	pool *pgxpool.Pool
}

var _ pasok.CredentialStore = (*Adapter)(nil)

func New(pool *pgxpool.Pool) *Adapter {
	return &Adapter{
		pool: pool,
	}
}

// Connect opens a pool for dsn and verifies it is reachable.
func Connect(ctx context.Context, dsn string) (*Adapter, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return New(pool), nil
}

func (a *Adapter) Close() {
	a.pool.Close()
}

// Migrate creates the account tables and their unique constraints.
func (a *Adapter) Migrate(ctx context.Context) error {
	if _, err := a.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS public.accounts (
	id                TEXT PRIMARY KEY,
	email             TEXT NOT NULL,
	password_hash     TEXT,
	display_name      TEXT,
	avatar_url        TEXT,
	email_verified_at TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT accounts_email_key UNIQUE (email)
);

CREATE TABLE IF NOT EXISTS public.linked_identities (
	id                  TEXT PRIMARY KEY,
	account_id          TEXT NOT NULL REFERENCES public.accounts (id) ON DELETE CASCADE,
	provider            TEXT NOT NULL,
	provider_subject_id TEXT NOT NULL,
	access_token        TEXT,
	refresh_token       TEXT,
	id_token            TEXT,
	scope               TEXT NOT NULL DEFAULT '',
	token_expires_at    TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT linked_identities_provider_subject_key UNIQUE (provider, provider_subject_id),
	CONSTRAINT linked_identities_account_provider_key UNIQUE (account_id, provider)
);`

// translateError maps driver errors onto store sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return pasok.ErrAccountNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case constraintAccountEmail:
			return pasok.ErrEmailTaken
		case constraintProviderSubject:
			return pasok.ErrIdentityTaken
		case constraintAccountProvider:
			return pasok.ErrProviderAlreadyLinked
		}
	}
	return err
}
