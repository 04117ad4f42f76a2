// Package sqlite provides a SQLite implementation of pasok.CredentialStore.
//
// Examples:
//
//	store, err := sqlite.Open("file:pasok.db")
//	store, err := sqlite.Open(":memory:")
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/lborres/pasok"
)

type Adapter struct {
	db *sql.DB
}

var _ pasok.CredentialStore = (*Adapter)(nil)

// New wraps an open database handle.
func New(db *sql.DB) *Adapter {
	return &Adapter{db: db}
}

// Open connects to dsn. SQLite allows one writer at a time, so the pool is
// limited to a single connection; this also keeps ":memory:" databases
// shared across calls.
func Open(dsn string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	return New(db), nil
}

func (a *Adapter) Close() error {
	return a.db.Close()
}

// Migrate creates the account tables and their unique constraints.
func (a *Adapter) Migrate(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id                TEXT PRIMARY KEY,
	email             TEXT NOT NULL UNIQUE,
	password_hash     TEXT,
	display_name      TEXT,
	avatar_url        TEXT,
	email_verified_at TIMESTAMP,
	created_at        TIMESTAMP NOT NULL,
	updated_at        TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS linked_identities (
	id                  TEXT PRIMARY KEY,
	account_id          TEXT NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
	provider            TEXT NOT NULL,
	provider_subject_id TEXT NOT NULL,
	access_token        TEXT,
	refresh_token       TEXT,
	id_token            TEXT,
	scope               TEXT NOT NULL DEFAULT '',
	token_expires_at    TIMESTAMP,
	created_at          TIMESTAMP NOT NULL,
	UNIQUE (provider, provider_subject_id),
	UNIQUE (account_id, provider)
);`

// translateError maps driver errors onto store sentinels. SQLite reports the
// violated columns only in the message.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return pasok.ErrAccountNotFound
	}

	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		msg := sqlErr.Error()
		switch {
		case strings.Contains(msg, "accounts.email"):
			return pasok.ErrEmailTaken
		case strings.Contains(msg, "linked_identities.provider_subject_id"):
			return pasok.ErrIdentityTaken
		case strings.Contains(msg, "linked_identities.account_id"):
			return pasok.ErrProviderAlreadyLinked
		}
	}
	return err
}
