package pgx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/pasok"
	"github.com/lborres/pasok/adapters/storetests"
)

func TestAdapter(t *testing.T) {
	// Check if tests are explicitly enabled with PG_TEST_DSN
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PostgreSQL tests skipped. Set PG_TEST_DSN env var to enable.")
	}

	ctx := context.Background()
	adapter, err := Connect(ctx, dsn)
	if err != nil {
		t.Skipf("Skipping PostgreSQL tests - %v", err)
	}
	t.Cleanup(adapter.Close)

	storetests.Run(t, func(t *testing.T) pasok.CredentialStore {
		_, err := adapter.pool.Exec(ctx, `DROP TABLE IF EXISTS public.linked_identities, public.accounts`)
		require.NoError(t, err)
		require.NoError(t, adapter.Migrate(ctx))
		return adapter
	})
}

func TestTranslateError(t *testing.T) {
	other := errors.New("boom")

	tests := []struct {
		name     string
		input    error
		expected error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, pasok.ErrAccountNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), pasok.ErrAccountNotFound},
		{"email", &pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"}, pasok.ErrEmailTaken},
		{"subject", &pgconn.PgError{Code: "23505", ConstraintName: "linked_identities_provider_subject_key"}, pasok.ErrIdentityTaken},
		{"provider", &pgconn.PgError{Code: "23505", ConstraintName: "linked_identities_account_provider_key"}, pasok.ErrProviderAlreadyLinked},
		{"unknown constraint", &pgconn.PgError{Code: "23505", ConstraintName: "accounts_pkey"}, nil},
		{"other", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.input)
			if tt.expected == nil && tt.input != nil {
				assert.Equal(t, tt.input, got, "unmapped errors pass through")
				return
			}
			assert.ErrorIs(t, got, tt.expected)
		})
	}
}
