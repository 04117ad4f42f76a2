// Package storetests provides common acceptance tests for pasok.CredentialStore
// implementations.
package storetests

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/pasok"
)

func sptr(s string) *string { return &s }

func newAccount(id, email string) *pasok.Account {
	now := time.Now().UTC().Truncate(time.Second)
	return &pasok.Account{
		ID:        id,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newIdentity(id, accountID, provider, subject string) *pasok.LinkedIdentity {
	return &pasok.LinkedIdentity{
		ID:                id,
		AccountID:         accountID,
		Provider:          provider,
		ProviderSubjectID: subject,
		ProviderTokens:    pasok.ProviderTokens{AccessToken: sptr("at-" + subject), Scope: "openid email"},
		CreatedAt:         time.Now().UTC().Truncate(time.Second),
	}
}

// Run exercises newStore against the CredentialStore contract. Every call to
// newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) pasok.CredentialStore) {
	ctx := context.Background()

	t.Run("CreateFindRoundTrip", func(t *testing.T) {
		store := newStore(t)
		acc := newAccount("acc1", "a@x.com")
		acc.DisplayName = sptr("Ana")
		verified := acc.CreatedAt
		acc.EmailVerifiedAt = &verified

		require.NoError(t, store.CreateAccount(ctx, acc, newIdentity("lid1", "acc1", "google", "g-1")))

		got, err := store.FindByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, "acc1", got.ID)
		assert.Equal(t, "Ana", *got.DisplayName)
		assert.Nil(t, got.PasswordHash)
		assert.Nil(t, got.AvatarURL)
		require.NotNil(t, got.EmailVerifiedAt)
		assert.WithinDuration(t, verified, *got.EmailVerifiedAt, time.Second)
		require.Len(t, got.Identities, 1)
		assert.Equal(t, "g-1", got.Identities[0].ProviderSubjectID)
		require.NotNil(t, got.Identities[0].AccessToken)
		assert.Equal(t, "at-g-1", *got.Identities[0].AccessToken)
		assert.Equal(t, "openid email", got.Identities[0].Scope)

		owner, err := store.FindByIdentity(ctx, "google", "g-1")
		require.NoError(t, err)
		assert.Equal(t, "acc1", owner.ID)
	})

	t.Run("CreateWithPassword", func(t *testing.T) {
		store := newStore(t)
		acc := newAccount("acc1", "a@x.com")
		acc.PasswordHash = sptr("hash")

		require.NoError(t, store.CreateAccount(ctx, acc, nil))

		got, err := store.FindByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		require.NotNil(t, got.PasswordHash)
		assert.Equal(t, "hash", *got.PasswordHash)
		assert.Empty(t, got.Identities)
	})

	t.Run("NotFound", func(t *testing.T) {
		store := newStore(t)

		_, err := store.FindByEmail(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, pasok.ErrAccountNotFound)

		_, err = store.FindByIdentity(ctx, "google", "nobody")
		assert.ErrorIs(t, err, pasok.ErrAccountNotFound)

		err = store.SetPassword(ctx, "missing", "hash")
		assert.ErrorIs(t, err, pasok.ErrAccountNotFound)
	})

	t.Run("EmailTaken", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateAccount(ctx, newAccount("acc1", "a@x.com"), nil))

		err := store.CreateAccount(ctx, newAccount("acc2", "a@x.com"), newIdentity("lid2", "acc2", "google", "g-2"))
		assert.ErrorIs(t, err, pasok.ErrEmailTaken)

		_, err = store.FindByIdentity(ctx, "google", "g-2")
		assert.ErrorIs(t, err, pasok.ErrAccountNotFound, "identity must not be committed without its account")
	})

	t.Run("IdentityTakenRollsBackAccount", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateAccount(ctx, newAccount("acc1", "a@x.com"), newIdentity("lid1", "acc1", "google", "g-1")))

		err := store.CreateAccount(ctx, newAccount("acc2", "b@x.com"), newIdentity("lid2", "acc2", "google", "g-1"))
		assert.ErrorIs(t, err, pasok.ErrIdentityTaken)

		_, err = store.FindByEmail(ctx, "b@x.com")
		assert.ErrorIs(t, err, pasok.ErrAccountNotFound, "account must not be committed without its identity")
	})

	t.Run("CreateLinkedIdentity", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateAccount(ctx, newAccount("acc1", "a@x.com"), nil))
		require.NoError(t, store.CreateAccount(ctx, newAccount("acc2", "b@x.com"), newIdentity("lid0", "acc2", "github", "gh-1")))

		require.NoError(t, store.CreateLinkedIdentity(ctx, newIdentity("lid1", "acc1", "google", "g-1")))

		err := store.CreateLinkedIdentity(ctx, newIdentity("lid2", "acc1", "google", "g-2"))
		assert.ErrorIs(t, err, pasok.ErrProviderAlreadyLinked)

		err = store.CreateLinkedIdentity(ctx, newIdentity("lid3", "acc1", "github", "gh-1"))
		assert.ErrorIs(t, err, pasok.ErrIdentityTaken)

		got, err := store.FindByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, []string{"google"}, got.Providers())
	})

	t.Run("SameSubjectAcrossProviders", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateAccount(ctx, newAccount("acc1", "a@x.com"), newIdentity("lid1", "acc1", "google", "123")))
		require.NoError(t, store.CreateLinkedIdentity(ctx, newIdentity("lid2", "acc1", "github", "456")))
		require.NoError(t, store.CreateAccount(ctx, newAccount("acc2", "b@x.com"), nil))

		// acc1 holds google:123 and github:456 but not github:123.
		require.NoError(t, store.CreateLinkedIdentity(ctx, newIdentity("lid3", "acc2", "github", "123")))
		require.NoError(t, store.CreateAccount(ctx, newAccount("acc3", "c@x.com"), newIdentity("lid4", "acc3", "google", "456")))

		owner, err := store.FindByIdentity(ctx, "github", "123")
		require.NoError(t, err)
		assert.Equal(t, "acc2", owner.ID)

		owner, err = store.FindByIdentity(ctx, "google", "123")
		require.NoError(t, err)
		assert.Equal(t, "acc1", owner.ID)

		owner, err = store.FindByIdentity(ctx, "google", "456")
		require.NoError(t, err)
		assert.Equal(t, "acc3", owner.ID)
	})

	t.Run("SetPasswordOnlyOnce", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateAccount(ctx, newAccount("acc1", "a@x.com"), newIdentity("lid1", "acc1", "google", "g-1")))

		require.NoError(t, store.SetPassword(ctx, "acc1", "first"))
		err := store.SetPassword(ctx, "acc1", "second")
		assert.ErrorIs(t, err, pasok.ErrPasswordAlreadySet)

		got, err := store.FindByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, "first", *got.PasswordHash)
		assert.Len(t, got.Identities, 1)
	})

	t.Run("UpdateProfileFieldsIfUnset", func(t *testing.T) {
		store := newStore(t)
		acc := newAccount("acc1", "a@x.com")
		acc.DisplayName = sptr("Ana")
		require.NoError(t, store.CreateAccount(ctx, acc, nil))

		verified := time.Now().UTC().Truncate(time.Second)
		got, err := store.UpdateProfileFieldsIfUnset(ctx, "acc1", pasok.ProfileFields{
			DisplayName:     sptr("Anita"),
			AvatarURL:       sptr("https://example.com/a.png"),
			EmailVerifiedAt: &verified,
		})
		require.NoError(t, err)
		assert.Equal(t, "Ana", *got.DisplayName)
		assert.Equal(t, "https://example.com/a.png", *got.AvatarURL)
		require.NotNil(t, got.EmailVerifiedAt)
		assert.WithinDuration(t, verified, *got.EmailVerifiedAt, time.Second)

		later := verified.Add(48 * time.Hour)
		got, err = store.UpdateProfileFieldsIfUnset(ctx, "acc1", pasok.ProfileFields{
			AvatarURL:       sptr("https://example.com/b.png"),
			EmailVerifiedAt: &later,
		})
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/a.png", *got.AvatarURL)
		require.NotNil(t, got.EmailVerifiedAt)
		assert.WithinDuration(t, verified, *got.EmailVerifiedAt, time.Second, "verification time must not be overwritten")

		_, err = store.UpdateProfileFieldsIfUnset(ctx, "missing", pasok.ProfileFields{DisplayName: sptr("x")})
		assert.ErrorIs(t, err, pasok.ErrAccountNotFound)
	})

	t.Run("ConcurrentCreateSameEmail", func(t *testing.T) {
		store := newStore(t)
		const n = 8

		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("acc%d", i)
				var first *pasok.LinkedIdentity
				if i%2 == 0 {
					first = newIdentity("lid"+id, id, "google", "g-"+id)
				}
				errs[i] = store.CreateAccount(ctx, newAccount(id, "race@x.com"), first)
			}(i)
		}
		wg.Wait()

		created := 0
		for _, err := range errs {
			if err == nil {
				created++
				continue
			}
			assert.ErrorIs(t, err, pasok.ErrEmailTaken)
		}
		assert.Equal(t, 1, created)
	})
}
