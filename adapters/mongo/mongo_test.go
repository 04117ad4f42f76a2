package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/lborres/pasok"
	"github.com/lborres/pasok/adapters/storetests"
)

func TestAdapter(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MongoDB tests skipped. Set MONGO_TEST_URI env var to enable.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	database := fmt.Sprintf("pasok_test_%d", time.Now().UnixNano())
	adapter, err := Connect(ctx, uri, database)
	if err != nil {
		t.Skipf("Skipping MongoDB tests - %v", err)
	}
	t.Cleanup(func() {
		_ = adapter.db.Drop(context.Background())
		_ = adapter.Close(context.Background())
	})

	storetests.Run(t, func(t *testing.T) pasok.CredentialStore {
		ctx := context.Background()
		require.NoError(t, adapter.accounts().Drop(ctx))
		require.NoError(t, adapter.Migrate(ctx))
		return adapter
	})
}

func TestTranslateError(t *testing.T) {
	other := errors.New("boom")
	dup := func(index string) error {
		return mongo.WriteException{WriteErrors: []mongo.WriteError{{
			Code:    11000,
			Message: "E11000 duplicate key error collection: pasok.accounts index: " + index + " dup key: { }",
		}}}
	}

	tests := []struct {
		name     string
		input    error
		expected error
	}{
		{"nil", nil, nil},
		{"no documents", mongo.ErrNoDocuments, pasok.ErrAccountNotFound},
		{"email", dup(indexEmail), pasok.ErrEmailTaken},
		{"identity", dup(indexIdentity), pasok.ErrIdentityTaken},
		{"other", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translateError(tt.input), tt.expected)
		})
	}
}

func TestIdentityKey(t *testing.T) {
	assert.Equal(t, "6:google:123", identityKey("google", "123"))
	assert.NotEqual(t, identityKey("google", "123"), identityKey("github", "123"))
	assert.NotEqual(t, identityKey("a:b", "c"), identityKey("a", "b:c"))

	doc := toIdentityDoc(&pasok.LinkedIdentity{Provider: "github", ProviderSubjectID: "456"})
	assert.Equal(t, identityKey("github", "456"), doc.Key)
}

func TestAppendIfUnset(t *testing.T) {
	name := "$where"
	set := appendIfUnset(nil, "display_name", &name)
	set = appendIfUnset[string](set, "avatar_url", nil)

	require.Len(t, set, 1)
	assert.Equal(t, "display_name", set[0].Key)
	assert.Contains(t, fmt.Sprint(set[0].Value), "$literal")
}
