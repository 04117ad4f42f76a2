// Package mongo provides a MongoDB implementation of pasok.CredentialStore.
//
// Linked identities are embedded in their account document, so creating an
// account together with its first identity is a single atomic insert.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lborres/pasok"
)

const (
	accountCollection = "accounts"

	indexEmail    = "accounts_email_key"
	indexIdentity = "accounts_identity_key"
)

type Adapter struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ pasok.CredentialStore = (*Adapter)(nil)

func New(db *mongo.Database) *Adapter {
	return &Adapter{db: db}
}

// Connect opens a client for uri and verifies it is reachable.
func Connect(ctx context.Context, uri, database string) (*Adapter, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to create MongoDB client: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	return &Adapter{client: client, db: client.Database(database)}, nil
}

func (a *Adapter) Close(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	return a.client.Disconnect(ctx)
}

func (a *Adapter) accounts() *mongo.Collection {
	return a.db.Collection(accountCollection)
}

// Migrate creates the unique indexes backing email and identity uniqueness.
// The identity index is on the folded identities.key and skips accounts
// without identities, which would otherwise all collide on a missing key.
func (a *Adapter) Migrate(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(indexEmail),
		},
		{
			Keys: bson.D{{Key: "identities.key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName(indexIdentity).
				SetPartialFilterExpression(bson.M{"identities.key": bson.M{"$exists": true}}),
		},
	}

	if _, err := a.accounts().Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// translateError maps driver errors onto store sentinels. Duplicate key
// errors name the violated index in their message.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return pasok.ErrAccountNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		msg := err.Error()
		switch {
		case strings.Contains(msg, indexEmail):
			return pasok.ErrEmailTaken
		case strings.Contains(msg, indexIdentity):
			return pasok.ErrIdentityTaken
		}
	}
	return err
}
