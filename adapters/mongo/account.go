package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lborres/pasok"
)

func (a *Adapter) findOne(ctx context.Context, filter any) (*pasok.Account, error) {
	var doc accountDoc
	if err := a.accounts().FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translateError(err)
	}
	return doc.toAccount(), nil
}

func (a *Adapter) FindByEmail(ctx context.Context, email string) (*pasok.Account, error) {
	return a.findOne(ctx, bson.M{"email": email})
}

func (a *Adapter) FindByIdentity(ctx context.Context, provider, subject string) (*pasok.Account, error) {
	return a.findOne(ctx, bson.M{"identities.key": identityKey(provider, subject)})
}

// CreateAccount inserts the account with its password hash and first
// identity as one document.
func (a *Adapter) CreateAccount(ctx context.Context, acc *pasok.Account, first *pasok.LinkedIdentity) error {
	_, err := a.accounts().InsertOne(ctx, toAccountDoc(acc, first))
	return translateError(err)
}

// SetPassword writes hash only where none is stored yet.
func (a *Adapter) SetPassword(ctx context.Context, accountID, hash string) error {
	result, err := a.accounts().UpdateOne(ctx,
		bson.M{"_id": accountID, "password_hash": nil},
		bson.M{"$set": bson.M{"password_hash": hash, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return translateError(err)
	}
	if result.MatchedCount == 1 {
		return nil
	}
	if err := a.exists(ctx, accountID); err != nil {
		return err
	}
	return pasok.ErrPasswordAlreadySet
}

// UpdateProfileFieldsIfUnset fills missing fields with an update pipeline so
// the check and the write happen in one server-side step.
func (a *Adapter) UpdateProfileFieldsIfUnset(ctx context.Context, accountID string, fields pasok.ProfileFields) (*pasok.Account, error) {
	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	set = appendIfUnset(set, "display_name", fields.DisplayName)
	set = appendIfUnset(set, "avatar_url", fields.AvatarURL)
	set = appendIfUnset(set, "email_verified_at", fields.EmailVerifiedAt)

	var doc accountDoc
	err := a.accounts().FindOneAndUpdate(ctx,
		bson.M{"_id": accountID},
		mongo.Pipeline{{{Key: "$set", Value: set}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, translateError(err)
	}
	return doc.toAccount(), nil
}

// appendIfUnset keeps the stored value when present. Values are wrapped in
// $literal so a string starting with "$" is not read as a field path.
func appendIfUnset[T any](set bson.D, field string, value *T) bson.D {
	if value == nil {
		return set
	}
	return append(set, bson.E{Key: field, Value: bson.M{
		"$ifNull": bson.A{"$" + field, bson.M{"$literal": *value}},
	}})
}

func (a *Adapter) exists(ctx context.Context, accountID string) error {
	n, err := a.accounts().CountDocuments(ctx, bson.M{"_id": accountID}, options.Count().SetLimit(1))
	if err != nil {
		return translateError(err)
	}
	if n == 0 {
		return pasok.ErrAccountNotFound
	}
	return nil
}
