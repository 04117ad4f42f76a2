package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/lborres/pasok"
)

// CreateLinkedIdentity pushes li onto its account unless the account already
// holds an identity for the same provider.
func (a *Adapter) CreateLinkedIdentity(ctx context.Context, li *pasok.LinkedIdentity) error {
	result, err := a.accounts().UpdateOne(ctx,
		bson.M{"_id": li.AccountID, "identities.provider": bson.M{"$ne": li.Provider}},
		bson.M{"$push": bson.M{"identities": toIdentityDoc(li)}},
	)
	if err != nil {
		return translateError(err)
	}
	if result.MatchedCount == 1 {
		return nil
	}
	if err := a.exists(ctx, li.AccountID); err != nil {
		return err
	}
	return pasok.ErrProviderAlreadyLinked
}
