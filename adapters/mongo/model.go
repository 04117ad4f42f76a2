package mongo

import (
	"strconv"
	"time"

	"github.com/lborres/pasok"
)

type accountDoc struct {
	ID              string        `bson:"_id"`
	Email           string        `bson:"email"`
	PasswordHash    *string       `bson:"password_hash,omitempty"`
	DisplayName     *string       `bson:"display_name,omitempty"`
	AvatarURL       *string       `bson:"avatar_url,omitempty"`
	EmailVerifiedAt *time.Time    `bson:"email_verified_at,omitempty"`
	Identities      []identityDoc `bson:"identities"`
	CreatedAt       time.Time     `bson:"created_at"`
	UpdatedAt       time.Time     `bson:"updated_at"`
}

// identityDoc carries key, the (provider, subject) pair folded into one
// value. A compound multikey index over provider and provider_subject_id
// would match fields from different array elements of the same account.
type identityDoc struct {
	ID                string     `bson:"id"`
	Key               string     `bson:"key"`
	Provider          string     `bson:"provider"`
	ProviderSubjectID string     `bson:"provider_subject_id"`
	AccessToken       *string    `bson:"access_token,omitempty"`
	RefreshToken      *string    `bson:"refresh_token,omitempty"`
	IDToken           *string    `bson:"id_token,omitempty"`
	Scope             string     `bson:"scope,omitempty"`
	ExpiresAt         *time.Time `bson:"expires_at,omitempty"`
	CreatedAt         time.Time  `bson:"created_at"`
}

func toAccountDoc(a *pasok.Account, first *pasok.LinkedIdentity) accountDoc {
	doc := accountDoc{
		ID:              a.ID,
		Email:           a.Email,
		PasswordHash:    a.PasswordHash,
		DisplayName:     a.DisplayName,
		AvatarURL:       a.AvatarURL,
		EmailVerifiedAt: a.EmailVerifiedAt,
		Identities:      []identityDoc{},
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if first != nil {
		doc.Identities = append(doc.Identities, toIdentityDoc(first))
	}
	return doc
}

func toIdentityDoc(li *pasok.LinkedIdentity) identityDoc {
	return identityDoc{
		ID:                li.ID,
		Key:               identityKey(li.Provider, li.ProviderSubjectID),
		Provider:          li.Provider,
		ProviderSubjectID: li.ProviderSubjectID,
		AccessToken:       li.AccessToken,
		RefreshToken:      li.RefreshToken,
		IDToken:           li.IDToken,
		Scope:             li.Scope,
		ExpiresAt:         li.ExpiresAt,
		CreatedAt:         li.CreatedAt,
	}
}

// identityKey length-prefixes the provider so no two pairs share a key.
func identityKey(provider, subject string) string {
	return strconv.Itoa(len(provider)) + ":" + provider + ":" + subject
}

func (d accountDoc) toAccount() *pasok.Account {
	acc := &pasok.Account{
		ID:              d.ID,
		Email:           d.Email,
		PasswordHash:    d.PasswordHash,
		DisplayName:     d.DisplayName,
		AvatarURL:       d.AvatarURL,
		EmailVerifiedAt: d.EmailVerifiedAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	for _, li := range d.Identities {
		acc.Identities = append(acc.Identities, pasok.LinkedIdentity{
			ID:                li.ID,
			AccountID:         d.ID,
			Provider:          li.Provider,
			ProviderSubjectID: li.ProviderSubjectID,
			ProviderTokens: pasok.ProviderTokens{
				AccessToken:  li.AccessToken,
				RefreshToken: li.RefreshToken,
				IDToken:      li.IDToken,
				Scope:        li.Scope,
				ExpiresAt:    li.ExpiresAt,
			},
			CreatedAt: li.CreatedAt,
		})
	}
	return acc
}
