package services

import (
	"context"
	"sync"
	"time"

	"github.com/lborres/pasok/core"
)

// FakeCredentialStore is a test-only fake implementing core.CredentialStore.
// It enforces the same uniqueness constraints as the real stores and exposes
// error fields for behavior injection.
type FakeCredentialStore struct {
	mu         sync.Mutex
	accounts   map[string]*core.Account // by id
	byEmail    map[string]string        // email -> account id
	byIdentity map[string]string        // provider|subject -> account id

	findErr   error
	createErr error
	linkErr   error
	setErr    error
	updateErr error

	// beforeCreate runs once, outside the lock, before CreateAccount
	// applies. Tests use it to win a race against the caller.
	beforeCreate func()

	// beforeLink does the same for CreateLinkedIdentity.
	beforeLink func()

	calls map[string]int
}

func NewFakeCredentialStore() *FakeCredentialStore {
	return &FakeCredentialStore{
		accounts:   make(map[string]*core.Account),
		byEmail:    make(map[string]string),
		byIdentity: make(map[string]string),
		calls:      make(map[string]int),
	}
}

func identityKey(provider, subject string) string {
	return provider + "|" + subject
}

func (f *FakeCredentialStore) count(op string) {
	f.calls[op]++
}

// Calls returns how many times op was invoked.
func (f *FakeCredentialStore) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Count returns the number of stored accounts.
func (f *FakeCredentialStore) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.accounts)
}

func (f *FakeCredentialStore) FindByEmail(_ context.Context, email string) (*core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("FindByEmail")
	if f.findErr != nil {
		return nil, f.findErr
	}
	id, ok := f.byEmail[email]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	return clone(f.accounts[id]), nil
}

func (f *FakeCredentialStore) FindByIdentity(_ context.Context, provider, subject string) (*core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("FindByIdentity")
	if f.findErr != nil {
		return nil, f.findErr
	}
	id, ok := f.byIdentity[identityKey(provider, subject)]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	return clone(f.accounts[id]), nil
}

func (f *FakeCredentialStore) CreateAccount(_ context.Context, a *core.Account, first *core.LinkedIdentity) error {
	f.runHook(&f.beforeCreate)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("CreateAccount")
	if f.createErr != nil {
		return f.createErr
	}
	if _, taken := f.byEmail[a.Email]; taken {
		return core.ErrEmailTaken
	}
	stored := clone(a)
	stored.Identities = nil
	if first != nil {
		key := identityKey(first.Provider, first.ProviderSubjectID)
		if _, taken := f.byIdentity[key]; taken {
			return core.ErrIdentityTaken
		}
		f.byIdentity[key] = a.ID
		stored.Identities = []core.LinkedIdentity{*first}
	}
	f.accounts[a.ID] = stored
	f.byEmail[a.Email] = a.ID
	return nil
}

func (f *FakeCredentialStore) SetPassword(_ context.Context, accountID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("SetPassword")
	if f.setErr != nil {
		return f.setErr
	}
	a, ok := f.accounts[accountID]
	if !ok {
		return core.ErrAccountNotFound
	}
	if a.HasPassword() {
		return core.ErrPasswordAlreadySet
	}
	a.PasswordHash = &hash
	a.UpdatedAt = time.Now()
	return nil
}

func (f *FakeCredentialStore) CreateLinkedIdentity(_ context.Context, li *core.LinkedIdentity) error {
	f.runHook(&f.beforeLink)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("CreateLinkedIdentity")
	if f.linkErr != nil {
		return f.linkErr
	}
	a, ok := f.accounts[li.AccountID]
	if !ok {
		return core.ErrAccountNotFound
	}
	key := identityKey(li.Provider, li.ProviderSubjectID)
	if _, taken := f.byIdentity[key]; taken {
		return core.ErrIdentityTaken
	}
	if a.IdentityFor(li.Provider) != nil {
		return core.ErrProviderAlreadyLinked
	}
	f.byIdentity[key] = a.ID
	a.Identities = append(a.Identities, *li)
	return nil
}

func (f *FakeCredentialStore) UpdateProfileFieldsIfUnset(_ context.Context, accountID string, fields core.ProfileFields) (*core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("UpdateProfileFieldsIfUnset")
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	a, ok := f.accounts[accountID]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	if a.DisplayName == nil {
		a.DisplayName = fields.DisplayName
	}
	if a.AvatarURL == nil {
		a.AvatarURL = fields.AvatarURL
	}
	if a.EmailVerifiedAt == nil {
		a.EmailVerifiedAt = fields.EmailVerifiedAt
	}
	return clone(a), nil
}

func (f *FakeCredentialStore) runHook(hook *func()) {
	f.mu.Lock()
	h := *hook
	*hook = nil
	f.mu.Unlock()
	if h != nil {
		h()
	}
}

// put seeds an account directly.
func (f *FakeCredentialStore) put(a *core.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[a.ID] = clone(a)
	f.byEmail[a.Email] = a.ID
	for _, li := range a.Identities {
		f.byIdentity[identityKey(li.Provider, li.ProviderSubjectID)] = a.ID
	}
}

func clone(a *core.Account) *core.Account {
	out := *a
	out.Identities = append([]core.LinkedIdentity(nil), a.Identities...)
	return &out
}
