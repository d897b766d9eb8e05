package auth

import (
	"context"
	"sync"
	"time"
)

// The in-memory repositories back the test suite and database-free local
// runs. Lookups scan the maps, which is fine at that scale, and every
// read hands out a copy so callers never touch the stored values.

func clone[T any](v *T) *T {
	c := *v
	return &c
}

// InMemoryAccountRepository keeps accounts in a map keyed by account ID.
type InMemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewInMemoryAccountRepository creates an empty account store.
func NewInMemoryAccountRepository() *InMemoryAccountRepository {
	return &InMemoryAccountRepository{accounts: make(map[string]*Account)}
}

// Create stores the account. Uniqueness of usernames is the service's
// concern; the store takes what it is given.
func (r *InMemoryAccountRepository) Create(_ context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = clone(account)
	return nil
}

// FindByID returns the account with the given ID.
func (r *InMemoryAccountRepository) FindByID(_ context.Context, id string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return clone(account), nil
}

// FindByUsername returns the account with the given username.
func (r *InMemoryAccountRepository) FindByUsername(_ context.Context, username string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, account := range r.accounts {
		if account.Username == username {
			return clone(account), nil
		}
	}
	return nil, ErrAccountNotFound
}

// InMemoryRefreshTokenRepository keeps refresh tokens in a map keyed by
// the opaque token value.
type InMemoryRefreshTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]*RefreshToken
}

// NewInMemoryRefreshTokenRepository creates an empty refresh token store.
func NewInMemoryRefreshTokenRepository() *InMemoryRefreshTokenRepository {
	return &InMemoryRefreshTokenRepository{tokens: make(map[string]*RefreshToken)}
}

// Create stores a refresh token.
func (r *InMemoryRefreshTokenRepository) Create(_ context.Context, token *RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.Token] = clone(token)
	return nil
}

// FindByToken returns the stored token for the opaque value.
func (r *InMemoryRefreshTokenRepository) FindByToken(_ context.Context, tokenValue string) (*RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.tokens[tokenValue]
	if !ok {
		return nil, ErrInvalidRefreshToken
	}
	return clone(token), nil
}

// Revoke marks the token as revoked. Unknown and already-revoked tokens
// pass silently; revocation is idempotent.
func (r *InMemoryRefreshTokenRepository) Revoke(_ context.Context, tokenValue string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token, ok := r.tokens[tokenValue]; ok && token.RevokedAt == nil {
		now := time.Now()
		token.RevokedAt = &now
	}
	return nil
}

// RevokeAllForAccount revokes every live token belonging to the account.
func (r *InMemoryRefreshTokenRepository) RevokeAllForAccount(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, token := range r.tokens {
		if token.AccountID == accountID && token.RevokedAt == nil {
			token.RevokedAt = &now
		}
	}
	return nil
}
