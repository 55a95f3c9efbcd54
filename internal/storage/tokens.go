package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Fixed keys the bearer tokens are stored under
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// Tokens is the bearer token pair issued by the backend
type Tokens struct {
	Access  string
	Refresh string
}

// TokenStore reads and writes the token pair in a Storage
type TokenStore struct {
	storage Storage
}

// NewTokenStore creates a TokenStore on top of s
func NewTokenStore(s Storage) *TokenStore {
	return &TokenStore{storage: s}
}

// Tokens returns the stored pair; missing keys yield empty strings
func (t *TokenStore) Tokens(ctx context.Context) (Tokens, error) {
	var out Tokens
	var err error
	if out.Access, err = t.get(ctx, AccessTokenKey); err != nil {
		return Tokens{}, err
	}
	if out.Refresh, err = t.get(ctx, RefreshTokenKey); err != nil {
		return Tokens{}, err
	}
	return out, nil
}

// Save stores both tokens. An empty token deletes its key.
func (t *TokenStore) Save(ctx context.Context, tokens Tokens) error {
	var result *multierror.Error
	if err := t.put(ctx, AccessTokenKey, tokens.Access); err != nil {
		result = multierror.Append(result, err)
	}
	if err := t.put(ctx, RefreshTokenKey, tokens.Refresh); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (t *TokenStore) get(ctx context.Context, key string) (string, error) {
	v, err := t.storage.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(v), nil
}

func (t *TokenStore) put(ctx context.Context, key, value string) error {
	if value == "" {
		return t.storage.Delete(ctx, key)
	}
	return t.storage.Set(ctx, key, []byte(value))
}
