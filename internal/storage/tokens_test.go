package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	ts := NewTokenStore(mem)

	got, err := ts.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, Tokens{}, got)

	require.NoError(t, ts.Save(ctx, Tokens{Access: "a1", Refresh: "r1"}))
	got, err = ts.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, Tokens{Access: "a1", Refresh: "r1"}, got)

	raw, err := mem.Get(ctx, AccessTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "a1", string(raw))

	require.NoError(t, ts.Save(ctx, Tokens{Access: "a2"}))
	_, err = mem.Get(ctx, RefreshTokenKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

type failingStorage struct{ *MemoryStore }

func (failingStorage) Set(context.Context, string, []byte) error { return errors.New("disk full") }

func TestTokenStore_SaveAggregatesErrors(t *testing.T) {
	ts := NewTokenStore(failingStorage{NewMemoryStore()})

	err := ts.Save(context.Background(), Tokens{Access: "a", Refresh: "r"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
}
