package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStorage runs the behaviour every Storage implementation shares
func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "toyrent-storage", []byte(`{"state":{}}`)))
	got, err := s.Get(ctx, "toyrent-storage")
	require.NoError(t, err)
	assert.Equal(t, `{"state":{}}`, string(got))

	require.NoError(t, s.Set(ctx, "toyrent-storage", []byte(`{"state":{"user":null}}`)))
	got, err = s.Get(ctx, "toyrent-storage")
	require.NoError(t, err)
	assert.Equal(t, `{"state":{"user":null}}`, string(got))

	require.NoError(t, s.Set(ctx, AccessTokenKey, []byte("a")))
	require.NoError(t, s.Delete(ctx, AccessTokenKey))
	_, err = s.Get(ctx, AccessTokenKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "never-written"))

	require.NoError(t, s.Set(ctx, RefreshTokenKey, []byte("r")))
	require.NoError(t, s.Clear(ctx))
	_, err = s.Get(ctx, "toyrent-storage")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, RefreshTokenKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStorage(t, s)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	v := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", v))
	v[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
