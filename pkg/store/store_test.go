package store

import (
	"testing"
	"time"

	"github.com/cuemby/warden/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreGetPut(t *testing.T) {
	s := NewMemStore()
	loc := types.Generic("vault-a", "record-a")

	_, ok := s.Get(loc)
	assert.False(t, ok)

	require.NoError(t, s.Put(loc, []byte("scratch value"), nil))

	value, ok := s.Get(loc)
	require.True(t, ok)
	assert.Equal(t, []byte("scratch value"), value)
	assert.Equal(t, 1, s.Len())
}

func TestMemStoreTTLExpiry(t *testing.T) {
	s := NewMemStore()
	loc := types.Generic("vault-a", "ephemeral")
	ttl := time.Millisecond

	require.NoError(t, s.Put(loc, []byte("short lived"), &ttl))
	time.Sleep(5 * time.Millisecond)

	_, ok := s.Get(loc)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestMemStoreDelete(t *testing.T) {
	s := NewMemStore()
	loc := types.Generic("vault-a", "record-a")
	require.NoError(t, s.Put(loc, []byte("value"), nil))

	require.NoError(t, s.Delete(loc))
	_, ok := s.Get(loc)
	assert.False(t, ok)
}

func TestBoltStoreGetPutDelete(t *testing.T) {
	dir := t.TempDir()
	client := types.DeriveClientId([]byte("client-path"), []byte("salt"))

	bs, err := NewBoltStore(dir, client)
	require.NoError(t, err)
	defer bs.Close()

	loc := types.Generic("vault-a", "record-a")
	_, ok := bs.Get(loc)
	assert.False(t, ok)

	require.NoError(t, bs.Put(loc, []byte("persisted value"), nil))

	value, ok := bs.Get(loc)
	require.True(t, ok)
	assert.Equal(t, []byte("persisted value"), value)
	assert.Equal(t, 1, bs.Len())

	require.NoError(t, bs.Delete(loc))
	_, ok = bs.Get(loc)
	assert.False(t, ok)
}

func TestBoltStoreTTLExpiry(t *testing.T) {
	dir := t.TempDir()
	client := types.DeriveClientId([]byte("client-path"), []byte("salt"))

	bs, err := NewBoltStore(dir, client)
	require.NoError(t, err)
	defer bs.Close()

	loc := types.Generic("vault-a", "ephemeral")
	ttl := time.Millisecond
	require.NoError(t, bs.Put(loc, []byte("short lived"), &ttl))
	time.Sleep(5 * time.Millisecond)

	_, ok := bs.Get(loc)
	assert.False(t, ok)
}
