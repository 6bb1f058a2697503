package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/warden/pkg/store"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")[:32]
}

func sameBackend(types.ClientId) (vault.MemoryBackend, store.Store) {
	return vault.BufferBackend{}, store.NewMemStore()
}

func TestWriteAndReadSnapshotRoundTrip(t *testing.T) {
	client := types.DeriveClientId([]byte("alice"), []byte("salt"))
	cs := vault.NewClientState(client, vault.BufferBackend{}, nil)

	loc := types.Generic("vault-a", "record-a")
	require.NoError(t, cs.WriteToVault(loc, []byte("hunter2"), types.NewRecordHint("hint")))
	require.NoError(t, cs.Store.Put(types.Generic("scratch", "k"), []byte("non-secret"), nil))

	states := map[types.ClientId]*vault.ClientState{client: cs}

	path := filepath.Join(t.TempDir(), "snapshot.bin")
	require.NoError(t, WriteAllToSnapshot(path, testKey(), states))

	loaded, err := ReadSnapshot(path, testKey(), sameBackend, nil)
	require.NoError(t, err)
	require.Contains(t, loaded, client)

	plaintext, err := loaded[client].ReadSecret(client, loc)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(plaintext))

	value, ok := loaded[client].Store.Get(types.Generic("scratch", "k"))
	assert.True(t, ok)
	assert.Equal(t, "non-secret", string(value))
}

func TestReadSnapshotRenameOnLoad(t *testing.T) {
	former := types.DeriveClientId([]byte("former"), []byte("salt"))
	renamed := types.DeriveClientId([]byte("renamed"), []byte("salt"))
	cs := vault.NewClientState(former, vault.BufferBackend{}, nil)

	loc := types.Generic("vault", "record")
	require.NoError(t, cs.WriteToVault(loc, []byte("payload"), types.NewRecordHint("hint")))

	states := map[types.ClientId]*vault.ClientState{former: cs}
	path := filepath.Join(t.TempDir(), "snapshot.bin")
	require.NoError(t, WriteAllToSnapshot(path, testKey(), states))

	loaded, err := ReadSnapshot(path, testKey(), sameBackend, map[types.ClientId]types.ClientId{former: renamed})
	require.NoError(t, err)

	assert.NotContains(t, loaded, former)
	require.Contains(t, loaded, renamed)

	plaintext, err := loaded[renamed].ReadSecret(renamed, loc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(plaintext))
}

func TestReadSnapshotWrongKeyFails(t *testing.T) {
	client := types.DeriveClientId([]byte("bob"), []byte("salt"))
	cs := vault.NewClientState(client, vault.BufferBackend{}, nil)
	states := map[types.ClientId]*vault.ClientState{client: cs}

	path := filepath.Join(t.TempDir(), "snapshot.bin")
	require.NoError(t, WriteAllToSnapshot(path, testKey(), states))

	wrongKey := make([]byte, 32)
	_, err := ReadSnapshot(path, wrongKey, sameBackend, nil)
	require.Error(t, err)
}

func TestReadSnapshotBadMagicFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.bin")
	require.NoError(t, os.WriteFile(path, []byte("not a snapshot at all"), 0o600))

	_, err := ReadSnapshot(path, testKey(), sameBackend, nil)
	require.Error(t, err)
}
