package vault

import (
	"testing"

	"github.com/cuemby/warden/internal/wardenerr"
	"github.com/cuemby/warden/pkg/memory"
	"github.com/cuemby/warden/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) (*ClientState, types.ClientId) {
	t.Helper()
	client := types.DeriveClientId([]byte("test"), []byte("salt"))
	return NewClientState(client, BufferBackend{}, nil), client
}

func TestWriteReadCounterChain(t *testing.T) {
	cs, client := testClient(t)

	loc0 := types.CounterLocation("path", intPtr(0))
	loc1 := types.CounterLocation("path", intPtr(1))
	loc2 := types.CounterLocation("path", intPtr(2))

	require.NoError(t, cs.WriteToVault(loc0, []byte("test"), types.NewRecordHint("first hint")))
	plaintext, err := cs.ReadSecret(client, loc0)
	require.NoError(t, err)
	assert.Equal(t, "test", string(plaintext))

	require.NoError(t, cs.WriteToVault(loc1, []byte("another test"), types.NewRecordHint("another hint")))
	plaintext, err = cs.ReadSecret(client, loc1)
	require.NoError(t, err)
	assert.Equal(t, "another test", string(plaintext))

	require.NoError(t, cs.WriteToVault(loc2, []byte("yet another test"), types.NewRecordHint("yet another hint")))
	plaintext, err = cs.ReadSecret(client, loc2)
	require.NoError(t, err)
	assert.Equal(t, "yet another test", string(plaintext))

	// earlier records remain readable.
	plaintext, err = cs.ReadSecret(client, loc0)
	require.NoError(t, err)
	assert.Equal(t, "test", string(plaintext))

	ids, hints, err := cs.ListHintsAndIDs([]byte("path"))
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Equal(t, "first hint", hints[0].String())

	require.NoError(t, cs.DeleteData(loc0, true))
	plaintext, err = cs.ReadSecret(client, loc0)
	require.NoError(t, err)
	assert.Equal(t, "", string(plaintext))

	// revoking counter 0 must not renumber its successors.
	plaintext, err = cs.ReadSecret(client, loc1)
	require.NoError(t, err)
	assert.Equal(t, "another test", string(plaintext))

	ids, _, err = cs.ListHintsAndIDs([]byte("path"))
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	collected, err := cs.GarbageCollect([]byte("path"))
	require.NoError(t, err)
	assert.Equal(t, 1, collected)
}

func TestReadSecretWrongClientIsSoftEmpty(t *testing.T) {
	cs, _ := testClient(t)
	other := types.DeriveClientId([]byte("somebody-else"), []byte("salt"))

	loc := types.Generic("vault", "record")
	require.NoError(t, cs.WriteToVault(loc, []byte("secret"), types.NewRecordHint("hint")))

	plaintext, err := cs.ReadSecret(other, loc)
	require.NoError(t, err)
	assert.Empty(t, plaintext)
}

func TestReadSecretMissingIsSoftEmpty(t *testing.T) {
	cs, client := testClient(t)
	loc := types.Generic("no-such-vault", "no-such-record")

	plaintext, err := cs.ReadSecret(client, loc)
	require.NoError(t, err)
	assert.Empty(t, plaintext)
}

func TestVaultExistsAndRecordExists(t *testing.T) {
	cs, _ := testClient(t)
	loc := types.Generic("vault", "record")

	assert.False(t, cs.VaultExists(loc))
	assert.False(t, cs.RecordExists(loc))

	require.NoError(t, cs.WriteToVault(loc, []byte("secret"), types.NewRecordHint("hint")))

	assert.True(t, cs.VaultExists(loc))
	assert.True(t, cs.RecordExists(loc))
}

func TestGenericWriteOverwritesSamePath(t *testing.T) {
	cs, client := testClient(t)
	loc := types.Generic("vault", "record")

	require.NoError(t, cs.WriteToVault(loc, []byte("v1"), types.NewRecordHint("h1")))
	require.NoError(t, cs.WriteToVault(loc, []byte("v2"), types.NewRecordHint("h2")))

	plaintext, err := cs.ReadSecret(client, loc)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(plaintext))

	ids, hints, err := cs.ListHintsAndIDs([]byte("vault"))
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.Equal(t, "h2", hints[0].String())
}

type failingBackend struct{}

func (failingBackend) Alloc([]byte) (memory.LockedMemory, error) {
	return nil, wardenerr.ErrAllocationFailed
}

func TestWriteToVaultRollsBackOnAllocationFailure(t *testing.T) {
	client := types.DeriveClientId([]byte("test"), []byte("salt"))
	cs := NewClientState(client, failingBackend{}, nil)

	loc := types.Generic("vault", "record")
	err := cs.WriteToVault(loc, []byte("secret"), types.NewRecordHint("h"))
	require.Error(t, err)

	var terr *wardenerr.TransactionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, wardenerr.TransactionInner, terr.Kind)
	assert.ErrorIs(t, err, wardenerr.ErrAllocationFailed)

	// neither half of the two-step mutation survives.
	assert.False(t, cs.VaultExists(loc))
	_, ok := cs.Keys.get(loc.VaultId())
	assert.False(t, ok)
}

func intPtr(i int) *int { return &i }
