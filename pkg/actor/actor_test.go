package actor

import (
	"sync"
	"testing"

	"github.com/cuemby/warden/internal/wardenerr"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testActor(t *testing.T) (*Actor, types.ClientId) {
	t.Helper()
	client := types.DeriveClientId([]byte("test"), []byte("salt"))
	a := NewActor(client, nil)
	require.NoError(t, a.Activate(vault.NewClientState(client, vault.BufferBackend{}, nil)))
	return a, client
}

func TestActorLifecycle(t *testing.T) {
	a, _ := testActor(t)
	assert.Equal(t, Active, a.State())

	require.NoError(t, a.Kill(nil))
	assert.Equal(t, Killed, a.State())

	// killing twice is a no-op.
	require.NoError(t, a.Kill(nil))
}

func TestActivateTwiceFails(t *testing.T) {
	a, client := testActor(t)
	err := a.Activate(vault.NewClientState(client, vault.BufferBackend{}, nil))
	assert.ErrorIs(t, err, wardenerr.ErrActorAlreadyActive)
}

func TestSubmitAfterKillFails(t *testing.T) {
	a, _ := testActor(t)
	require.NoError(t, a.Kill(nil))

	err := a.WriteToVault(types.Generic("v", "r"), []byte("x"), types.NewRecordHint("h"))
	assert.ErrorIs(t, err, wardenerr.ErrActorNotActive)
}

func TestKillWithPersistExportsState(t *testing.T) {
	a, client := testActor(t)
	require.NoError(t, a.WriteToVault(types.Generic("v", "r"), []byte("secret"), types.NewRecordHint("h")))

	var captured vault.ClientSnapshot
	err := a.Kill(func(c types.ClientId, snap vault.ClientSnapshot) error {
		captured = snap
		assert.Equal(t, client, c)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, captured.Vaults, 1)
}

func TestMailboxSerializesConcurrentWrites(t *testing.T) {
	a, _ := testActor(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = a.WriteToVault(types.AppendCounter("concurrent"), []byte("v"), types.NewRecordHint("h"))
		}()
	}
	wg.Wait()

	ids, _, err := a.ListHintsAndIDs([]byte("concurrent"))
	require.NoError(t, err)
	assert.Len(t, ids, 20, "every concurrent append must land exactly once under the mailbox's serial ordering")
}

func TestReadWriteStore(t *testing.T) {
	a, _ := testActor(t)
	loc := types.Generic("scratch", "note")

	_, found, err := a.ReadStore(loc)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, a.WriteStore(loc, []byte("hello"), nil))
	value, found, err := a.ReadStore(loc)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("hello"), value)
}

func TestExportDoesNotKillActor(t *testing.T) {
	a, _ := testActor(t)
	require.NoError(t, a.WriteToVault(types.Generic("v", "r"), []byte("x"), types.NewRecordHint("h")))

	snap, err := a.Export()
	require.NoError(t, err)
	assert.Len(t, snap.Vaults, 1)
	assert.Equal(t, Active, a.State())
}
