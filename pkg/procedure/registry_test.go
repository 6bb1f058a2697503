package procedure

import (
	"testing"

	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClientState(t *testing.T) *vault.ClientState {
	t.Helper()
	client := types.DeriveClientId([]byte("proc-test"), []byte("salt"))
	return vault.NewClientState(client, vault.BufferBackend{}, nil)
}

func TestRegistryRejectsDuplicateKind(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(CopyRecord{Hint: types.NewRecordHint("copy")}))
	err := r.Register(CopyRecord{Hint: types.NewRecordHint("copy2")})
	assert.Error(t, err)
}

func TestDispatchUnknownKind(t *testing.T) {
	r := NewRegistry()
	cs := testClientState(t)
	_, err := r.Dispatch(cs, "no_such_kind", nil, nil)
	assert.Error(t, err)
}

func TestCopyRecordProcedure(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(CopyRecord{Hint: types.NewRecordHint("copied")}))
	cs := testClientState(t)

	srcLoc := types.Generic("vault", "src")
	dstLoc := types.Generic("vault", "dst")
	require.NoError(t, cs.WriteToVault(srcLoc, []byte("top secret"), types.NewRecordHint("orig")))

	_, err := r.Dispatch(cs, "copy_record", map[string]types.Location{"source": srcLoc}, map[string]types.Location{"dest": dstLoc})
	require.NoError(t, err)

	plaintext, err := cs.ReadSecret(cs.Client, dstLoc)
	require.NoError(t, err)
	assert.Equal(t, "top secret", string(plaintext))
}

func TestCopyRecordMissingSourceIsProcedureError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(CopyRecord{Hint: types.NewRecordHint("copied")}))
	cs := testClientState(t)

	dstLoc := types.Generic("vault", "dst")
	_, err := r.Dispatch(cs, "copy_record", map[string]types.Location{"source": types.Generic("vault", "missing")}, map[string]types.Location{"dest": dstLoc})
	assert.Error(t, err)
}

func TestGetPublicKeyStubIsARead(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(GetPublicKeyStub{}))
	cs := testClientState(t)

	seedLoc := types.Generic("vault", "seed")
	require.NoError(t, cs.WriteToVault(seedLoc, []byte("seed material"), types.NewRecordHint("seed")))

	result, err := r.Dispatch(cs, "get_public_key_stub", map[string]types.Location{"seed": seedLoc}, nil)
	require.NoError(t, err)
	assert.Len(t, result.Public, 32)
	assert.NotEmpty(t, result.Public)
}
