package vault

import (
	"sync"

	"github.com/cuemby/warden/pkg/memory"
	"github.com/cuemby/warden/pkg/metrics"
	"github.com/cuemby/warden/pkg/security"
	"github.com/cuemby/warden/pkg/store"
	"github.com/cuemby/warden/pkg/types"
)

// Record is one entry in a vault: its id, its caller-chosen hint, and
// its ciphertext held as locked memory. Revoked records are excluded
// from reads and listings until GarbageCollect zeroizes and drops
// them.
type Record struct {
	ID      types.RecordId
	Hint    types.RecordHint
	Cipher  memory.LockedMemory
	Revoked bool
}

// Vault is an ordered collection of records, encrypted at rest under
// a vault key held in the owning client's Keystore.
type Vault struct {
	ID      types.VaultId
	order   []types.RecordId // insertion order, for counter resolution and listing
	records map[types.RecordId]*Record
}

func newVault(id types.VaultId) *Vault {
	return &Vault{ID: id, records: make(map[types.RecordId]*Record)}
}

// liveRecords returns non-revoked records in insertion order.
func (v *Vault) liveRecords() []*Record {
	out := make([]*Record, 0, len(v.order))
	for _, id := range v.order {
		if r := v.records[id]; r != nil && !r.Revoked {
			out = append(out, r)
		}
	}
	return out
}

// Keystore maps a VaultId to the 32-byte key that encrypts that
// vault's records.
type Keystore struct {
	mu   sync.Mutex
	keys map[types.VaultId][]byte
}

func newKeystore() *Keystore {
	return &Keystore{keys: make(map[types.VaultId][]byte)}
}

func (k *Keystore) get(id types.VaultId) ([]byte, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	key, ok := k.keys[id]
	return key, ok
}

func (k *Keystore) put(id types.VaultId, key []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[id] = key
}

func (k *Keystore) delete(id types.VaultId) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, id)
}

// VaultIds returns the keystore's known vault ids, sorted, so callers
// get a deterministic iteration order (used by the snapshot codec).
func (k *Keystore) VaultIds() []types.VaultId {
	k.mu.Lock()
	defer k.mu.Unlock()
	ids := make([]types.VaultId, 0, len(k.keys))
	for id := range k.keys {
		ids = append(ids, id)
	}
	return types.SortVaultIds(ids)
}

// ClientState is the in-process state owned by one client actor: its
// vaults, its keystore, and its non-secret scratch store.
type ClientState struct {
	mu      sync.Mutex
	Client  types.ClientId
	Keys    *Keystore
	vaults  map[types.VaultId]*Vault
	Store   store.Store
	backend MemoryBackend
}

// MemoryBackend chooses which LockedMemory implementation a
// ClientState allocates record ciphertext into.
type MemoryBackend interface {
	// Alloc wraps plaintext (here: record ciphertext) in a
	// LockedMemory of this backend's kind.
	Alloc(payload []byte) (memory.LockedMemory, error)
}

// BufferBackend allocates guard-paged, mlocked Buffers.
type BufferBackend struct{}

func (BufferBackend) Alloc(payload []byte) (memory.LockedMemory, error) {
	metrics.LockedMemoryAllocations.WithLabelValues("buffer").Inc()
	return memory.NewBuffer(payload)
}

// FileBackend spills ciphertext to a zero-permission file under Dir
// between accesses.
type FileBackend struct{ Dir string }

func (b FileBackend) Alloc(payload []byte) (memory.LockedMemory, error) {
	metrics.LockedMemoryAllocations.WithLabelValues("file").Inc()
	return memory.NewFileMemory(b.Dir, payload)
}

// NonContiguousBackend splits ciphertext into XOR shards.
type NonContiguousBackend struct{}

func (NonContiguousBackend) Alloc(payload []byte) (memory.LockedMemory, error) {
	metrics.LockedMemoryAllocations.WithLabelValues("noncontiguous").Inc()
	return memory.NewNonContiguous(payload)
}

// NewClientState creates empty state for client, allocating record
// ciphertext through backend and holding scratch data in scratch.
func NewClientState(client types.ClientId, backend MemoryBackend, scratch store.Store) *ClientState {
	if backend == nil {
		backend = BufferBackend{}
	}
	if scratch == nil {
		scratch = store.NewMemStore()
	}
	return &ClientState{
		Client:  client,
		Keys:    newKeystore(),
		vaults:  make(map[types.VaultId]*Vault),
		Store:   scratch,
		backend: backend,
	}
}

func (cs *ClientState) vaultFor(id types.VaultId) (*Vault, bool) {
	v, ok := cs.vaults[id]
	return v, ok
}

func (cs *ClientState) vaultOrCreate(id types.VaultId) *Vault {
	v, ok := cs.vaults[id]
	if !ok {
		v = newVault(id)
		cs.vaults[id] = v
	}
	return v
}

func recordCipherFor(key []byte) (*security.RecordCipher, error) {
	return security.NewRecordCipher(key)
}
