package vault

import (
	"crypto/rand"
	"fmt"

	"github.com/cuemby/warden/internal/wardenerr"
	"github.com/cuemby/warden/pkg/metrics"
	"github.com/cuemby/warden/pkg/types"
)

const vaultKeySize = 32

// resolveWrite resolves loc to a (vault, recordId, isNewRecord) triple
// for a write, creating the vault and/or allocating a fresh
// RecordId as needed. It never returns ErrRecordNotFound: writes
// always succeed in producing a target record.
func (cs *ClientState) resolveWrite(loc types.Location) (*Vault, types.RecordId, bool) {
	vaultID := loc.VaultId()
	v := cs.vaultOrCreate(vaultID)

	switch loc.Kind {
	case types.LocationGeneric:
		id := types.DeriveRecordId(vaultID, loc.RecordPath)
		_, exists := v.records[id]
		return v, id, !exists

	case types.LocationCounter:
		// counters bind to insertion ordinals in v.order, revoked
		// entries included: revoking a record must not renumber its
		// successors.
		if loc.Counter == nil || *loc.Counter < 0 || *loc.Counter >= len(v.order) {
			// append: derive a RecordId unique within this vault from
			// its insertion ordinal, moving past any ordinal whose id a
			// record still holds (GarbageCollect shortens v.order).
			n := len(v.order)
			id := types.DeriveRecordId(vaultID, []byte(fmt.Sprintf("counter:%d", n)))
			for {
				if _, taken := v.records[id]; !taken {
					break
				}
				n++
				id = types.DeriveRecordId(vaultID, []byte(fmt.Sprintf("counter:%d", n)))
			}
			return v, id, true
		}
		return v, v.order[*loc.Counter], false

	default:
		id := types.DeriveRecordId(vaultID, loc.RecordPath)
		return v, id, true
	}
}

// resolveRead resolves loc to an existing (vault, recordId) pair for
// a read, delete, or existence check. It returns ErrVaultNotFound or
// ErrRecordNotFound when resolution cannot find a live target,
// including an out-of-range Counter.
func (cs *ClientState) resolveRead(loc types.Location) (*Vault, types.RecordId, error) {
	vaultID := loc.VaultId()
	v, ok := cs.vaultFor(vaultID)
	if !ok {
		return nil, types.RecordId{}, wardenerr.ErrVaultNotFound
	}

	switch loc.Kind {
	case types.LocationGeneric:
		id := types.DeriveRecordId(vaultID, loc.RecordPath)
		r, ok := v.records[id]
		if !ok || r.Revoked {
			return v, types.RecordId{}, wardenerr.ErrRecordNotFound
		}
		return v, id, nil

	case types.LocationCounter:
		// same ordinal binding as resolveWrite: index into the full
		// insertion-order slice, then reject a revoked occupant. A
		// counter must keep naming the position it was written at,
		// so a read at counter 0 after revoking counter 0 is
		// soft-empty, not a silent shift onto the next record.
		if loc.Counter == nil || *loc.Counter < 0 || *loc.Counter >= len(v.order) {
			return v, types.RecordId{}, wardenerr.ErrRecordNotFound
		}
		id := v.order[*loc.Counter]
		r, ok := v.records[id]
		if !ok || r.Revoked {
			return v, types.RecordId{}, wardenerr.ErrRecordNotFound
		}
		return v, id, nil

	default:
		return v, types.RecordId{}, wardenerr.ErrRecordNotFound
	}
}

// WriteToVault creates the vault and its key if absent, then appends
// or overwrites the record addressed by loc. Creating a vault is a
// two-step mutation (keystore entry plus the vault itself); a failure
// partway through rolls both back and surfaces as a TransactionError,
// so a vault key never exists without a reachable vault record path
// behind it.
func (cs *ClientState) WriteToVault(loc types.Location, payload []byte, hint types.RecordHint) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	vaultID := loc.VaultId()
	key, hadKey := cs.Keys.get(vaultID)
	if !hadKey {
		key = make([]byte, vaultKeySize)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("vault: generate vault key: %w", err)
		}
		cs.Keys.put(vaultID, key)
	}
	_, hadVault := cs.vaultFor(vaultID)

	rollback := func() {
		if !hadKey {
			cs.Keys.delete(vaultID)
		}
		if !hadVault {
			delete(cs.vaults, vaultID)
		}
	}

	cipher, err := recordCipherFor(key)
	if err != nil {
		rollback()
		return wardenerr.ToInner(fmt.Errorf("vault: build record cipher: %w", err))
	}
	ciphertext, err := cipher.Seal(payload)
	if err != nil {
		rollback()
		return wardenerr.ToInner(fmt.Errorf("vault: seal record payload: %w", err))
	}

	v, id, isNew := cs.resolveWrite(loc)
	locked, err := cs.backend.Alloc(ciphertext)
	if err != nil {
		rollback()
		return wardenerr.ToInner(fmt.Errorf("vault: allocate locked memory: %w", err))
	}

	if isNew {
		v.records[id] = &Record{ID: id, Hint: hint, Cipher: locked}
		v.order = append(v.order, id)
		metrics.VaultRecordsTotal.WithLabelValues(cs.Client.String()).Inc()
		return nil
	}

	old := v.records[id]
	if old != nil {
		if zerr := old.Cipher.Zeroize(); zerr != nil {
			metrics.LockedMemoryZeroizeFailures.Inc()
		}
		if old.Revoked {
			// overwriting a revoked position brings it back to life.
			metrics.VaultRecordsRevoked.WithLabelValues(cs.Client.String()).Dec()
			metrics.VaultRecordsTotal.WithLabelValues(cs.Client.String()).Inc()
		}
	}
	v.records[id] = &Record{ID: id, Hint: hint, Cipher: locked}
	return nil
}

// ReadSecret returns the plaintext addressed by loc within client's
// state, but only if client matches the state's own client id.
// Missing vaults, missing records, revoked records, and a mismatched
// client all produce empty bytes rather than an error: read_secret is
// intentionally soft. Use VaultExists or RecordExists for a hard
// presence check.
func (cs *ClientState) ReadSecret(client types.ClientId, loc types.Location) ([]byte, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if client != cs.Client {
		return []byte{}, nil
	}

	v, id, err := cs.resolveRead(loc)
	if err != nil {
		return []byte{}, nil
	}
	r := v.records[id]

	vaultID := loc.VaultId()
	key, ok := cs.Keys.get(vaultID)
	if !ok {
		return []byte{}, nil
	}
	cipher, err := recordCipherFor(key)
	if err != nil {
		return nil, fmt.Errorf("vault: build record cipher: %w", err)
	}

	var plaintext []byte
	err = r.Cipher.View(func(ciphertext []byte) error {
		p, err := cipher.Open(ciphertext)
		if err != nil {
			return err
		}
		plaintext = p
		return nil
	})
	if err != nil {
		return []byte{}, nil
	}
	return plaintext, nil
}

// DeleteData marks the record at loc revoked, if revoke is true. A
// revoked record is excluded from reads and listings but its locked
// memory is not zeroized until GarbageCollect runs. revoke=false is a
// no-op.
func (cs *ClientState) DeleteData(loc types.Location, revoke bool) error {
	if !revoke {
		return nil
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	v, id, err := cs.resolveRead(loc)
	if err != nil {
		return nil
	}
	v.records[id].Revoked = true
	metrics.VaultRecordsTotal.WithLabelValues(cs.Client.String()).Dec()
	metrics.VaultRecordsRevoked.WithLabelValues(cs.Client.String()).Inc()
	return nil
}

// GarbageCollect drops and zeroizes every revoked record in the vault
// addressed by vaultPath.
func (cs *ClientState) GarbageCollect(vaultPath []byte) (collected int, err error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	vaultID := types.DeriveVaultId(vaultPath)
	v, ok := cs.vaultFor(vaultID)
	if !ok {
		return 0, wardenerr.ErrVaultNotFound
	}

	survivors := v.order[:0:0]
	for _, id := range v.order {
		r := v.records[id]
		if r.Revoked {
			if zerr := r.Cipher.Zeroize(); zerr != nil {
				metrics.LockedMemoryZeroizeFailures.Inc()
				if err == nil {
					err = fmt.Errorf("vault: zeroize revoked record: %w", zerr)
				}
			}
			delete(v.records, id)
			collected++
			continue
		}
		survivors = append(survivors, id)
	}
	v.order = survivors
	metrics.VaultRecordsRevoked.WithLabelValues(cs.Client.String()).Sub(float64(collected))
	return collected, err
}

// ListHintsAndIDs returns (RecordId, RecordHint) pairs for every
// non-revoked record in the vault addressed by vaultPath, in
// insertion order.
func (cs *ClientState) ListHintsAndIDs(vaultPath []byte) ([]types.RecordId, []types.RecordHint, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	vaultID := types.DeriveVaultId(vaultPath)
	v, ok := cs.vaultFor(vaultID)
	if !ok {
		return nil, nil, wardenerr.ErrVaultNotFound
	}

	live := v.liveRecords()
	ids := make([]types.RecordId, len(live))
	hints := make([]types.RecordHint, len(live))
	for i, r := range live {
		ids[i] = r.ID
		hints[i] = r.Hint
	}
	return ids, hints, nil
}

// VaultExists reports whether loc's vault is present.
func (cs *ClientState) VaultExists(loc types.Location) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	_, ok := cs.vaultFor(loc.VaultId())
	return ok
}

// RecordExists reports whether loc resolves to a live, non-revoked
// record.
func (cs *ClientState) RecordExists(loc types.Location) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	_, _, err := cs.resolveRead(loc)
	return err == nil
}
