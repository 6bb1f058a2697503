package vault

import (
	"fmt"
	"time"

	"github.com/cuemby/warden/pkg/metrics"
	"github.com/cuemby/warden/pkg/store"
	"github.com/cuemby/warden/pkg/types"
)

// RecordSnapshot is the serializable view of one Record: its ciphertext
// lifted out of locked memory for the duration of a snapshot write.
type RecordSnapshot struct {
	ID         types.RecordId   `json:"id"`
	Hint       types.RecordHint `json:"hint"`
	Ciphertext []byte           `json:"ciphertext"`
	Revoked    bool             `json:"revoked"`
}

// VaultSnapshot is the serializable view of one Vault, records in
// insertion order.
type VaultSnapshot struct {
	ID      types.VaultId    `json:"id"`
	Records []RecordSnapshot `json:"records"`
}

// StoreEntrySnapshot is the serializable view of one scratch store
// entry, keyed by its original Location rather than an opaque string.
type StoreEntrySnapshot struct {
	Loc       types.Location `json:"location"`
	Value     []byte         `json:"value"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
}

// ClientSnapshot is the serializable view of an entire ClientState:
// its keystore, vaults, and scratch store. It never holds anything
// still wrapped in locked memory; field order here is what the
// snapshot codec's JSON encoder walks, so callers producing one must
// already have fixed a deterministic vault and record order.
type ClientSnapshot struct {
	Client types.ClientId           `json:"client"`
	Keys   map[types.VaultId][]byte `json:"keys"`
	Vaults []VaultSnapshot          `json:"vaults"`
	Store  []StoreEntrySnapshot     `json:"store"`
}

// Export lifts cs's entire state into a ClientSnapshot suitable for
// the snapshot codec to serialize. Vaults and records come out in
// deterministic order; store entries come out in the store's Range
// order, which is not sorted. Record
// ciphertext is copied out of locked memory, not decrypted: the
// snapshot's own encryption layer is the only thing protecting it at
// rest from here on.
func (cs *ClientState) Export() (ClientSnapshot, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	snap := ClientSnapshot{
		Client: cs.Client,
		Keys:   make(map[types.VaultId][]byte, len(cs.vaults)),
	}

	for _, vaultID := range cs.Keys.VaultIds() {
		key, ok := cs.Keys.get(vaultID)
		if !ok {
			continue
		}
		snap.Keys[vaultID] = append([]byte(nil), key...)

		v, ok := cs.vaults[vaultID]
		if !ok {
			continue
		}
		vs := VaultSnapshot{ID: vaultID}
		for _, id := range v.order {
			r := v.records[id]
			if r == nil {
				continue
			}
			var ciphertext []byte
			err := r.Cipher.View(func(raw []byte) error {
				ciphertext = append([]byte(nil), raw...)
				return nil
			})
			if err != nil {
				return ClientSnapshot{}, fmt.Errorf("vault: export record %s: %w", id, err)
			}
			vs.Records = append(vs.Records, RecordSnapshot{
				ID:         id,
				Hint:       r.Hint,
				Ciphertext: ciphertext,
				Revoked:    r.Revoked,
			})
		}
		snap.Vaults = append(snap.Vaults, vs)
	}

	if cs.Store != nil {
		cs.Store.Range(func(loc types.Location, e store.Entry) bool {
			snap.Store = append(snap.Store, StoreEntrySnapshot{
				Loc:       loc,
				Value:     append([]byte(nil), e.Value...),
				ExpiresAt: e.ExpiresAt,
			})
			return true
		})
	}

	return snap, nil
}

// Import rebuilds a ClientState from snap, allocating record
// ciphertext through backend and scratch storage through scratch. It
// is the inverse of Export, used to restore a client from a loaded
// snapshot.
func Import(snap ClientSnapshot, backend MemoryBackend, scratch store.Store) (*ClientState, error) {
	cs := NewClientState(snap.Client, backend, scratch)

	for vaultID, key := range snap.Keys {
		cs.Keys.put(vaultID, append([]byte(nil), key...))
	}

	live, revoked := 0, 0
	for _, vs := range snap.Vaults {
		v := cs.vaultOrCreate(vs.ID)
		for _, rs := range vs.Records {
			locked, err := cs.backend.Alloc(append([]byte(nil), rs.Ciphertext...))
			if err != nil {
				return nil, fmt.Errorf("vault: import record %s: %w", rs.ID, err)
			}
			v.records[rs.ID] = &Record{ID: rs.ID, Hint: rs.Hint, Cipher: locked, Revoked: rs.Revoked}
			v.order = append(v.order, rs.ID)
			if rs.Revoked {
				revoked++
			} else {
				live++
			}
		}
	}
	metrics.VaultRecordsTotal.WithLabelValues(cs.Client.String()).Add(float64(live))
	metrics.VaultRecordsRevoked.WithLabelValues(cs.Client.String()).Add(float64(revoked))

	for _, e := range snap.Store {
		var ttl *time.Duration
		if e.ExpiresAt != nil {
			d := time.Until(*e.ExpiresAt)
			ttl = &d
		}
		if err := cs.Store.Put(e.Loc, e.Value, ttl); err != nil {
			return nil, fmt.Errorf("vault: import store entry: %w", err)
		}
	}

	return cs, nil
}

// Rekey replaces the client id a ClientSnapshot is stamped with,
// leaving its vaults, records, and store untouched. It underlies the
// snapshot codec's rename-on-load support: a snapshot taken under one
// client path can be loaded and addressed under another.
func (snap ClientSnapshot) Rekey(newClient types.ClientId) ClientSnapshot {
	snap.Client = newClient
	return snap
}
