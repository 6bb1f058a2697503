package snapshot

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/cuemby/warden/internal/wardenerr"
	"github.com/cuemby/warden/pkg/store"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/vault"
	"golang.org/x/crypto/chacha20poly1305"
)

// payload is the deterministically-ordered JSON document sealed inside
// a snapshot: one ClientSnapshot per client, sorted by ClientId.
type payload struct {
	Clients []vault.ClientSnapshot `json:"clients"`
}

// normalize sorts snaps by ClientId and, within each, its vaults by
// VaultId and its store entries by Location key, so two calls encoding
// the same logical state always produce byte-identical ciphertext
// input. Records keep their insertion order. Export already emits
// vaults sorted, but merged snapshots arrive here with one side's
// vaults appended after the other's.
func normalize(snaps []vault.ClientSnapshot) []vault.ClientSnapshot {
	out := make([]vault.ClientSnapshot, len(snaps))
	copy(out, snaps)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Client.String() < out[j].Client.String()
	})
	for i := range out {
		sort.Slice(out[i].Vaults, func(a, b int) bool {
			return out[i].Vaults[a].ID.String() < out[i].Vaults[b].ID.String()
		})
		sort.Slice(out[i].Store, func(a, b int) bool {
			return out[i].Store[a].Loc.Key() < out[i].Store[b].Loc.Key()
		})
	}
	return out
}

// WriteClientSnapshots encrypts snaps under key and writes them
// atomically to path: the ciphertext is written to a sibling temp
// file first, then renamed into place, so a crash mid-write never
// corrupts an existing snapshot. This is the pure, ClientState-free
// half of the codec: pkg/sync uses it directly to write a merged
// snapshot without ever allocating locked memory.
func WriteClientSnapshots(path string, key []byte, snaps []vault.ClientSnapshot) error {
	p := payload{Clients: normalize(snaps)}
	plaintext, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("snapshot: marshal payload: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("snapshot: build cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("snapshot: generate nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	frame := buildFrame(nonce, ciphertext)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, frame, 0o600); err != nil {
		return fmt.Errorf("%w: write snapshot temp file: %v", wardenerr.ErrFileSystemError, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename snapshot into place: %v", wardenerr.ErrFileSystemError, err)
	}
	return nil
}

// ReadClientSnapshots decrypts and decodes the snapshot at path under
// key, without reconstructing any ClientState. This is the pure half
// of the codec pkg/sync merges over.
func ReadClientSnapshots(path string, key []byte) ([]vault.ClientSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read snapshot file: %v", wardenerr.ErrFileSystemError, err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("snapshot: build cipher: %w", err)
	}

	nonce, ciphertext, err := parseFrame(data, aead.NonceSize())
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot authentication failed", wardenerr.ErrDecryptionFailed)
	}

	var p payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal payload: %w", err)
	}
	return p.Clients, nil
}

// WriteAllToSnapshot encrypts the full state of states under key and
// writes it atomically to path.
func WriteAllToSnapshot(path string, key []byte, states map[types.ClientId]*vault.ClientState) error {
	snaps := make([]vault.ClientSnapshot, 0, len(states))
	for id, cs := range states {
		snap, err := cs.Export()
		if err != nil {
			return fmt.Errorf("snapshot: export client %s: %w", id, err)
		}
		snaps = append(snaps, snap)
	}
	return WriteClientSnapshots(path, key, snaps)
}

// Backends supplies the per-client collaborators ReadSnapshot needs to
// reconstruct a ClientState: a MemoryBackend for record ciphertext and
// a scratch Store for non-secret data. Callers that want every client
// on the same backend can return the same values for every id.
type Backends func(client types.ClientId) (vault.MemoryBackend, store.Store)

// ReadSnapshot decrypts and decodes the snapshot at path under key,
// reconstructing one ClientState per client it contains. If renames
// maps a decoded client id to a different one, that client's state is
// re-keyed and reconstructed under the new id instead: the mechanism
// by which a snapshot recorded under one client path can be loaded and
// addressed under another.
func ReadSnapshot(path string, key []byte, backends Backends, renames map[types.ClientId]types.ClientId) (map[types.ClientId]*vault.ClientState, error) {
	snaps, err := ReadClientSnapshots(path, key)
	if err != nil {
		return nil, err
	}

	out := make(map[types.ClientId]*vault.ClientState, len(snaps))
	for _, snap := range snaps {
		client := snap.Client
		if renames != nil {
			if renamed, ok := renames[client]; ok {
				snap = snap.Rekey(renamed)
				client = renamed
			}
		}

		backend, scratch := backends(client)
		cs, err := vault.Import(snap, backend, scratch)
		if err != nil {
			return nil, fmt.Errorf("snapshot: restore client %s: %w", client, err)
		}
		out[client] = cs
	}

	return out, nil
}
