package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// idSize is the width, in bytes, of every content-addressed identifier in
// the system: ClientId, VaultId, and RecordId.
const idSize = 24

// HintSize is the fixed width of a RecordHint.
const HintSize = 24

// ClientId stably identifies a tenant. It is derived deterministically
// from a client path and a salt path via DeriveClientId; equality is
// structural.
type ClientId [idSize]byte

// String renders the identifier as hex, for logging, metric labels and
// BoltStore database file naming. It never reveals secret material: ClientId is a content hash of
// a path and salt, not a secret itself.
func (c ClientId) String() string {
	return hex.EncodeToString(c[:])
}

// IsZero reports whether c is the zero ClientId.
func (c ClientId) IsZero() bool {
	return c == ClientId{}
}

// MarshalText encodes the identifier as hex. Ids appear as JSON map
// keys in the snapshot payload, and hex sorts the same way the raw
// bytes do, which keeps the encoded form deterministic.
func (c ClientId) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(c[:])), nil
}

// UnmarshalText decodes a hex-encoded identifier.
func (c *ClientId) UnmarshalText(text []byte) error {
	return decodeIDText(c[:], text)
}

// VaultId identifies a vault. It is derived from the vault path alone:
// scoping to a client happens in that client's own state maps, not in
// the hash, so a snapshot loaded under a different client id still
// resolves the same vaults.
type VaultId [idSize]byte

func (v VaultId) String() string { return hex.EncodeToString(v[:]) }

func (v VaultId) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(v[:])), nil
}

func (v *VaultId) UnmarshalText(text []byte) error {
	return decodeIDText(v[:], text)
}

// RecordId identifies a record within a vault.
type RecordId [idSize]byte

func (r RecordId) String() string { return hex.EncodeToString(r[:]) }

func (r RecordId) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(r[:])), nil
}

func (r *RecordId) UnmarshalText(text []byte) error {
	return decodeIDText(r[:], text)
}

func decodeIDText(dst, text []byte) error {
	if hex.DecodedLen(len(text)) != idSize {
		return fmt.Errorf("types: id must be %d hex-encoded bytes, got %d", idSize, len(text))
	}
	_, err := hex.Decode(dst, text)
	return err
}

// RecordHint is a non-secret, fixed-width caller-chosen tag returned in
// listings.
type RecordHint [HintSize]byte

// NewRecordHint truncates or zero-pads s into a RecordHint.
func NewRecordHint(s string) RecordHint {
	var h RecordHint
	copy(h[:], s)
	return h
}

func (h RecordHint) String() string {
	return string(bytes.TrimRight(h[:], "\x00"))
}

// deriveID hashes parts into an idSize-byte content address using
// BLAKE2b with a 24-byte digest. Each part is length-prefixed so that
// ("ab", "c") and ("a", "bc") never collide.
func deriveID(parts ...[]byte) [idSize]byte {
	hasher, err := blake2b.New(idSize, nil)
	if err != nil {
		// blake2b.New only fails for an out-of-range digest size; idSize
		// is a compile-time constant within range.
		panic(fmt.Sprintf("types: blake2b.New(%d): %v", idSize, err))
	}
	for _, p := range parts {
		var lenPrefix [8]byte
		for i := 0; i < 8; i++ {
			lenPrefix[i] = byte(len(p) >> (8 * i))
		}
		hasher.Write(lenPrefix[:])
		hasher.Write(p)
	}
	var out [idSize]byte
	copy(out[:], hasher.Sum(nil))
	return out
}

// DeriveClientId derives a ClientId from a client path and a salt path.
func DeriveClientId(clientPath, saltPath []byte) ClientId {
	return ClientId(deriveID(clientPath, saltPath))
}

// DeriveVaultId derives a VaultId from vaultPath.
func DeriveVaultId(vaultPath []byte) VaultId {
	return VaultId(deriveID(vaultPath))
}

// DeriveRecordId derives a RecordId scoped within vault from recordPath.
func DeriveRecordId(vault VaultId, recordPath []byte) RecordId {
	return RecordId(deriveID(vault[:], recordPath))
}

// LocationKind distinguishes the two ways a caller can address a record.
type LocationKind string

const (
	// LocationGeneric addresses a record by an explicit vault path and
	// record path.
	LocationGeneric LocationKind = "generic"

	// LocationCounter addresses a record by its insertion ordinal
	// within a vault: 0 is the position of the oldest record, and a
	// nil Counter means "append a new record". Ordinals are stable
	// under revocation (a revoked position reads empty rather than
	// renumbering its successors) and compact only when garbage
	// collection removes the revoked records.
	LocationCounter LocationKind = "counter"
)

// Location is the external handle callers use to address a record. It
// resolves to a (VaultId, RecordId) pair within the currently targeted
// client; see the vault package's resolveRead and resolveWrite.
type Location struct {
	Kind       LocationKind
	VaultPath  []byte
	RecordPath []byte // only set for LocationGeneric
	Counter    *int   // only set for LocationCounter; nil means append
}

// Generic builds a Location addressed by an explicit vault and record
// path pair.
func Generic(vaultPath, recordPath string) Location {
	return Location{Kind: LocationGeneric, VaultPath: []byte(vaultPath), RecordPath: []byte(recordPath)}
}

// CounterLocation builds a Location addressed by ordinal position.
// counter == nil means "append".
func CounterLocation(vaultPath string, counter *int) Location {
	return Location{Kind: LocationCounter, VaultPath: []byte(vaultPath), Counter: counter}
}

// AppendCounter is a convenience for CounterLocation(vaultPath, nil).
func AppendCounter(vaultPath string) Location {
	return CounterLocation(vaultPath, nil)
}

// VaultId resolves the Location's owning vault.
func (l Location) VaultId() VaultId {
	return DeriveVaultId(l.VaultPath)
}

// Key renders a Location as a stable string suitable for use as a map
// key, e.g. by the scratch store. Two Locations with equal fields
// always render identically regardless of Counter being nil.
func (l Location) Key() string {
	counter := "append"
	if l.Counter != nil {
		counter = fmt.Sprintf("%d", *l.Counter)
	}
	return fmt.Sprintf("%s|%s|%s|%s", l.Kind, l.VaultPath, l.RecordPath, counter)
}

// SortClientIds returns a copy of ids sorted lexicographically by their
// byte representation, matching the snapshot codec's deterministic
// serialization order.
func SortClientIds(ids []ClientId) []ClientId {
	out := make([]ClientId, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// SortVaultIds returns a copy of ids sorted lexicographically.
func SortVaultIds(ids []VaultId) []VaultId {
	out := make([]VaultId, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
