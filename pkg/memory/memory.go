// Package memory implements Warden's locked-memory primitives: byte
// regions that never leave plaintext lying around in ordinary,
// swappable process memory.
//
// Three backends are provided. Buffer mlocks an anonymous mmap region and
// surrounds it with PROT_NONE guard pages, for secrets that must stay
// resident and fast to access. FileMemory spills a secret to a
// zero-permission file between accesses, for callers that would
// rather trade latency for a smaller memory footprint. NonContiguous
// splits a secret into XOR shards held in separate Buffers, so no
// single allocation ever holds the reconstructible plaintext.
//
// All three share the LockedMemory contract: a region is allocated
// once, read via a scoped callback that the region decides how to
// expose (unlocking, decrypting, or reassembling only for the
// callback's duration), replaced wholesale via Update, and wiped via
// Zeroize. None expose their plaintext through String or a
// zerolog.LogObjectMarshaler; logging a LockedMemory value always
// renders a fixed placeholder.
package memory

import (
	"fmt"

	"github.com/cuemby/warden/internal/wardenerr"
	"github.com/rs/zerolog"
)

// LockedMemory is the common contract for a protected plaintext
// region. Implementations must never return their plaintext from a
// method that an accidental fmt.Println or structured-log call could
// reach; the only way to see the bytes is through View.
type LockedMemory interface {
	// View invokes fn with the current plaintext. The slice passed to
	// fn is only valid for the duration of the call; implementations
	// may free or re-lock it immediately after fn returns.
	View(fn func(plaintext []byte) error) error

	// Update replaces the region's contents with newPlaintext. The
	// previous backing store, if any, is wiped before being released.
	Update(newPlaintext []byte) error

	// Size reports the plaintext length in bytes.
	Size() int

	// Zeroize overwrites and releases the backing store. It is safe
	// to call more than once; subsequent calls are no-ops.
	Zeroize() error
}

// redacted satisfies zerolog.LogObjectMarshaler so that accidentally
// logging a region never prints its size or contents. Backends embed
// redacted to get this for free.
type redacted struct{}

func (redacted) MarshalZerologObject(e *zerolog.Event) {
	e.Str("locked_memory", "<redacted>")
}

func wrapFS(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, wardenerr.ErrFileSystemError, err)
}
