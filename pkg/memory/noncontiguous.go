package memory

import (
	"crypto/rand"
	"sync"

	"github.com/cuemby/warden/internal/wardenerr"
)

// NonContiguous splits plaintext across a set of mlocked Buffers held
// as XOR shards: shards[0] is random noise and shards[1..] XOR
// together with it to reconstruct the original bytes. No single
// Buffer in the set ever holds the reconstructible plaintext, so a
// read of any one shard's memory in isolation (a core dump, a partial
// swap, a neighboring process with read access to one mapping) leaks
// nothing.
type NonContiguous struct {
	redacted

	mu     sync.Mutex
	shards []*Buffer
	size   int
	zeroed bool
}

// shardCount is fixed at two: one noise shard and one XOR-combined
// shard. This is the minimum that satisfies the no-single-shard
// reconstruction property; more shards only add allocation overhead
// without changing it, since XOR-combining is associative.
const shardCount = 2

// NewNonContiguous splits plaintext into XOR shards, each held in its
// own guard-paged Buffer.
func NewNonContiguous(plaintext []byte) (*NonContiguous, error) {
	if len(plaintext) == 0 {
		return nil, wardenerr.ErrZeroSizedNotAllowed
	}
	shards, err := split(plaintext)
	if err != nil {
		return nil, err
	}
	return &NonContiguous{shards: shards, size: len(plaintext)}, nil
}

func split(plaintext []byte) ([]*Buffer, error) {
	noise := make([]byte, len(plaintext))
	if _, err := rand.Read(noise); err != nil {
		return nil, wrapFS("memory: generate shard noise", err)
	}
	combined := make([]byte, len(plaintext))
	for i := range plaintext {
		combined[i] = plaintext[i] ^ noise[i]
	}
	defer zeroBytes(combined)
	noiseBuf, err := NewBuffer(noise)
	zeroBytes(noise)
	if err != nil {
		return nil, err
	}
	combinedBuf, err := NewBuffer(combined)
	if err != nil {
		_ = noiseBuf.Zeroize()
		return nil, err
	}
	return []*Buffer{noiseBuf, combinedBuf}, nil
}

// View reassembles the plaintext into a throwaway buffer only for the
// duration of fn, then wipes the reassembly buffer.
func (n *NonContiguous) View(fn func([]byte) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.zeroed {
		return wardenerr.ErrFileSystemError
	}
	plaintext := make([]byte, n.size)
	defer zeroBytes(plaintext)
	for _, shard := range n.shards {
		if err := shard.View(func(shardBytes []byte) error {
			for i, b := range shardBytes {
				plaintext[i] ^= b
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return fn(plaintext)
}

// Update re-splits newPlaintext into fresh shards, zeroizing the old
// ones.
func (n *NonContiguous) Update(newPlaintext []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	shards, err := split(newPlaintext)
	if err != nil {
		return err
	}
	old := n.shards
	n.shards = shards
	n.size = len(newPlaintext)
	for _, s := range old {
		_ = s.Zeroize()
	}
	return nil
}

// Size reports the plaintext length.
func (n *NonContiguous) Size() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.size
}

// Zeroize wipes every shard. Safe to call more than once.
func (n *NonContiguous) Zeroize() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.zeroed {
		return nil
	}
	n.zeroed = true
	var firstErr error
	for _, s := range n.shards {
		if err := s.Zeroize(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	n.shards = nil
	return firstErr
}
