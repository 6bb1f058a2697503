package memory

import (
	"fmt"
	"sync"

	"github.com/cuemby/warden/internal/wardenerr"
	"golang.org/x/sys/unix"
)

// pageSize is cached at init from the runtime; guard pages are sized
// to it so mprotect never straddles a page boundary.
var pageSize = unix.Getpagesize()

// Buffer is a mlocked, guard-paged plaintext region. The payload lives
// at the start of the middle page(s) of an anonymous mmap, which are
// rounded up to a whole number of pages; a PROT_NONE page on either
// side turns a read or write that runs off those pages into a SIGSEGV
// rather than a silent leak.
type Buffer struct {
	redacted

	mu      sync.Mutex
	region  []byte // guardLo | payload pages | guardHi, one page each side
	payload []byte // region[pageSize : pageSize+size]
	size    int
	zeroed  bool
}

// NewBuffer allocates a guard-paged, mlocked Buffer and copies
// plaintext into it. Callers should Zeroize plaintext themselves once
// this returns, since NewBuffer does not take ownership of the slice
// it was given.
func NewBuffer(plaintext []byte) (*Buffer, error) {
	if len(plaintext) == 0 {
		return nil, wardenerr.ErrZeroSizedNotAllowed
	}
	b := &Buffer{size: len(plaintext)}
	if err := b.allocate(); err != nil {
		return nil, err
	}
	copy(b.payload, plaintext)
	return b, nil
}

func (b *Buffer) allocate() error {
	span := (b.size + pageSize - 1) / pageSize * pageSize
	total := 2*pageSize + span
	region, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return fmt.Errorf("memory: mmap: %w: %v", wardenerr.ErrAllocationFailed, err)
	}
	if err := unix.Mprotect(region[:pageSize], unix.PROT_NONE); err != nil {
		_ = unix.Munmap(region)
		return fmt.Errorf("memory: mprotect low guard: %w: %v", wardenerr.ErrAllocationFailed, err)
	}
	if err := unix.Mprotect(region[pageSize+span:], unix.PROT_NONE); err != nil {
		_ = unix.Munmap(region)
		return fmt.Errorf("memory: mprotect high guard: %w: %v", wardenerr.ErrAllocationFailed, err)
	}
	payload := region[pageSize : pageSize+b.size]
	if err := unix.Mlock(payload); err != nil {
		_ = unix.Munmap(region)
		return fmt.Errorf("memory: mlock: %w: %v", wardenerr.ErrAllocationFailed, err)
	}
	b.region = region
	b.payload = payload
	return nil
}

// View exposes the plaintext to fn while holding the buffer's lock.
func (b *Buffer) View(fn func([]byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.zeroed {
		return wardenerr.ErrFileSystemError
	}
	return fn(b.payload)
}

// Update replaces the buffer's contents, reallocating if the new
// plaintext is a different size.
func (b *Buffer) Update(newPlaintext []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	old := b.region
	oldPayload := b.payload
	oldSize := b.size
	b.size = len(newPlaintext)
	if err := b.allocate(); err != nil {
		b.size = oldSize
		b.region = old
		b.payload = oldPayload
		return err
	}
	copy(b.payload, newPlaintext)
	zeroBytes(oldPayload)
	_ = unix.Munlock(oldPayload)
	_ = unix.Munmap(old)
	return nil
}

// Size reports the plaintext length.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Zeroize wipes and releases the underlying mapping. Safe to call more
// than once.
func (b *Buffer) Zeroize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.zeroed {
		return nil
	}
	zeroBytes(b.payload)
	_ = unix.Munlock(b.payload)
	err := unix.Munmap(b.region)
	b.region = nil
	b.payload = nil
	b.zeroed = true
	if err != nil {
		return fmt.Errorf("memory: munmap: %w: %v", wardenerr.ErrFileSystemError, err)
	}
	return nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
