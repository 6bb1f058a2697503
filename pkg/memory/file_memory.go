package memory

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/cuemby/warden/internal/wardenerr"
)

// fileNameSize matches the original runtime's random filename length
// for spilled secrets.
const fileNameSize = 16

const fileAlnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// FileMemory spills plaintext to a single file under dir between
// accesses, rather than keeping it resident. The bytes written to
// disk are never the plaintext itself: they are XOR-masked against a
// per-instance random pad of equal length held only in process
// memory, so a copy of the file alone (backup, snapshot of the disk,
// a page of swap) reveals nothing. The file rests at mode 0000 and is
// widened to 0400 (read) or 0200 (write) only for the duration of the
// syscalls in between; every other observer of the directory sees
// either no file or a file nobody, including the owning process's
// other goroutines, can open.
//
// Update never rewrites the backing file in place: it deallocates the
// old file (zeroizing then removing it) and allocates a new one under
// a fresh random name with a fresh pad, matching the replace-not-
// mutate contract every LockedMemory backend shares.
type FileMemory struct {
	redacted

	mu     sync.Mutex
	dir    string
	fname  string
	path   string
	pad    []byte
	size   int
	zeroed bool
}

// NewFileMemory spills plaintext to a randomly named file under dir,
// masked with a fresh random pad. dir is created with 0700
// permissions if it does not already exist.
func NewFileMemory(dir string, plaintext []byte) (*FileMemory, error) {
	if len(plaintext) == 0 {
		return nil, wardenerr.ErrZeroSizedNotAllowed
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, wrapFS("memory: mkdir locked-memory dir", err)
	}
	f := &FileMemory{dir: dir}
	if err := f.writeNew(plaintext); err != nil {
		return nil, err
	}
	return f, nil
}

// writeNew allocates a fresh random filename and pad, masks
// plaintext against the pad, and writes the masked bytes to the new
// file at 0200 before narrowing it to 0000. f.dir must already exist.
func (f *FileMemory) writeNew(plaintext []byte) error {
	fname, err := randomFilename()
	if err != nil {
		return wrapFS("memory: generate filename", err)
	}
	pad := make([]byte, len(plaintext))
	if _, err := rand.Read(pad); err != nil {
		return wrapFS("memory: generate pad", err)
	}
	masked := xorInto(nil, plaintext, pad)

	path := filepath.Join(f.dir, fname)
	if err := os.WriteFile(path, masked, 0o200); err != nil {
		zeroBytes(masked)
		return wrapFS("memory: write secret file", err)
	}
	zeroBytes(masked)
	if err := os.Chmod(path, 0o000); err != nil {
		_ = os.Remove(path)
		return wrapFS("memory: chmod secret file", err)
	}

	f.fname = fname
	f.path = path
	f.pad = pad
	f.size = len(plaintext)
	return nil
}

func randomFilename() (string, error) {
	buf := make([]byte, fileNameSize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, fileNameSize)
	for i, b := range buf {
		out[i] = fileAlnum[int(b)%len(fileAlnum)]
	}
	return string(out), nil
}

// xorInto XORs a and b byte-for-byte into dst, allocating dst if nil.
// a and b must be equal length.
func xorInto(dst, a, b []byte) []byte {
	if dst == nil {
		dst = make([]byte, len(a))
	}
	for i := range a {
		dst[i] = a[i] ^ b[i]
	}
	return dst
}

// View widens the file's permissions, reads its masked contents,
// unmasks them against the pad, invokes fn, then re-narrows
// permissions to 0000 before returning. The widened window is held
// only around the os.ReadFile call.
func (f *FileMemory) View(fn func([]byte) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.zeroed {
		return wardenerr.ErrFileSystemError
	}
	if err := os.Chmod(f.path, 0o400); err != nil {
		return wrapFS("memory: chmod for read", err)
	}
	masked, err := os.ReadFile(f.path)
	chmodErr := os.Chmod(f.path, 0o000)
	if err != nil {
		return wrapFS("memory: read secret file", err)
	}
	if chmodErr != nil {
		zeroBytes(masked)
		return wrapFS("memory: chmod after read", chmodErr)
	}
	plaintext := xorInto(nil, masked, f.pad)
	zeroBytes(masked)
	defer zeroBytes(plaintext)
	return fn(plaintext)
}

// Update deallocates the old backing file (zeroizing then removing
// it) and allocates a new one, under a new random name with a new
// pad, holding newPlaintext. It never rewrites the existing file in
// place, so the path backing the instance before Update is gone from
// disk once Update returns.
func (f *FileMemory) Update(newPlaintext []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.removeLocked(); err != nil {
		return err
	}
	return f.writeNew(newPlaintext)
}

// Size reports the plaintext length without touching the file.
func (f *FileMemory) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// Zeroize overwrites the file with zeros, removes it, and wipes the
// in-memory pad. Safe to call more than once.
func (f *FileMemory) Zeroize() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.zeroed {
		return nil
	}
	f.zeroed = true
	return f.removeLocked()
}

// removeLocked zeros and removes the current backing file and pad.
// Caller must hold f.mu. It is a no-op if there is no current file.
func (f *FileMemory) removeLocked() error {
	if f.path == "" {
		return nil
	}
	if err := os.Chmod(f.path, 0o200); err != nil {
		return wrapFS("memory: chmod for removal", err)
	}
	zeros := make([]byte, f.size)
	if err := os.WriteFile(f.path, zeros, 0o200); err != nil {
		return wrapFS("memory: zero secret file", err)
	}
	if err := os.Remove(f.path); err != nil {
		return wrapFS("memory: remove secret file", err)
	}
	zeroBytes(f.pad)
	f.pad = nil
	f.path = ""
	f.fname = ""
	return nil
}
