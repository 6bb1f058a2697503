package snapshot

import (
	"encoding/binary"
	"fmt"

	"github.com/cuemby/warden/internal/wardenerr"
)

var magic = [4]byte{'S', 'N', 'P', '1'}

const wireVersion uint16 = 2

const headerSize = 4 + 2 // magic + version

// buildFrame assembles the on-disk byte layout: magic, version, nonce,
// then ciphertext (which already carries its own auth tag, appended by
// AEAD.Seal).
func buildFrame(nonce, ciphertext []byte) []byte {
	out := make([]byte, 0, headerSize+len(nonce)+len(ciphertext))
	out = append(out, magic[:]...)
	var versionBytes [2]byte
	binary.BigEndian.PutUint16(versionBytes[:], wireVersion)
	out = append(out, versionBytes[:]...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out
}

// parseFrame splits a snapshot file's bytes back into its nonce and
// ciphertext, validating the magic and version header first.
func parseFrame(data []byte, nonceSize int) (nonce, ciphertext []byte, err error) {
	if len(data) < headerSize+nonceSize {
		return nil, nil, fmt.Errorf("snapshot: frame too short: %d bytes", len(data))
	}
	if [4]byte(data[:4]) != magic {
		return nil, nil, fmt.Errorf("snapshot: bad magic %q", data[:4])
	}
	version := binary.BigEndian.Uint16(data[4:6])
	if version != wireVersion {
		return nil, nil, fmt.Errorf("%w: got version %d, want %d", wardenerr.ErrVersionMismatch, version, wireVersion)
	}
	rest := data[headerSize:]
	return rest[:nonceSize], rest[nonceSize:], nil
}
