// Package snapshot persists and restores the full state of a set of
// client actors: every vault, record, keystore key, and scratch store
// entry, encrypted as a single file.
//
// Record ciphertext inside a snapshot is already AES-256-GCM sealed by
// pkg/security (pkg/vault never stores plaintext in locked memory); the
// snapshot file wraps that ciphertext in a second, outer encryption
// layer under a snapshot-level key, using XChaCha20-Poly1305 rather
// than the AES-256-GCM used at the record level. The wire format
// reserves a 24-byte nonce field, which only XChaCha20-Poly1305's
// extended nonce satisfies without a key-derivation step per snapshot;
// AES-GCM's 12-byte nonce does not fit.
//
// Wire format, in order: 4-byte magic "SNP1", 2-byte big-endian
// version, 24-byte nonce, ciphertext (JSON payload plus a 16-byte
// Poly1305 tag appended by Seal). Writes are atomic: the codec writes
// to a temp file in the target directory and renames it into place, so
// a crash mid-write never corrupts an existing snapshot.
package snapshot
