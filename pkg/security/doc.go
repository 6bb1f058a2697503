/*
Package security provides the AES-256-GCM record cipher Warden uses to
encrypt vault record payloads. Snapshot files are sealed separately,
with XChaCha20-Poly1305, by pkg/snapshot.

# RecordCipher

RecordCipher encrypts and decrypts plaintext using AES-256 in
Galois/Counter Mode, providing authenticated encryption:

	Plaintext → AES-256-GCM → [nonce || ciphertext || tag]
	                ↑
	            32-byte key

A random 12-byte nonce is generated per Seal call and prepended to the
output, so the same plaintext never produces the same ciphertext
twice. Open rejects any tampering: a flipped bit anywhere in the
nonce, ciphertext, or tag causes authentication to fail and the
plaintext is never returned.

Callers hold the 32-byte key themselves (see pkg/vault's Keystore);
RecordCipher has no notion of where the key comes from beyond the two
constructors NewRecordCipher (raw key) and
NewRecordCipherFromPassphrase (SHA-256 of a passphrase).

This package does not implement certificate issuance, mutual TLS, or
any other PKI concern. The only network surface is the thin peer
transport in pkg/peer, whose access control is a per-peer firewall
rule, not TLS authentication.
*/
package security
