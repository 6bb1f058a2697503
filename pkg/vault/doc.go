// Package vault implements the content-addressed, multi-tenant record
// store: vaults of encrypted records keyed by RecordId, grouped under
// a client's keystore, plus the per-client scratch store.
//
// A vault's records are kept as locked-memory ciphertext (see
// pkg/memory); ReadSecret decrypts a record with RecordCipher
// (pkg/security) into an ordinary byte slice that it returns to the
// caller; that plaintext is not placed in a Buffer. A record's ciphertext is never mutated
// in place: writes replace the record's LockedMemory wholesale,
// following the same "replace, don't mutate" discipline pkg/memory
// itself follows.
//
// See vault.go for the Vault, Record, Keystore, and ClientState
// types, and operations.go for WriteToVault, ReadSecret, DeleteData,
// GarbageCollect, ListHintsAndIDs, VaultExists, and RecordExists.
package vault
