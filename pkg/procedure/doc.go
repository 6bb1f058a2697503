// Package procedure implements the cryptographic-procedure registry: a
// tagged-variant catalogue of named operations with a uniform
// (inputsByLocation, outputsByLocation) -> Result signature, dispatched
// by kind against a client's vault state.
//
// The actual procedure catalogue a production custody engine would
// ship (SLIP10 key derivation, Ed25519 signing, BIP39 mnemonic
// handling) is out of scope here; it is treated as a pluggable
// registry any caller can extend by registering additional
// Procedure values under new kinds. This package ships the dispatch
// mechanism itself plus two illustrative procedures, CopyRecord and
// GetPublicKeyStub, that exercise the contract end to end without
// pretending to be production cryptography.
//
// A procedure never returns secret bytes to its caller unless it is
// explicitly a read (Result.Public is set); everything else is written
// back into the vault through the named outputs.
package procedure
