// Package types defines Warden's addressing primitives: ClientId, VaultId,
// and RecordId (24-byte content addresses derived with BLAKE2b over a path
// and, for clients, a salt path), RecordHint, and Location, the external
// handle callers use to name a record either by explicit vault/record path
// or by ordinal position within a vault. These types carry no secret
// material themselves and have no dependency on the locked-memory or
// vault packages that use them.
package types
