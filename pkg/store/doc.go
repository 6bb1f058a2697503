// Package store implements the flat, non-secret scratch mapping that
// hangs off each client's state: Location -> (bytes, optional TTL).
// MemStore is the default, in-memory implementation; BoltStore is an
// optional on-disk backend for callers that want scratch data to
// survive a process restart.
package store
