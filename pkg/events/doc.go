// Package events provides an in-memory pub/sub broker for router-level
// lifecycle events: actor spawn/kill/target switches, vault writes and
// revocations, garbage collection sweeps, snapshot writes/loads, and
// synchroniser runs. Subscribers receive Event values carrying only
// identifiers and counts, never secret bytes.
package events
