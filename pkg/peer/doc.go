// Package peer defines the request envelope and firewall contract the
// router's remote-dispatch operations (ReadFromRemoteStore,
// WriteToRemoteStore, RemoteRuntimeExec) forward onto, plus a thin
// gRPC transport that implements it.
//
// Peer discovery and NAT traversal are explicitly out of scope (see
// spec.md §1): Dialer is the seam a real p2p stack plugs into.
// What this package owns is the wire contract once two processes
// already have a connection: the envelope shape from spec.md §6, and
// a per-source-peer firewall rule evaluated before any envelope is
// dispatched to a local client actor.
package peer
