// Package router implements the supervisor described in spec.md §4.6:
// it owns every client actor, tracks the "current target" client that
// unqualified operations forward to, and exposes the snapshot and
// remote-dispatch operations that act across actors rather than
// within one.
//
// Router itself never touches a client's vault or store directly;
// every state mutation is a message sent to that client's
// pkg/actor.Actor. The router's own state (the actor map, the current
// target, and the set of exported snapshots staged by a
// persist-before-kill) is guarded by a plain mutex, separate from the
// snapshotMu lock that excludes concurrent snapshot reads and writes
// per spec.md §5.
package router
