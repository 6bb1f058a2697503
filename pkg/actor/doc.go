// Package actor implements the per-client execution context: a state
// machine (Uninitialised -> Active -> Killed) wrapping one client's
// vault.ClientState, with every vault operation and procedure
// dispatch serialised through a single FIFO mailbox goroutine so that
// no two mutations of that client's state ever interleave.
//
// An actor starts Uninitialised and accepts no operations until
// Activate supplies its ClientState (freshly created, or restored from
// a loaded snapshot). Kill stops the mailbox goroutine and, if given a
// persist function, exports and hands off the actor's final state
// before doing so. Once Killed, an actor accepts no further
// operations; a new Actor must be spawned in its place.
package actor
