// Package sync implements the synchroniser: a pure, file-to-file
// merge of two encrypted snapshots into a third. It never touches any
// live router or actor state, and never allocates locked memory — it
// operates directly on the decoded vault.ClientSnapshot values the
// snapshot codec exposes for exactly this purpose.
//
// Merge rule, for every client id present in either snapshot A or B:
// present only in one side, take that side's entry unchanged; present
// in both, A wins at the client level, but within that client the
// vault set is a union — vaults that exist only in B are added,
// vaults present in both keep A's copy. A is treated as the base
// being synchronised, matching the original stronghold synchroniser's
// "dest wins" rule.
//
// SynchronizeFull merges every client. SynchronizePartial additionally
// takes an allow-list of client ids: any client from B not in the
// allow-list is dropped before the merge, as if it had never been in
// B at all. The allow-list never restricts A.
package sync
