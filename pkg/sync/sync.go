package sync

import (
	"fmt"

	"github.com/cuemby/warden/internal/wardenerr"
	"github.com/cuemby/warden/pkg/metrics"
	"github.com/cuemby/warden/pkg/snapshot"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/vault"
)

// SynchronizeFull merges every client from snapshot pathA and
// snapshot pathB into a new snapshot written to pathD under keyD. The
// three paths must be distinct.
func SynchronizeFull(pathA string, keyA []byte, pathB string, keyB []byte, pathD string, keyD []byte) error {
	if err := synchronize(pathA, keyA, pathB, keyB, pathD, keyD, nil); err != nil {
		return err
	}
	metrics.SyncMergesTotal.WithLabelValues("full").Inc()
	return nil
}

// SynchronizePartial is SynchronizeFull restricted to the clients in
// allow: any client in pathB whose id is not in allow is dropped
// before the merge, silently. allow never restricts pathA.
func SynchronizePartial(pathA string, keyA []byte, pathB string, keyB []byte, pathD string, keyD []byte, allow map[types.ClientId]bool) error {
	if allow == nil {
		allow = map[types.ClientId]bool{}
	}
	if err := synchronize(pathA, keyA, pathB, keyB, pathD, keyD, allow); err != nil {
		return err
	}
	metrics.SyncMergesTotal.WithLabelValues("partial").Inc()
	return nil
}

func synchronize(pathA string, keyA []byte, pathB string, keyB []byte, pathD string, keyD []byte, allow map[types.ClientId]bool) error {
	if pathA == pathB || pathA == pathD || pathB == pathD {
		return fmt.Errorf("%w: synchronise requires three distinct file paths", wardenerr.ErrInvalidArgument)
	}

	snapsA, err := snapshot.ReadClientSnapshots(pathA, keyA)
	if err != nil {
		return fmt.Errorf("sync: read snapshot A: %w", err)
	}
	snapsB, err := snapshot.ReadClientSnapshots(pathB, keyB)
	if err != nil {
		return fmt.Errorf("sync: read snapshot B: %w", err)
	}

	merged := merge(snapsA, snapsB, allow)

	if err := snapshot.WriteClientSnapshots(pathD, keyD, merged); err != nil {
		return fmt.Errorf("sync: write merged snapshot: %w", err)
	}
	return nil
}

// merge implements the client-level-A-wins, per-vault-union rule.
// allow, when non-nil, restricts which clients from b are eligible to
// contribute at all; a nil allow means every client in b is eligible.
func merge(a, b []vault.ClientSnapshot, allow map[types.ClientId]bool) []vault.ClientSnapshot {
	byClientB := make(map[types.ClientId]vault.ClientSnapshot, len(b))
	for _, snap := range b {
		if allow != nil && !allow[snap.Client] {
			metrics.SyncClientsDropped.Inc()
			continue
		}
		byClientB[snap.Client] = snap
	}

	seen := make(map[types.ClientId]bool, len(a)+len(byClientB))
	out := make([]vault.ClientSnapshot, 0, len(a)+len(byClientB))

	for _, snap := range a {
		if seen[snap.Client] {
			continue
		}
		seen[snap.Client] = true
		if bSnap, ok := byClientB[snap.Client]; ok {
			out = append(out, unionVaults(snap, bSnap))
		} else {
			out = append(out, snap)
		}
	}

	for _, snap := range b {
		if allow != nil && !allow[snap.Client] {
			continue
		}
		if seen[snap.Client] {
			continue
		}
		seen[snap.Client] = true
		out = append(out, snap)
	}

	return out
}

// unionVaults keeps base's vaults as-is and appends any vault from
// other whose id base does not already have.
func unionVaults(base, other vault.ClientSnapshot) vault.ClientSnapshot {
	haveVault := make(map[types.VaultId]bool, len(base.Vaults))
	for _, v := range base.Vaults {
		haveVault[v.ID] = true
	}

	merged := base
	merged.Vaults = append(append([]vault.VaultSnapshot(nil), base.Vaults...), filterNewVaults(other.Vaults, haveVault)...)

	if merged.Keys == nil {
		merged.Keys = make(map[types.VaultId][]byte, len(base.Keys))
	} else {
		merged.Keys = copyKeys(base.Keys)
	}
	for id, key := range other.Keys {
		if !haveVault[id] {
			merged.Keys[id] = key
		}
	}

	return merged
}

func filterNewVaults(vaults []vault.VaultSnapshot, have map[types.VaultId]bool) []vault.VaultSnapshot {
	out := make([]vault.VaultSnapshot, 0, len(vaults))
	for _, v := range vaults {
		if !have[v.ID] {
			out = append(out, v)
		}
	}
	return out
}

func copyKeys(keys map[types.VaultId][]byte) map[types.VaultId][]byte {
	out := make(map[types.VaultId][]byte, len(keys))
	for k, v := range keys {
		out[k] = v
	}
	return out
}
