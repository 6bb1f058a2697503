package router

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuemby/warden/internal/wardenerr"
	"github.com/cuemby/warden/pkg/actor"
	"github.com/cuemby/warden/pkg/events"
	"github.com/cuemby/warden/pkg/log"
	"github.com/cuemby/warden/pkg/metrics"
	"github.com/cuemby/warden/pkg/peer"
	"github.com/cuemby/warden/pkg/procedure"
	"github.com/cuemby/warden/pkg/snapshot"
	"github.com/cuemby/warden/pkg/store"
	wardensync "github.com/cuemby/warden/pkg/sync"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/vault"
	"github.com/rs/zerolog"
)

// Options configures a Router. The zero value is usable: every actor
// gets an in-memory scratch store and mlocked Buffer record storage,
// and remote dispatch is unavailable until Transport is set.
type Options struct {
	// DataDir is the base data directory. The router fills in the
	// default below but passes DataDir to no backend: a nil Backend
	// gives mlocked Buffer storage, not FileMemory. Defaults to
	// "<UserCacheDir>/.locked_memories" (or "<home>/.locked_memories"
	// if the cache directory is unavailable), per spec.md §6.
	DataDir string

	// Backend chooses which MemoryBackend a client's record
	// ciphertext is allocated through. Nil defaults every client to
	// vault.BufferBackend{}.
	Backend func(client types.ClientId) vault.MemoryBackend

	// Store chooses the scratch-store implementation for a client.
	// Nil defaults every client to an in-memory store.NewMemStore().
	Store func(client types.ClientId) store.Store

	// Registry is shared by every actor the router spawns.
	Registry *procedure.Registry

	// Events, if set, receives a lifecycle event for every spawn,
	// kill, snapshot write/load, and sync.
	Events *events.Broker

	// Transport sends remote-dispatch envelopes to peers. Nil causes
	// ReadFromRemoteStore, WriteToRemoteStore, and RemoteRuntimeExec
	// to fail.
	Transport peer.Transport

	// Firewall is evaluated against the destination peer before a
	// remote-dispatch call is sent. Nil admits every peer.
	Firewall peer.Firewall
}

func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, ".locked_memories")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".locked_memories")
	}
	return ".locked_memories"
}

// Router is the supervisor: it owns every client Actor, tracks the
// current target client unqualified operations forward to, and
// serialises snapshot file access behind snapshotMu so a
// synchronise or write_all_to_snapshot never overlaps another
// snapshot operation.
type Router struct {
	opts Options
	log  zerolog.Logger

	mu        sync.Mutex
	actors    map[types.ClientId]*actor.Actor
	pending   map[types.ClientId]vault.ClientSnapshot
	target    types.ClientId
	hasTarget bool

	snapshotMu sync.Mutex
}

// New creates a Router. The returned value is ready to spawn actors.
func New(opts Options) *Router {
	if opts.DataDir == "" {
		opts.DataDir = defaultDataDir()
	}
	metrics.ReportHealth("router", true, "")
	return &Router{
		opts:    opts,
		log:     log.WithComponent("router"),
		actors:  make(map[types.ClientId]*actor.Actor),
		pending: make(map[types.ClientId]vault.ClientSnapshot),
	}
}

func (r *Router) backendFor(client types.ClientId) vault.MemoryBackend {
	if r.opts.Backend != nil {
		return r.opts.Backend(client)
	}
	return vault.BufferBackend{}
}

func (r *Router) storeFor(client types.ClientId) store.Store {
	var s store.Store
	if r.opts.Store != nil {
		s = r.opts.Store(client)
	} else {
		s = store.NewMemStore()
	}
	metrics.ReportHealth("store", true, "")
	return s
}

func (r *Router) publish(typ events.EventType, client types.ClientId, msg string) {
	if r.opts.Events == nil {
		return
	}
	r.opts.Events.Publish(events.NewEvent(typ, msg, map[string]string{"client": client.String()}))
}

// SpawnActor derives a ClientId from clientPath and saltPath, creates
// fresh vault state for it, and activates an actor to own that state.
// It errors with ErrClientAlreadyExists if the derived id is already
// spawned.
func (r *Router) SpawnActor(clientPath, saltPath []byte) (types.ClientId, error) {
	client := types.DeriveClientId(clientPath, saltPath)

	r.mu.Lock()
	if _, exists := r.actors[client]; exists {
		r.mu.Unlock()
		return client, wardenerr.ErrClientAlreadyExists
	}
	r.mu.Unlock()

	cs := vault.NewClientState(client, r.backendFor(client), r.storeFor(client))
	a := actor.NewActor(client, r.opts.Registry)
	if err := a.Activate(cs); err != nil {
		return client, err
	}

	r.mu.Lock()
	if _, exists := r.actors[client]; exists {
		r.mu.Unlock()
		_ = a.Kill(nil)
		return client, wardenerr.ErrClientAlreadyExists
	}
	r.actors[client] = a
	if !r.hasTarget {
		r.target = client
		r.hasTarget = true
	}
	r.mu.Unlock()

	metrics.ActorsActive.Inc()
	r.publish(events.EventActorSpawned, client, "actor spawned")
	r.log.Info().Str("client", client.String()).Msg("actor spawned")
	return client, nil
}

// SwitchActorTarget sets the router's current target to client,
// which must already have a spawned (or snapshot-loaded) actor.
func (r *Router) SwitchActorTarget(client types.ClientId) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actors[client]; !ok {
		return wardenerr.ErrClientNotFound
	}
	r.target = client
	r.hasTarget = true
	r.publish(events.EventActorTargeted, client, "target switched")
	return nil
}

// CurrentTarget reports the router's current target client, if any.
func (r *Router) CurrentTarget() (types.ClientId, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target, r.hasTarget
}

// KillStronghold removes client's actor. If persist is true, the
// actor's final state is exported and staged so the next
// WriteAllToSnapshot includes it even though the actor itself is
// gone. After this returns (persist or not), no vault or store state
// for client remains reachable through the router except via that
// staged snapshot.
func (r *Router) KillStronghold(client types.ClientId, persist bool) error {
	r.mu.Lock()
	a, ok := r.actors[client]
	if !ok {
		r.mu.Unlock()
		return wardenerr.ErrClientNotFound
	}
	delete(r.actors, client)
	if r.hasTarget && r.target == client {
		r.hasTarget = false
	}
	r.mu.Unlock()

	var persistFn func(types.ClientId, vault.ClientSnapshot) error
	if persist {
		persistFn = func(c types.ClientId, snap vault.ClientSnapshot) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.pending[c] = snap
			return nil
		}
	}

	if err := a.Kill(persistFn); err != nil {
		r.mu.Lock()
		r.actors[client] = a
		r.mu.Unlock()
		return err
	}

	metrics.ActorsActive.Dec()
	r.publish(events.EventActorKilled, client, "actor killed")
	r.log.Info().Str("client", client.String()).Bool("persist", persist).Msg("actor killed")
	return nil
}

// current resolves the router's current target to its actor.
func (r *Router) current() (*actor.Actor, types.ClientId, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasTarget {
		return nil, types.ClientId{}, wardenerr.ErrClientNotFound
	}
	a, ok := r.actors[r.target]
	if !ok {
		return nil, types.ClientId{}, wardenerr.ErrClientNotFound
	}
	return a, r.target, nil
}

// actorByID looks up an actor by client id directly, bypassing the
// current-target indirection. Used by remote-dispatch handling,
// where the request envelope names its target client explicitly.
func (r *Router) actorByID(client types.ClientId) (*actor.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actors[client]
	if !ok {
		return nil, wardenerr.ErrClientNotFound
	}
	return a, nil
}

// WriteToVault forwards to the currently targeted client's actor.
func (r *Router) WriteToVault(loc types.Location, payload []byte, hint types.RecordHint) error {
	a, client, err := r.current()
	if err != nil {
		return err
	}
	if err := a.WriteToVault(loc, payload, hint); err != nil {
		return err
	}
	r.publish(events.EventVaultWritten, client, "vault record written")
	return nil
}

// ReadSecret forwards to the currently targeted client's actor.
// client must match that actor's own id or the read is soft-empty,
// per spec.md §4.2.
func (r *Router) ReadSecret(client types.ClientId, loc types.Location) ([]byte, error) {
	a, _, err := r.current()
	if err != nil {
		return []byte{}, nil
	}
	return a.ReadSecret(client, loc)
}

// DeleteData forwards to the currently targeted client's actor.
func (r *Router) DeleteData(loc types.Location, revoke bool) error {
	a, client, err := r.current()
	if err != nil {
		return err
	}
	if err := a.DeleteData(loc, revoke); err != nil {
		return err
	}
	if revoke {
		r.publish(events.EventRecordRevoked, client, "record revoked")
	}
	return nil
}

// GarbageCollect forwards to the currently targeted client's actor.
func (r *Router) GarbageCollect(vaultPath []byte) (int, error) {
	a, client, err := r.current()
	if err != nil {
		return 0, err
	}
	n, err := a.GarbageCollect(vaultPath)
	if err != nil {
		return n, err
	}
	if n > 0 {
		metrics.VaultGCRecordsCollected.Add(float64(n))
		r.publish(events.EventVaultGC, client, fmt.Sprintf("garbage collected %d records", n))
	}
	return n, nil
}

// ListHintsAndIDs forwards to the currently targeted client's actor.
func (r *Router) ListHintsAndIDs(vaultPath []byte) ([]types.RecordId, []types.RecordHint, error) {
	a, _, err := r.current()
	if err != nil {
		return nil, nil, err
	}
	return a.ListHintsAndIDs(vaultPath)
}

// VaultExists forwards to the currently targeted client's actor.
func (r *Router) VaultExists(loc types.Location) bool {
	a, _, err := r.current()
	if err != nil {
		return false
	}
	return a.VaultExists(loc)
}

// RecordExists forwards to the currently targeted client's actor.
func (r *Router) RecordExists(loc types.Location) bool {
	a, _, err := r.current()
	if err != nil {
		return false
	}
	return a.RecordExists(loc)
}

// RunProcedure forwards to the currently targeted client's actor.
func (r *Router) RunProcedure(kind string, inputs, outputs map[string]types.Location) (procedure.Result, error) {
	a, client, err := r.current()
	if err != nil {
		return procedure.Result{}, err
	}
	result, err := a.RunProcedure(kind, inputs, outputs)
	if err == nil {
		r.publish(events.EventProcedureRun, client, "procedure "+kind+" run")
	}
	return result, err
}

// allSnapshots exports every live actor's state plus anything staged
// by a persist-before-kill, ready for the snapshot codec.
func (r *Router) allSnapshots() ([]vault.ClientSnapshot, error) {
	r.mu.Lock()
	actors := make(map[types.ClientId]*actor.Actor, len(r.actors))
	for id, a := range r.actors {
		actors[id] = a
	}
	pending := make([]vault.ClientSnapshot, 0, len(r.pending))
	for _, snap := range r.pending {
		pending = append(pending, snap)
	}
	r.mu.Unlock()

	out := make([]vault.ClientSnapshot, 0, len(actors)+len(pending))
	for id, a := range actors {
		snap, err := a.Export()
		if err != nil {
			return nil, fmt.Errorf("router: export client %s: %w", id, err)
		}
		out = append(out, snap)
	}
	out = append(out, pending...)
	return out, nil
}

// WriteAllToSnapshot encrypts every actor's current state (plus any
// staged persist-before-kill state) under key and writes it
// atomically to path, excluding concurrent snapshot operations.
func (r *Router) WriteAllToSnapshot(path string, key []byte) error {
	r.snapshotMu.Lock()
	defer r.snapshotMu.Unlock()

	snaps, err := r.allSnapshots()
	if err != nil {
		return err
	}

	start := time.Now()
	if err := snapshot.WriteClientSnapshots(path, key, snaps); err != nil {
		return err
	}
	metrics.SnapshotWriteDuration.Observe(time.Since(start).Seconds())
	metrics.SnapshotWritesTotal.Inc()
	if r.opts.Events != nil {
		r.opts.Events.Publish(events.NewEvent(events.EventSnapshotWritten,
			"snapshot written", map[string]string{"path": path, "clients": fmt.Sprintf("%d", len(snaps))}))
	}
	r.log.Info().Str("path", path).Int("clients", len(snaps)).Msg("snapshot written")
	return nil
}

// SynchronizeFull merges the snapshots at pathA and pathB into a new
// snapshot at pathD, holding the snapshot lock so the merge never
// overlaps a concurrent WriteAllToSnapshot or ReadSnapshot touching
// the same files. The merge itself is pure file-to-file and never
// reads any live actor state.
func (r *Router) SynchronizeFull(pathA string, keyA []byte, pathB string, keyB []byte, pathD string, keyD []byte) error {
	r.snapshotMu.Lock()
	defer r.snapshotMu.Unlock()

	if err := wardensync.SynchronizeFull(pathA, keyA, pathB, keyB, pathD, keyD); err != nil {
		return err
	}
	if r.opts.Events != nil {
		r.opts.Events.Publish(events.NewEvent(events.EventSyncCompleted,
			"full synchronise completed", map[string]string{"dest": pathD}))
	}
	r.log.Info().Str("dest", pathD).Msg("full synchronise completed")
	return nil
}

// SynchronizePartial is SynchronizeFull restricted by allow: clients
// from pathB whose id is not in allow are dropped before the merge.
func (r *Router) SynchronizePartial(pathA string, keyA []byte, pathB string, keyB []byte, pathD string, keyD []byte, allow map[types.ClientId]bool) error {
	r.snapshotMu.Lock()
	defer r.snapshotMu.Unlock()

	if err := wardensync.SynchronizePartial(pathA, keyA, pathB, keyB, pathD, keyD, allow); err != nil {
		return err
	}
	if r.opts.Events != nil {
		r.opts.Events.Publish(events.NewEvent(events.EventSyncCompleted,
			"partial synchronise completed", map[string]string{"dest": pathD}))
	}
	r.log.Info().Str("dest", pathD).Int("allowed", len(allow)).Msg("partial synchronise completed")
	return nil
}

// ReadSnapshot decrypts the snapshot at path under key, finds the
// entry recorded under former (defaulting to target), and installs
// it as a fresh actor under target: the rename-on-load mechanism by
// which a snapshot recorded under one client path becomes reachable
// under a different one. It errors with ErrClientAlreadyExists if
// target already has a live actor.
func (r *Router) ReadSnapshot(path string, key []byte, target types.ClientId, former *types.ClientId) error {
	r.snapshotMu.Lock()
	defer r.snapshotMu.Unlock()

	r.mu.Lock()
	if _, exists := r.actors[target]; exists {
		r.mu.Unlock()
		return wardenerr.ErrClientAlreadyExists
	}
	r.mu.Unlock()

	formerID := target
	if former != nil {
		formerID = *former
	}

	snaps, err := snapshot.ReadClientSnapshots(path, key)
	if err != nil {
		return err
	}

	var found *vault.ClientSnapshot
	for i := range snaps {
		if snaps[i].Client == formerID {
			found = &snaps[i]
			break
		}
	}
	if found == nil {
		return wardenerr.ErrClientNotFound
	}
	snap := found.Rekey(target)

	cs, err := vault.Import(snap, r.backendFor(target), r.storeFor(target))
	if err != nil {
		return fmt.Errorf("router: restore client %s: %w", target, err)
	}

	a := actor.NewActor(target, r.opts.Registry)
	if err := a.Activate(cs); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.actors[target]; exists {
		r.mu.Unlock()
		_ = a.Kill(nil)
		return wardenerr.ErrClientAlreadyExists
	}
	r.actors[target] = a
	if !r.hasTarget {
		r.target = target
		r.hasTarget = true
	}
	r.mu.Unlock()

	metrics.ActorsActive.Inc()
	metrics.SnapshotReadsTotal.Inc()
	r.publish(events.EventSnapshotLoaded, target, "snapshot loaded")
	r.log.Info().Str("path", path).Str("client", target.String()).Msg("snapshot loaded")
	return nil
}
