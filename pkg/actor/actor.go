package actor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/warden/internal/wardenerr"
	"github.com/cuemby/warden/pkg/log"
	"github.com/cuemby/warden/pkg/procedure"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/vault"
	"github.com/rs/zerolog"
)

// State is one of an actor's lifecycle states.
type State int32

const (
	Uninitialised State = iota
	Active
	Killed
)

func (s State) String() string {
	switch s {
	case Uninitialised:
		return "uninitialised"
	case Active:
		return "active"
	case Killed:
		return "killed"
	default:
		return "unknown"
	}
}

// job is one unit of work submitted to an actor's mailbox: a closure
// to run against the actor's ClientState, and the channel its result
// is delivered on. The mailbox goroutine runs jobs strictly one at a
// time, in the order they were submitted.
type job struct {
	run   func(cs *vault.ClientState) (any, error)
	reply chan jobResult
}

type jobResult struct {
	value any
	err   error
}

// Actor is the serial execution context for one client: its vault
// operations and procedure dispatches are funneled through mailbox,
// drained by a single goroutine started by Activate.
type Actor struct {
	Client   types.ClientId
	registry *procedure.Registry
	log      zerolog.Logger

	state State32

	// killMu guards the mailbox against the send-on-closed-channel race
	// between submit and Kill: submit holds it for read while it sends,
	// Kill holds it for write while it flips state and closes the
	// mailbox, so the two never interleave.
	killMu  sync.RWMutex
	mu      sync.Mutex
	cs      *vault.ClientState
	mailbox chan job
	done    chan struct{}
}

// State32 wraps a State behind atomic access so State() is safe to
// call from any goroutine without taking the actor's own lock.
type State32 struct{ v atomic.Int32 }

func (s *State32) Load() State   { return State(s.v.Load()) }
func (s *State32) Store(v State) { s.v.Store(int32(v)) }
func (s *State32) CAS(from, to State) bool {
	return s.v.CompareAndSwap(int32(from), int32(to))
}

// NewActor creates an actor for client in the Uninitialised state.
// registry may be nil if the actor will never dispatch procedures.
func NewActor(client types.ClientId, registry *procedure.Registry) *Actor {
	a := &Actor{
		Client:   client,
		registry: registry,
		log:      log.WithClient(log.WithComponent("actor"), client),
	}
	a.state.Store(Uninitialised)
	return a
}

// State reports the actor's current lifecycle state.
func (a *Actor) State() State { return a.state.Load() }

// Activate transitions the actor from Uninitialised to Active,
// adopting cs as its state, and starts its mailbox goroutine. Calling
// Activate on an already-active or killed actor returns
// ErrActorAlreadyActive.
func (a *Actor) Activate(cs *vault.ClientState) error {
	if !a.state.CAS(Uninitialised, Active) {
		return wardenerr.ErrActorAlreadyActive
	}
	a.mu.Lock()
	a.cs = cs
	a.mailbox = make(chan job, 64)
	a.done = make(chan struct{})
	mailbox := a.mailbox
	done := a.done
	a.mu.Unlock()

	go a.run(mailbox, done)
	a.log.Debug().Msg("actor activated")
	return nil
}

func (a *Actor) run(mailbox chan job, done chan struct{}) {
	defer close(done)
	for j := range mailbox {
		value, err := j.run(a.cs)
		j.reply <- jobResult{value: value, err: err}
	}
}

// submit enqueues run and blocks for its result. It fails fast with
// ErrActorNotActive if the actor is not currently Active. Holding
// killMu for read for the duration of the send excludes a concurrent
// Kill, which holds it for write: the mailbox is never closed while a
// submit might still be sending on it.
func (a *Actor) submit(run func(cs *vault.ClientState) (any, error)) (any, error) {
	a.killMu.RLock()
	defer a.killMu.RUnlock()

	if a.State() != Active {
		return nil, wardenerr.ErrActorNotActive
	}
	a.mu.Lock()
	mailbox := a.mailbox
	a.mu.Unlock()
	if mailbox == nil {
		return nil, wardenerr.ErrActorNotActive
	}

	reply := make(chan jobResult, 1)
	mailbox <- job{run: run, reply: reply}
	result := <-reply
	return result.value, result.err
}

// Kill stops the actor's mailbox goroutine and transitions it to
// Killed. If persist is non-nil and the actor was Active, its final
// ClientState is exported and handed to persist before the mailbox is
// closed; a persist error aborts the kill and leaves the actor Active.
func (a *Actor) Kill(persist func(types.ClientId, vault.ClientSnapshot) error) error {
	if a.State() == Killed {
		return nil
	}

	a.killMu.Lock()
	defer a.killMu.Unlock()

	if a.State() != Active {
		a.state.Store(Killed)
		return nil
	}

	a.mu.Lock()
	mailbox := a.mailbox
	cs := a.cs
	a.mu.Unlock()

	if persist != nil {
		snap, err := cs.Export()
		if err != nil {
			return err
		}
		if err := persist(a.Client, snap); err != nil {
			return err
		}
	}

	a.state.Store(Killed)
	if mailbox != nil {
		close(mailbox)
	}
	a.log.Debug().Bool("persisted", persist != nil).Msg("actor killed")
	return nil
}

// WriteToVault submits a WriteToVault call to the actor's mailbox.
func (a *Actor) WriteToVault(loc types.Location, payload []byte, hint types.RecordHint) error {
	_, err := a.submit(func(cs *vault.ClientState) (any, error) {
		return nil, cs.WriteToVault(loc, payload, hint)
	})
	return err
}

// ReadSecret submits a ReadSecret call to the actor's mailbox.
func (a *Actor) ReadSecret(client types.ClientId, loc types.Location) ([]byte, error) {
	value, err := a.submit(func(cs *vault.ClientState) (any, error) {
		return cs.ReadSecret(client, loc)
	})
	if err != nil {
		return nil, err
	}
	return value.([]byte), nil
}

// DeleteData submits a DeleteData call to the actor's mailbox.
func (a *Actor) DeleteData(loc types.Location, revoke bool) error {
	_, err := a.submit(func(cs *vault.ClientState) (any, error) {
		return nil, cs.DeleteData(loc, revoke)
	})
	return err
}

// GarbageCollect submits a GarbageCollect call to the actor's mailbox.
func (a *Actor) GarbageCollect(vaultPath []byte) (int, error) {
	value, err := a.submit(func(cs *vault.ClientState) (any, error) {
		return cs.GarbageCollect(vaultPath)
	})
	if err != nil {
		return 0, err
	}
	return value.(int), nil
}

// ListHintsAndIDs submits a ListHintsAndIDs call to the actor's mailbox.
func (a *Actor) ListHintsAndIDs(vaultPath []byte) ([]types.RecordId, []types.RecordHint, error) {
	type pair struct {
		ids   []types.RecordId
		hints []types.RecordHint
	}
	value, err := a.submit(func(cs *vault.ClientState) (any, error) {
		ids, hints, err := cs.ListHintsAndIDs(vaultPath)
		if err != nil {
			return nil, err
		}
		return pair{ids: ids, hints: hints}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	p := value.(pair)
	return p.ids, p.hints, nil
}

// VaultExists submits a VaultExists probe to the actor's mailbox.
func (a *Actor) VaultExists(loc types.Location) bool {
	value, err := a.submit(func(cs *vault.ClientState) (any, error) {
		return cs.VaultExists(loc), nil
	})
	if err != nil {
		return false
	}
	return value.(bool)
}

// RecordExists submits a RecordExists probe to the actor's mailbox.
func (a *Actor) RecordExists(loc types.Location) bool {
	value, err := a.submit(func(cs *vault.ClientState) (any, error) {
		return cs.RecordExists(loc), nil
	})
	if err != nil {
		return false
	}
	return value.(bool)
}

// RunProcedure dispatches kind, with its inputs and outputs resolved
// against this actor's own ClientState, through the actor's registry.
func (a *Actor) RunProcedure(kind string, inputs map[string]types.Location, outputs map[string]types.Location) (procedure.Result, error) {
	if a.registry == nil {
		return procedure.Result{}, wardenerr.NewProcedureError(kind, wardenerr.ErrActorNotActive)
	}
	value, err := a.submit(func(cs *vault.ClientState) (any, error) {
		return a.registry.Dispatch(cs, kind, inputs, outputs)
	})
	if err != nil {
		return procedure.Result{}, err
	}
	return value.(procedure.Result), nil
}

type storeGetResult struct {
	value []byte
	ok    bool
}

// ReadStore submits a scratch-store read to the actor's mailbox. It
// serves the non-secret Location->bytes mapping a remote peer's
// ReadFromRemoteStore addresses, distinct from ReadSecret's vault
// lookup.
func (a *Actor) ReadStore(loc types.Location) ([]byte, bool, error) {
	value, err := a.submit(func(cs *vault.ClientState) (any, error) {
		v, ok := cs.Store.Get(loc)
		return storeGetResult{value: v, ok: ok}, nil
	})
	if err != nil {
		return nil, false, err
	}
	r := value.(storeGetResult)
	return r.value, r.ok, nil
}

// WriteStore submits a scratch-store write to the actor's mailbox.
func (a *Actor) WriteStore(loc types.Location, value []byte, ttl *time.Duration) error {
	_, err := a.submit(func(cs *vault.ClientState) (any, error) {
		return nil, cs.Store.Put(loc, value, ttl)
	})
	return err
}

// Export submits a full-state export to the actor's mailbox, for
// callers building a multi-client snapshot without killing the actor.
func (a *Actor) Export() (vault.ClientSnapshot, error) {
	value, err := a.submit(func(cs *vault.ClientState) (any, error) {
		return cs.Export()
	})
	if err != nil {
		return vault.ClientSnapshot{}, err
	}
	return value.(vault.ClientSnapshot), nil
}
