package procedure

import (
	"fmt"
	"sync"

	"github.com/cuemby/warden/internal/wardenerr"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/vault"
)

// Result is what a procedure hands back to its caller. Public is only
// populated by procedures that are explicitly reads; everything else
// a procedure produces is written into the vault via its named
// outputs instead.
type Result struct {
	Public []byte
}

// Procedure is one named, tagged-variant operation in the registry.
// Execute receives the target client's state directly: it resolves
// its own named inputs and outputs against inputs/outputs and must
// not touch any Location outside those maps.
type Procedure interface {
	// Kind names this procedure's tag, e.g. "copy_record".
	Kind() string

	// Execute runs the procedure against cs, reading secret plaintext
	// for each entry in inputs and, where applicable, writing results
	// back through cs for each entry in outputs.
	Execute(cs *vault.ClientState, inputs map[string]types.Location, outputs map[string]types.Location) (Result, error)
}

// Registry indexes Procedure values by kind. Adding a procedure is
// additive: registering under an already-used kind is rejected rather
// than silently overwriting the existing handler.
type Registry struct {
	mu         sync.Mutex
	procedures map[string]Procedure
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{procedures: make(map[string]Procedure)}
}

// Register adds p under its own Kind.
func (r *Registry) Register(p Procedure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.procedures[p.Kind()]; exists {
		return fmt.Errorf("procedure: kind %q already registered", p.Kind())
	}
	r.procedures[p.Kind()] = p
	return nil
}

// Dispatch looks up kind and runs it against cs. An unregistered kind,
// or a procedure rejecting its inputs, surfaces as a
// wardenerr.ProcedureError naming kind.
func (r *Registry) Dispatch(cs *vault.ClientState, kind string, inputs map[string]types.Location, outputs map[string]types.Location) (Result, error) {
	r.mu.Lock()
	p, ok := r.procedures[kind]
	r.mu.Unlock()
	if !ok {
		return Result{}, wardenerr.NewProcedureError(kind, fmt.Errorf("no procedure registered for this kind"))
	}

	result, err := p.Execute(cs, inputs, outputs)
	if err != nil {
		return Result{}, wardenerr.NewProcedureError(kind, err)
	}
	return result, nil
}

// Kinds returns the registered procedure kinds, for introspection.
func (r *Registry) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.procedures))
	for k := range r.procedures {
		out = append(out, k)
	}
	return out
}
