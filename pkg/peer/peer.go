package peer

import (
	"context"
	"fmt"

	"github.com/cuemby/warden/pkg/types"
)

// ID identifies a remote peer in the (external) p2p transport's own
// address space. Warden never interprets it beyond using it as a
// firewall and dialing key.
type ID string

// Operation names the remote operation a RequestEnvelope carries.
// Router.RemoteRuntimeExec and friends set this; a receiving peer's
// firewall and dispatcher both switch on it.
type Operation string

const (
	OpReadFromStore Operation = "read_from_store"
	OpWriteToStore  Operation = "write_to_store"
	OpRuntimeExec   Operation = "runtime_exec"
)

// RequestEnvelope is the wire contract consumed from the p2p
// collaborator: spec.md §6 "Peer request envelope". Payload is
// opaque to this package; the receiving router decodes it according
// to Operation.
type RequestEnvelope struct {
	TargetClient types.ClientId
	Operation    Operation
	Payload      []byte
}

// ResponseEnvelope carries a remote operation's result back to the
// caller, or an error string if the remote side rejected the request.
type ResponseEnvelope struct {
	Payload []byte
	Err     string
}

// Firewall decides whether a RequestEnvelope arriving from src should
// be dispatched at all, before the router ever looks at its
// TargetClient.
type Firewall interface {
	Allow(src ID) bool
}

// AllowAll admits every peer. It is the default: a secrets-custody
// engine embedded in a larger application is expected to sit behind
// whatever network-level access control that application already
// has.
type AllowAll struct{}

func (AllowAll) Allow(ID) bool { return true }

// AllowList admits only the peers named at construction time.
type AllowList map[ID]bool

func NewAllowList(ids ...ID) AllowList {
	al := make(AllowList, len(ids))
	for _, id := range ids {
		al[id] = true
	}
	return al
}

func (al AllowList) Allow(src ID) bool { return al[src] }

// Transport is what the router's remote-dispatch operations call to
// forward an envelope to a peer and wait for its response. Dialer
// construction (peer discovery, NAT traversal, connection reuse) is
// entirely the implementation's concern; Transport itself is a single
// blocking round trip.
type Transport interface {
	Send(ctx context.Context, peer ID, req RequestEnvelope) (ResponseEnvelope, error)
}

// Dialer resolves a peer ID to a live connection. It is the seam a
// real p2p stack (discovery, NAT traversal, multiplexing) plugs into;
// Warden itself never calls Dial; what Dial returns is opaque to
// Warden and only a Transport implementation would make use of it.
type Dialer interface {
	Dial(ctx context.Context, peer ID) (any, error)
}

// ErrFirewallDenied is returned by a Transport (or a router wrapping
// one) when a peer is rejected by the active Firewall before any
// envelope is sent or dispatched.
type ErrFirewallDenied struct{ Peer ID }

func (e *ErrFirewallDenied) Error() string {
	return fmt.Sprintf("peer: firewall denied peer %q", e.Peer)
}
