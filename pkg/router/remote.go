package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/warden/internal/wardenerr"
	"github.com/cuemby/warden/pkg/peer"
	"github.com/cuemby/warden/pkg/procedure"
	"github.com/cuemby/warden/pkg/types"
)

// remoteStoreRead is the Payload of a peer.OpReadFromStore request.
type remoteStoreRead struct {
	Location types.Location `json:"location"`
}

type remoteStoreReadResult struct {
	Value []byte `json:"value"`
	Found bool   `json:"found"`
}

// remoteStoreWrite is the Payload of a peer.OpWriteToStore request.
type remoteStoreWrite struct {
	Location types.Location `json:"location"`
	Value    []byte         `json:"value"`
	TTL      *time.Duration `json:"ttl,omitempty"`
}

// remoteProcedureCall is the Payload of a peer.OpRuntimeExec request.
type remoteProcedureCall struct {
	Kind    string                    `json:"kind"`
	Inputs  map[string]types.Location `json:"inputs"`
	Outputs map[string]types.Location `json:"outputs"`
}

// dispatchRemote marshals payload, sends it to dest as the named
// operation for targetClient, and unmarshals the response into out
// (which may be nil if the caller has no result to decode).
func (r *Router) dispatchRemote(ctx context.Context, dest peer.ID, targetClient types.ClientId, op peer.Operation, payload, out any) error {
	if r.opts.Transport == nil {
		return fmt.Errorf("router: no transport configured for remote dispatch")
	}
	if r.opts.Firewall != nil && !r.opts.Firewall.Allow(dest) {
		return &peer.ErrFirewallDenied{Peer: dest}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("router: encode %s payload: %w", op, err)
	}

	resp, err := r.opts.Transport.Send(ctx, dest, peer.RequestEnvelope{
		TargetClient: targetClient,
		Operation:    op,
		Payload:      body,
	})
	if err != nil {
		return fmt.Errorf("router: dispatch %s to %s: %w", op, dest, err)
	}
	if resp.Err != "" {
		return fmt.Errorf("router: remote %s: %s", op, resp.Err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Payload, out); err != nil {
		return fmt.Errorf("router: decode %s response: %w", op, err)
	}
	return nil
}

// ReadFromRemoteStore asks dest's router for targetClient's
// scratch-store value at loc.
func (r *Router) ReadFromRemoteStore(ctx context.Context, dest peer.ID, targetClient types.ClientId, loc types.Location) ([]byte, bool, error) {
	var result remoteStoreReadResult
	err := r.dispatchRemote(ctx, dest, targetClient, peer.OpReadFromStore,
		remoteStoreRead{Location: loc}, &result)
	if err != nil {
		return nil, false, err
	}
	return result.Value, result.Found, nil
}

// WriteToRemoteStore asks dest's router to write value into
// targetClient's scratch store at loc.
func (r *Router) WriteToRemoteStore(ctx context.Context, dest peer.ID, targetClient types.ClientId, loc types.Location, value []byte, ttl *time.Duration) error {
	return r.dispatchRemote(ctx, dest, targetClient, peer.OpWriteToStore,
		remoteStoreWrite{Location: loc, Value: value, TTL: ttl}, nil)
}

// RemoteRuntimeExec asks dest's router to run a procedure against
// targetClient's own vault state and return its result.
func (r *Router) RemoteRuntimeExec(ctx context.Context, dest peer.ID, targetClient types.ClientId, kind string, inputs, outputs map[string]types.Location) (procedure.Result, error) {
	var result procedure.Result
	err := r.dispatchRemote(ctx, dest, targetClient, peer.OpRuntimeExec,
		remoteProcedureCall{Kind: kind, Inputs: inputs, Outputs: outputs}, &result)
	return result, err
}

// HandleRemote is the receiving side of the three remote operations
// above: it looks up targetClient directly (bypassing the current
// target) and executes the requested operation against that client's
// own actor. It is meant to be wired as a peer.Server's Handle func,
// after the transport's own Firewall has already admitted the caller.
func (r *Router) HandleRemote(ctx context.Context, req peer.RequestEnvelope) peer.ResponseEnvelope {
	a, err := r.actorByID(req.TargetClient)
	if err != nil {
		return peer.ResponseEnvelope{Err: err.Error()}
	}

	switch req.Operation {
	case peer.OpReadFromStore:
		var in remoteStoreRead
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			return peer.ResponseEnvelope{Err: err.Error()}
		}
		value, found, err := a.ReadStore(in.Location)
		if err != nil {
			return peer.ResponseEnvelope{Err: err.Error()}
		}
		body, err := json.Marshal(remoteStoreReadResult{Value: value, Found: found})
		if err != nil {
			return peer.ResponseEnvelope{Err: err.Error()}
		}
		return peer.ResponseEnvelope{Payload: body}

	case peer.OpWriteToStore:
		var in remoteStoreWrite
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			return peer.ResponseEnvelope{Err: err.Error()}
		}
		if err := a.WriteStore(in.Location, in.Value, in.TTL); err != nil {
			return peer.ResponseEnvelope{Err: err.Error()}
		}
		return peer.ResponseEnvelope{}

	case peer.OpRuntimeExec:
		var in remoteProcedureCall
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			return peer.ResponseEnvelope{Err: err.Error()}
		}
		result, err := a.RunProcedure(in.Kind, in.Inputs, in.Outputs)
		if err != nil {
			return peer.ResponseEnvelope{Err: err.Error()}
		}
		body, err := json.Marshal(result)
		if err != nil {
			return peer.ResponseEnvelope{Err: err.Error()}
		}
		return peer.ResponseEnvelope{Payload: body}

	default:
		return peer.ResponseEnvelope{Err: wardenerr.ErrInvalidArgument.Error()}
	}
}
