package peer

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// serviceName and method are the gRPC method coordinates this package
// registers and invokes. There is no generated .pb.go here: the wire
// messages are google.golang.org/protobuf's own well-known
// wrapperspb.BytesValue, carrying a JSON-encoded RequestEnvelope or
// ResponseEnvelope as its payload. That keeps the transport a single
// unary RPC with a real protobuf message on the wire, without a
// second code-generation step for a two-field envelope.
const (
	serviceName = "warden.peer.Transport"
	methodName  = "Dispatch"
	fullMethod  = "/" + serviceName + "/" + methodName
)

// wireServer is the interface a concrete peer service implementation
// must satisfy; it mirrors what protoc-gen-go-grpc would emit for a
// one-method service.
type wireServer interface {
	Dispatch(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*wireServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodName, Handler: dispatchHandler},
	},
	Metadata: "pkg/peer/grpc.go",
}

func dispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(wireServer).Dispatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(wireServer).Dispatch(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Server implements wireServer by decoding each BytesValue payload as
// a JSON RequestEnvelope, invoking Handle, and re-encoding the result.
type Server struct {
	// Handle processes a decoded envelope against local router state
	// and produces the response to send back. It is called after
	// Firewall has already admitted the peer at the transport layer
	// (see NewGRPCServer).
	Handle func(ctx context.Context, req RequestEnvelope) ResponseEnvelope
}

// NewGRPCServer registers a peer Server on s, behind firewall. peerOf
// extracts the calling peer's ID from the RPC context (e.g. from TLS
// peer certificates or a connection-level identity already
// established by the transport); it is left to the caller because
// that identity mechanism is part of the external p2p collaborator.
func NewGRPCServer(s *grpc.Server, srv *Server, firewall Firewall, peerOf func(context.Context) ID) {
	wrapped := &firewalledServer{inner: srv, firewall: firewall, peerOf: peerOf}
	s.RegisterService(&serviceDesc, wrapped)
}

type firewalledServer struct {
	inner    *Server
	firewall Firewall
	peerOf   func(context.Context) ID
}

func (f *firewalledServer) Dispatch(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	src := f.peerOf(ctx)
	if f.firewall != nil && !f.firewall.Allow(src) {
		return nil, &ErrFirewallDenied{Peer: src}
	}

	var req RequestEnvelope
	if err := json.Unmarshal(in.GetValue(), &req); err != nil {
		return nil, fmt.Errorf("peer: decode request envelope: %w", err)
	}

	resp := f.inner.Handle(ctx, req)
	out, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("peer: encode response envelope: %w", err)
	}
	return wrapperspb.Bytes(out), nil
}

// Client is a Transport backed by a single gRPC connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewGRPCClient wraps an established connection (the product of a
// Dialer) as a Transport.
func NewGRPCClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Send(ctx context.Context, _ ID, req RequestEnvelope) (ResponseEnvelope, error) {
	in, err := json.Marshal(req)
	if err != nil {
		return ResponseEnvelope{}, fmt.Errorf("peer: encode request envelope: %w", err)
	}

	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, fullMethod, wrapperspb.Bytes(in), out); err != nil {
		return ResponseEnvelope{}, fmt.Errorf("peer: dispatch rpc: %w", err)
	}

	var resp ResponseEnvelope
	if err := json.Unmarshal(out.GetValue(), &resp); err != nil {
		return ResponseEnvelope{}, fmt.Errorf("peer: decode response envelope: %w", err)
	}
	return resp, nil
}
