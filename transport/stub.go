package transport

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var _ Stub = (*GRPCStub)(nil)

// GRPCStub is a Stub backed by a gRPC client connection
type GRPCStub struct {
	address string
	conn    *grpc.ClientConn
}

// Dial creates a GRPCStub for address. Without options the
// connection uses insecure transport credentials. The underlying
// connection is established lazily on the first call.
func Dial(ctx context.Context, address string, options ...grpc.DialOption) (*GRPCStub, error) {
	if len(options) == 0 {
		options = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	conn, err := grpc.NewClient(address, options...)

	if err != nil {
		return nil, fmt.Errorf("could not create client for %s: %w", address, err)
	}

	return &GRPCStub{address: address, conn: conn}, nil
}

// GRPCDialer returns a Dialer that calls Dial with options
func GRPCDialer(options ...grpc.DialOption) Dialer {
	return func(ctx context.Context, address string) (Stub, error) {
		return Dial(ctx, address, options...)
	}
}

// Address returns the address this stub sends calls to
func (stub *GRPCStub) Address() string {
	return stub.address
}

// Exec sends call to the remote server
func (stub *GRPCStub) Exec(ctx context.Context, call Call) (Response, error) {
	response := new(wrapperspb.BytesValue)

	if err := stub.conn.Invoke(outgoingContext(ctx, call), execMethod, wrapperspb.Bytes(call.Payload), response); err != nil {
		return Response{}, fromStatus(err)
	}

	return Response{Payload: response.GetValue()}, nil
}

// Close closes the underlying connection
func (stub *GRPCStub) Close() error {
	return stub.conn.Close()
}
