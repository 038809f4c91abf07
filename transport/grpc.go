package transport

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName = "regionhost.transport.Coprocessor"
	execMethod  = "/" + serviceName + "/Exec"

	metadataCallID  = "x-regionhost-call-id"
	metadataRegion  = "x-regionhost-region"
	metadataService = "x-regionhost-service"
	metadataMethod  = "x-regionhost-method"
)

// ExecServer is the server API for the Coprocessor gRPC service
type ExecServer interface {
	Exec(ctx context.Context, request *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ExecServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Exec",
			Handler:    execHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "transport/grpc.go",
}

func execHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	request := new(wrapperspb.BytesValue)

	if err := dec(request); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(ExecServer).Exec(ctx, request)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: execMethod,
	}

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ExecServer).Exec(ctx, req.(*wrapperspb.BytesValue))
	}

	return interceptor(ctx, request, info, handler)
}

func outgoingContext(ctx context.Context, call Call) context.Context {
	return metadata.AppendToOutgoingContext(ctx,
		metadataCallID, call.ID,
		metadataRegion, call.Region,
		metadataService, call.Service,
		metadataMethod, call.Method,
	)
}

func incomingCall(ctx context.Context, payload []byte) Call {
	md, _ := metadata.FromIncomingContext(ctx)

	first := func(key string) string {
		if values := md.Get(key); len(values) > 0 {
			return values[0]
		}

		return ""
	}

	return Call{
		ID:      first(metadataCallID),
		Region:  first(metadataRegion),
		Service: first(metadataService),
		Method:  first(metadataMethod),
		Payload: payload,
	}
}

// toStatus converts a handler error into a gRPC status error
func toStatus(err error) error {
	switch {
	case errors.Is(err, ErrRegionNotOnline):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrNoSuchService):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	return status.Error(codes.Unknown, err.Error())
}

// fromStatus converts a status error returned by a remote
// server back into a sentinel error where one applies.
// Other errors are returned unchanged.
func fromStatus(err error) error {
	st, ok := status.FromError(err)

	if !ok {
		return err
	}

	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrRegionNotOnline, st.Message())
	case codes.Unimplemented:
		return fmt.Errorf("%w: %s", ErrNoSuchService, st.Message())
	}

	return err
}
