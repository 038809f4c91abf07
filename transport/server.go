package transport

import (
	"context"
	"net"

	"github.com/jrife/regionhost/utils/log"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var _ ExecServer = (*Server)(nil)

// ServerConfig contains configuration for a Server
type ServerConfig struct {
	Handler Handler
	Logger  *zap.Logger
	Options []grpc.ServerOption
}

// Server is the gRPC frontend of a region server. It
// decodes calls and hands them to its Handler.
type Server struct {
	handler    Handler
	logger     *zap.Logger
	grpcServer *grpc.Server
}

// NewServer creates a Server
func NewServer(config ServerConfig) *Server {
	server := &Server{
		handler:    config.Handler,
		logger:     config.Logger,
		grpcServer: grpc.NewServer(config.Options...),
	}

	if server.logger == nil {
		server.logger = zap.L()
	}

	server.grpcServer.RegisterService(&serviceDesc, server)

	return server
}

// Listen accepts connections from this listener. It blocks
// until the listener fails or Stop is called, returning nil
// in the latter case. It may be called with more than one
// listener.
func (server *Server) Listen(listener net.Listener) error {
	server.logger.Info("listening", zap.String("address", listener.Addr().String()))

	return server.grpcServer.Serve(listener)
}

// Stop stops accepting new calls, waits for in-flight
// calls to finish and causes all calls to Listen to return
func (server *Server) Stop() {
	server.grpcServer.GracefulStop()
}

// Exec implements ExecServer
func (server *Server) Exec(ctx context.Context, request *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	call := incomingCall(ctx, request.GetValue())
	ctx = log.WithFields(ctx,
		zap.String("call", call.ID),
		zap.String("region", call.Region),
		zap.String("service", call.Service),
		zap.String("method", call.Method),
	)
	logger, ctx := log.LoggerFromContext(ctx, server.logger)
	logger.Debug("start Exec()")

	response, err := server.handler.ServeCall(ctx, call)

	if err != nil {
		logger.Debug("error", zap.Error(err))

		return nil, toStatus(err)
	}

	logger.Debug("return from Exec()", zap.Int("response_bytes", len(response.Payload)))

	return wrapperspb.Bytes(response.Payload), nil
}
