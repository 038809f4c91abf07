package transport

import (
	"context"
	"errors"
)

var (
	// ErrRegionNotOnline indicates the target region is not online
	// on the server that received the call
	ErrRegionNotOnline = errors.New("region is not online on this server")
	// ErrNoSuchService indicates the target has no service with
	// the requested name, or the service has no such method
	ErrNoSuchService = errors.New("no such service")
)

// Call is one coprocessor invocation
type Call struct {
	// ID correlates the call across servers
	ID string
	// Region is the encoded name of the target region.
	// It is empty for server-targeted calls.
	Region string
	// Service names the target service. For region
	// calls it is the coprocessor class.
	Service string
	// Method names the method of the service to invoke
	Method string
	// Payload is the method's request
	Payload []byte
}

// Response is the result of a call
type Response struct {
	Payload []byte
}

// Handler serves calls
type Handler interface {
	ServeCall(ctx context.Context, call Call) (Response, error)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, call Call) (Response, error)

// ServeCall implements Handler
func (fn HandlerFunc) ServeCall(ctx context.Context, call Call) (Response, error) {
	return fn(ctx, call)
}

// Stub sends calls to one remote server
type Stub interface {
	Exec(ctx context.Context, call Call) (Response, error)
	Close() error
}

// Dialer creates a Stub for the server listening at address
type Dialer func(ctx context.Context, address string) (Stub, error)
