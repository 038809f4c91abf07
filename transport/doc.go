// Package transport carries coprocessor calls between
// region servers over gRPC.
//
// A call targets either a region, identified by its encoded
// name, or a server as a whole. It names a service, which for
// region calls is the coprocessor class, and a method. Payloads
// are opaque bytes. The package knows nothing about where
// regions live: routing and short-circuiting local calls are
// the caller's job.
//
// Routing fields travel as gRPC metadata so that the wire
// messages can be the protobuf well-known BytesValue type and
// no generated code is needed.
package transport
