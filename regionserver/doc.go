// Package regionserver hosts coprocessors on the regions of
// a region server.
//
// The Host creates one environment per region and coprocessor
// class, binds it to the data and metrics shared by the class,
// and retires it when the region closes or the coprocessor is
// unloaded. It is the only writer of the index of regions
// online on the server, which coprocessors read through
// their environments and connections use to short-circuit
// local calls. The Host also serves calls addressed to
// coprocessors, whether they arrive over the network or
// from a short-circuited connection.
package regionserver
