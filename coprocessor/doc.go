// Package coprocessor defines the contract between a region
// server and the extension code attached to its regions.
//
// A coprocessor is identified by its class, a stable name
// chosen when its Factory is registered with a Loader. The
// region server creates one instance per region for every
// class attached to the region's table, and hands each
// instance an Environment. The Environment is the only way
// extension code reaches host capabilities: the region it is
// attached to (read-only), the regions online on the server,
// the data and metrics shared by every instance of its class,
// cluster connections and a cell builder.
//
// Environments are Active until the region server retires
// them, after which capability accessors fail with ErrRetired.
package coprocessor
