package connection

import "errors"

var (
	// ErrConnectionCreation is returned by CreateConnection when
	// the configuration is invalid or the connection could not be
	// set up
	ErrConnectionCreation = errors.New("could not create connection")
	// ErrHostOwned is returned when closing the host connection
	// through a coprocessor. The host connection is closed by the
	// broker.
	ErrHostOwned = errors.New("host connection is owned by the region server")
	// ErrClosed is returned by calls made on a closed connection
	ErrClosed = errors.New("connection is closed")
	// ErrNoLocation is returned when no region holds the target
	// row or region
	ErrNoLocation = errors.New("no location for target")
	// ErrRecursion is returned when short-circuited calls nest
	// deeper than MaxShortCircuitDepth, as when a coprocessor
	// method calls itself on its own region
	ErrRecursion = errors.New("short-circuited calls nested too deeply")
)
