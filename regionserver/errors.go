package regionserver

import (
	"errors"

	"github.com/jrife/regionhost/coprocessor"
)

var (
	// ErrAlreadyActive is returned by Activate when the
	// region already has an environment for the class
	ErrAlreadyActive = errors.New("coprocessor is already active on region")
	// ErrUnknownCoprocessor is returned by Activate when no
	// factory is registered for the class
	ErrUnknownCoprocessor = coprocessor.ErrUnknownCoprocessor
	// ErrClosed is returned by operations on a closed host
	ErrClosed = errors.New("host is closed")
	// ErrRegionConflict is returned when a region is activated
	// or opened while a different region with the same encoded
	// name is online
	ErrRegionConflict = errors.New("a different region is online under the same encoded name")
)
