package coprocessor

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jrife/regionhost/transport"
)

var (
	// ErrRetired is returned by capability accessors of an
	// environment whose region has been closed or whose
	// coprocessor has been unloaded
	ErrRetired = errors.New("coprocessor environment is retired")
	// ErrUnknownCoprocessor is returned when no factory is
	// registered for a class
	ErrUnknownCoprocessor = errors.New("unknown coprocessor class")
	// ErrDuplicateCoprocessor is returned when registering a
	// second factory for a class
	ErrDuplicateCoprocessor = errors.New("coprocessor class already registered")
	// ErrNoSuchMethod is returned by a Service asked to call
	// a method it does not have
	ErrNoSuchMethod = fmt.Errorf("no such method: %w", transport.ErrNoSuchService)
)

const (
	// PriorityHighest runs before every other coprocessor
	PriorityHighest = 0
	// PrioritySystem is for coprocessors that are part of
	// the region server itself
	PrioritySystem = math.MaxInt32 / 4
	// PriorityUser is the default priority
	PriorityUser = math.MaxInt32 / 2
	// PriorityLowest runs after every other coprocessor
	PriorityLowest = math.MaxInt32
)

// Coprocessor is extension code attached to a region
type Coprocessor interface {
	// Start is called once the environment is active. If it
	// returns an error the coprocessor is not attached.
	Start(ctx context.Context, env Environment) error
	// Stop is called after the environment is retired
	Stop(ctx context.Context, env Environment) error
}

// Service is implemented by coprocessors that accept calls
// through connections
type Service interface {
	CallMethod(ctx context.Context, env Environment, method string, request []byte) ([]byte, error)
}

// MethodFunc implements one method of a Service
type MethodFunc func(ctx context.Context, env Environment, request []byte) ([]byte, error)

// Methods is a Service made of named methods
type Methods map[string]MethodFunc

// CallMethod implements Service
func (methods Methods) CallMethod(ctx context.Context, env Environment, method string, request []byte) ([]byte, error) {
	fn, ok := methods[method]

	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", env.Class(), method, ErrNoSuchMethod)
	}

	return fn(ctx, env, request)
}

// Spec describes a coprocessor attached to a table
type Spec struct {
	// Class names the coprocessor's Factory
	Class string `json:"class" yaml:"class"`
	// Priority orders coprocessors attached to the same
	// region, lowest first. Zero means PriorityUser.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`
	// Config is passed to the coprocessor through its
	// environment
	Config map[string]string `json:"config,omitempty" yaml:"config,omitempty"`
}

// Validate checks that spec is well formed
func (spec Spec) Validate() error {
	if spec.Class == "" {
		return errors.New("class is required")
	}

	if spec.Priority < 0 {
		return fmt.Errorf("priority %d is negative", spec.Priority)
	}

	return nil
}

// WithDefaults returns a copy of spec with defaults applied
// and its config map copied
func (spec Spec) WithDefaults() Spec {
	if spec.Priority == 0 {
		spec.Priority = PriorityUser
	}

	config := make(map[string]string, len(spec.Config))

	for key, value := range spec.Config {
		config[key] = value
	}

	spec.Config = config

	return spec
}
