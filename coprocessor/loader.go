package coprocessor

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a coprocessor instance for spec
type Factory func(spec Spec) (Coprocessor, error)

// Loader lets a region server create coprocessors by class
type Loader struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewLoader returns an empty Loader
func NewLoader() *Loader {
	return &Loader{
		factories: map[string]Factory{},
	}
}

var defaultLoader = NewLoader()

// DefaultLoader returns the process-wide loader that
// Register adds to
func DefaultLoader() *Loader {
	return defaultLoader
}

// Register registers a factory with the default loader.
// It is intended to be called from init functions.
func Register(class string, factory Factory) error {
	return defaultLoader.Register(class, factory)
}

// Register makes a factory available under class
func (loader *Loader) Register(class string, factory Factory) error {
	if class == "" || factory == nil {
		return fmt.Errorf("class and factory are required")
	}

	loader.mu.Lock()
	defer loader.mu.Unlock()

	if _, ok := loader.factories[class]; ok {
		return fmt.Errorf("%s: %w", class, ErrDuplicateCoprocessor)
	}

	loader.factories[class] = factory

	return nil
}

// Lookup returns the factory registered under class
func (loader *Loader) Lookup(class string) (Factory, bool) {
	loader.mu.RLock()
	defer loader.mu.RUnlock()

	factory, ok := loader.factories[class]

	return factory, ok
}

// Load creates a coprocessor instance for spec
func (loader *Loader) Load(spec Spec) (Coprocessor, error) {
	factory, ok := loader.Lookup(spec.Class)

	if !ok {
		return nil, fmt.Errorf("%s: %w", spec.Class, ErrUnknownCoprocessor)
	}

	instance, err := factory(spec)

	if err != nil {
		return nil, fmt.Errorf("could not create %s: %w", spec.Class, err)
	}

	return instance, nil
}

// Classes returns the registered classes in sorted order
func (loader *Loader) Classes() []string {
	loader.mu.RLock()
	defer loader.mu.RUnlock()

	classes := make([]string, 0, len(loader.factories))

	for class := range loader.factories {
		classes = append(classes, class)
	}

	sort.Strings(classes)

	return classes
}
