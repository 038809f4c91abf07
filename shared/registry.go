package shared

import (
	"sort"
	"sync"
)

// Registry maps coprocessor class names to their Data.
// The zero value is not usable; use NewRegistry.
type Registry struct {
	mu   sync.RWMutex
	data map[string]*Data
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		data: make(map[string]*Data),
	}
}

// For returns the Data for class, creating it on first use.
// Every call for the same class returns the same *Data.
func (registry *Registry) For(class string) *Data {
	registry.mu.RLock()
	data, ok := registry.data[class]
	registry.mu.RUnlock()

	if ok {
		return data
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if data, ok := registry.data[class]; ok {
		return data
	}

	data = newData(class)
	registry.data[class] = data

	return data
}

// Classes lists every class that has accessed its Data
func (registry *Registry) Classes() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	classes := make([]string, 0, len(registry.data))

	for class := range registry.data {
		classes = append(classes, class)
	}

	sort.Strings(classes)

	return classes
}

// Get is shorthand for For(class).Get(key)
func (registry *Registry) Get(class, key string) (interface{}, bool) {
	return registry.For(class).Get(key)
}

// Put is shorthand for For(class).Put(key, value)
func (registry *Registry) Put(class, key string, value interface{}) (interface{}, bool) {
	return registry.For(class).Put(key, value)
}

// ComputeIfAbsent is shorthand for For(class).ComputeIfAbsent(key, supplier)
func (registry *Registry) ComputeIfAbsent(class, key string, supplier Supplier) interface{} {
	return registry.For(class).ComputeIfAbsent(key, supplier)
}
