package shared

import (
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
)

// Supplier lazily computes a value for ComputeIfAbsent
type Supplier func() interface{}

// entry holds a value that is either present or being
// computed. done is closed once a computation finishes.
type entry struct {
	value   interface{}
	present bool
	done    chan struct{}
}

func newEntry(value interface{}) *entry {
	done := make(chan struct{})
	close(done)

	return &entry{value: value, present: true, done: done}
}

// Data is a concurrent map from string keys to
// arbitrary values. Keys are kept sorted.
type Data struct {
	class   string
	mu      sync.Mutex
	entries *treemap.Map
}

func newData(class string) *Data {
	return &Data{
		class:   class,
		entries: treemap.NewWithStringComparator(),
	}
}

// Class returns the coprocessor class this map belongs to
func (data *Data) Class() string {
	return data.class
}

// get must be called with mu held
func (data *Data) get(key string) *entry {
	e, ok := data.entries.Get(key)

	if !ok {
		return nil
	}

	return e.(*entry)
}

// Get returns the value stored for key. A value that
// is still being computed by ComputeIfAbsent is
// reported as absent.
func (data *Data) Get(key string) (interface{}, bool) {
	data.mu.Lock()
	defer data.mu.Unlock()

	e := data.get(key)

	if e == nil || !e.present {
		return nil, false
	}

	return e.value, true
}

// Put stores value under key and returns the previous
// value, if any. If a computation for key is in progress
// Put waits for it and then replaces its result.
func (data *Data) Put(key string, value interface{}) (interface{}, bool) {
	for {
		data.mu.Lock()
		e := data.get(key)

		if e != nil && !e.present {
			data.mu.Unlock()
			<-e.done

			continue
		}

		data.entries.Put(key, newEntry(value))
		data.mu.Unlock()

		if e == nil {
			return nil, false
		}

		return e.value, true
	}
}

// Remove deletes key and returns its value, if any.
// Like Put it waits for an in-progress computation.
func (data *Data) Remove(key string) (interface{}, bool) {
	for {
		data.mu.Lock()
		e := data.get(key)

		if e != nil && !e.present {
			data.mu.Unlock()
			<-e.done

			continue
		}

		if e == nil {
			data.mu.Unlock()

			return nil, false
		}

		data.entries.Remove(key)
		data.mu.Unlock()

		return e.value, true
	}
}

// ComputeIfAbsent returns the value for key, calling supplier
// to create it if the key is absent. Under contention supplier
// runs at most once per key: concurrent callers wait for
// the first caller's result. If supplier panics the key is
// left absent, the panic propagates to the first caller, and
// waiting callers race to compute it again.
//
// supplier may compute other keys but must not call
// ComputeIfAbsent, Put or Remove for key itself. Those calls
// wait for supplier to finish and so never return.
func (data *Data) ComputeIfAbsent(key string, supplier Supplier) interface{} {
	for {
		data.mu.Lock()
		e := data.get(key)

		if e != nil && e.present {
			data.mu.Unlock()

			return e.value
		}

		if e != nil {
			data.mu.Unlock()
			<-e.done

			continue
		}

		e = &entry{done: make(chan struct{})}
		data.entries.Put(key, e)
		data.mu.Unlock()

		return data.compute(key, e, supplier)
	}
}

func (data *Data) compute(key string, e *entry, supplier Supplier) interface{} {
	completed := false

	defer func() {
		data.mu.Lock()

		if completed {
			e.present = true
		} else {
			data.entries.Remove(key)
		}

		data.mu.Unlock()
		close(e.done)
	}()

	e.value = supplier()
	completed = true

	return e.value
}

// Keys returns the keys whose values are present, in ascending order
func (data *Data) Keys() []string {
	data.mu.Lock()
	defer data.mu.Unlock()

	keys := make([]string, 0, data.entries.Size())
	it := data.entries.Iterator()

	for it.Next() {
		if it.Value().(*entry).present {
			keys = append(keys, it.Key().(string))
		}
	}

	return keys
}

// Len returns the number of keys whose values are present
func (data *Data) Len() int {
	return len(data.Keys())
}
