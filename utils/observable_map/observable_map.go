package observable_map

import (
	"sync"
	"sync/atomic"
)

// MapObserver is a callback through which observers
// can be notified of map changes.
type MapObserver func(key interface{}, value interface{})

type snapshot map[interface{}]interface{}

// ObservableMap is a copy-on-write map that allows
// observers to be notified when things are added,
// updated, or deleted. Writers are serialized with
// a mutex. Readers never lock: they read the most
// recently published snapshot, which may be missing
// writes that are concurrently in progress.
type ObservableMap struct {
	mu              sync.Mutex
	current         atomic.Value
	addObservers    []MapObserver
	updateObservers []MapObserver
	deleteObservers []MapObserver
}

// New creates an empty ObservableMap
func New() *ObservableMap {
	observableMap := &ObservableMap{}
	observableMap.current.Store(snapshot{})

	return observableMap
}

func (observableMap *ObservableMap) load() snapshot {
	return observableMap.current.Load().(snapshot)
}

// copy must be called with mu held
func (observableMap *ObservableMap) copy() snapshot {
	current := observableMap.load()
	next := make(snapshot, len(current)+1)

	for key, value := range current {
		next[key] = value
	}

	return next
}

// Put sets a key in the map. It returns true
// if the key already existed in the map and
// false if this call to Put is adding a key
// that didn't exist before.
func (observableMap *ObservableMap) Put(key, value interface{}) bool {
	observableMap.mu.Lock()

	next := observableMap.copy()
	_, ok := next[key]
	next[key] = value
	observableMap.current.Store(next)

	var observers []MapObserver

	// If the key already exists this is an update
	// Otherwise it's an add
	if ok {
		observers = observableMap.updateObservers
	} else {
		observers = observableMap.addObservers
	}

	observableMap.mu.Unlock()

	observableMap.notifyObservers(observers, key, value)

	return ok
}

// Delete deletes a key from the map. It returns
// true if the key existed in the map and false
// if the key didn't exist.
func (observableMap *ObservableMap) Delete(key interface{}) bool {
	observableMap.mu.Lock()

	value, ok := observableMap.load()[key]

	// Only publish a new snapshot and notify observers
	// if we're actually removing something that exists
	if !ok {
		observableMap.mu.Unlock()

		return false
	}

	next := observableMap.copy()
	delete(next, key)
	observableMap.current.Store(next)
	observers := observableMap.deleteObservers

	observableMap.mu.Unlock()

	observableMap.notifyObservers(observers, key, value)

	return true
}

// Update atomically replaces the value stored under key
// with the result of fn. fn receives the current value
// and whether it exists. If fn returns keep = false the
// key is deleted instead. Observers are notified with the
// same add/update/delete semantics as Put and Delete. If
// fn panics the map is left unchanged.
func (observableMap *ObservableMap) Update(key interface{}, fn func(value interface{}, ok bool) (interface{}, bool)) {
	observers, value := observableMap.update(key, fn)

	observableMap.notifyObservers(observers, key, value)
}

func (observableMap *ObservableMap) update(key interface{}, fn func(value interface{}, ok bool) (interface{}, bool)) ([]MapObserver, interface{}) {
	observableMap.mu.Lock()
	defer observableMap.mu.Unlock()

	next := observableMap.copy()
	old, existed := next[key]
	value, keep := fn(old, existed)

	var observers []MapObserver

	switch {
	case keep && existed:
		next[key] = value
		observers = observableMap.updateObservers
	case keep:
		next[key] = value
		observers = observableMap.addObservers
	case existed:
		delete(next, key)
		value = old
		observers = observableMap.deleteObservers
	default:
		return nil, nil
	}

	observableMap.current.Store(next)

	return observers, value
}

// Get reads a key from the map. If the key exists
// its value will be returned and ok will be true
// If the value doesn't exist a nil value will be
// returned and ok will be false.
func (observableMap *ObservableMap) Get(key interface{}) (interface{}, bool) {
	value, ok := observableMap.load()[key]

	return value, ok
}

// Len returns the number of keys in the current snapshot
func (observableMap *ObservableMap) Len() int {
	return len(observableMap.load())
}

// Range calls fn for every key in a point-in-time snapshot
// of the map until fn returns false. Writes that happen while
// Range is running are not observed.
func (observableMap *ObservableMap) Range(fn func(key, value interface{}) bool) {
	for key, value := range observableMap.load() {
		if !fn(key, value) {
			return
		}
	}
}

func (observableMap *ObservableMap) notifyObservers(observers []MapObserver, key, value interface{}) {
	for _, observer := range observers {
		observer(key, value)
	}
}

// OnAdd registers an observer for when a new key is
// added to the map.
func (observableMap *ObservableMap) OnAdd(cb MapObserver) {
	observableMap.mu.Lock()
	defer observableMap.mu.Unlock()

	observableMap.addObservers = append(observableMap.addObservers, cb)
}

// OnUpdate registers an observer for when an existing
// key is updated.
func (observableMap *ObservableMap) OnUpdate(cb MapObserver) {
	observableMap.mu.Lock()
	defer observableMap.mu.Unlock()

	observableMap.updateObservers = append(observableMap.updateObservers, cb)
}

// OnDelete registers an observer for map deletes.
func (observableMap *ObservableMap) OnDelete(cb MapObserver) {
	observableMap.mu.Lock()
	defer observableMap.mu.Unlock()

	observableMap.deleteObservers = append(observableMap.deleteObservers, cb)
}
