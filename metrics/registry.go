package metrics

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrMetricKind is returned when a metric name is requested
// as a different kind of instrument than it was created as
var ErrMetricKind = errors.New("metric already registered as a different kind")

// CoprocessorLabel is attached to every metric in a Registry
const CoprocessorLabel = "coprocessor"

// Registry holds the metrics of one coprocessor class at
// server scope. All regions that load the class share the
// Registry, and so share every instrument in it.
type Registry struct {
	class      string
	namespace  string
	subsystem  string
	registry   *prometheus.Registry
	families   *familyIndex
	mu         sync.Mutex
	collectors map[string]instrument
}

type kind int

const (
	kindCounter kind = iota
	kindGauge
	kindHistogram
)

func (k kind) String() string {
	switch k {
	case kindCounter:
		return "counter"
	case kindGauge:
		return "gauge"
	}

	return "histogram"
}

type instrument struct {
	kind      kind
	collector prometheus.Collector
}

type family struct {
	kind kind
	help string
	refs int
}

// familyIndex remembers the kind and help of every metric name
// across all registries of a Hub. Families with the same name
// are merged on export, which requires them to agree on both.
type familyIndex struct {
	mu       sync.Mutex
	families map[string]family
}

func newFamilyIndex() *familyIndex {
	return &familyIndex{families: make(map[string]family)}
}

// claim returns the help text every class must use for name.
// The first class to create name decides its kind and help,
// which hold until every class has released name.
func (index *familyIndex) claim(name string, k kind, help string) (string, error) {
	index.mu.Lock()
	defer index.mu.Unlock()

	existing, ok := index.families[name]

	if !ok {
		index.families[name] = family{kind: k, help: help, refs: 1}

		return help, nil
	}

	if existing.kind != k {
		return "", fmt.Errorf("%w: %s is a %s, not a %s", ErrMetricKind, name, existing.kind, k)
	}

	existing.refs++
	index.families[name] = existing

	return existing.help, nil
}

func (index *familyIndex) release(name string) {
	index.mu.Lock()
	defer index.mu.Unlock()

	existing, ok := index.families[name]

	if !ok {
		return
	}

	if existing.refs--; existing.refs <= 0 {
		delete(index.families, name)

		return
	}

	index.families[name] = existing
}

func newRegistry(class, namespace, subsystem string, families *familyIndex) *Registry {
	return &Registry{
		class:      class,
		namespace:  namespace,
		subsystem:  subsystem,
		registry:   prometheus.NewRegistry(),
		families:   families,
		collectors: make(map[string]instrument),
	}
}

// Class returns the coprocessor class this registry belongs to
func (registry *Registry) Class() string {
	return registry.class
}

func (registry *Registry) labels() prometheus.Labels {
	return prometheus.Labels{CoprocessorLabel: registry.class}
}

// getOrCreate returns the collector registered under name, building
// it with create if it doesn't exist yet. create receives the help
// text shared by every class that uses name.
func (registry *Registry) getOrCreate(name, help string, k kind, create func(help string) prometheus.Collector) (prometheus.Collector, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if existing, ok := registry.collectors[name]; ok {
		if existing.kind != k {
			return nil, fmt.Errorf("%w: %s is a %s, not a %s", ErrMetricKind, name, existing.kind, k)
		}

		return existing.collector, nil
	}

	help, err := registry.families.claim(name, k, help)

	if err != nil {
		return nil, err
	}

	collector := create(help)

	if err := registry.registry.Register(collector); err != nil {
		registry.families.release(name)

		return nil, fmt.Errorf("could not register metric %s: %w", name, err)
	}

	registry.collectors[name] = instrument{kind: k, collector: collector}

	return collector, nil
}

// Counter returns the counter with this name, creating it if needed
func (registry *Registry) Counter(name, help string) (prometheus.Counter, error) {
	collector, err := registry.getOrCreate(name, help, kindCounter, func(help string) prometheus.Collector {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   registry.namespace,
			Subsystem:   registry.subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: registry.labels(),
		})
	})

	if err != nil {
		return nil, err
	}

	return collector.(prometheus.Counter), nil
}

// Gauge returns the gauge with this name, creating it if needed
func (registry *Registry) Gauge(name, help string) (prometheus.Gauge, error) {
	collector, err := registry.getOrCreate(name, help, kindGauge, func(help string) prometheus.Collector {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   registry.namespace,
			Subsystem:   registry.subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: registry.labels(),
		})
	})

	if err != nil {
		return nil, err
	}

	return collector.(prometheus.Gauge), nil
}

// Histogram returns the histogram with this name, creating it
// if needed. buckets is only used when the histogram is created;
// nil selects prometheus.DefBuckets.
func (registry *Registry) Histogram(name, help string, buckets []float64) (prometheus.Histogram, error) {
	collector, err := registry.getOrCreate(name, help, kindHistogram, func(help string) prometheus.Collector {
		return prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   registry.namespace,
			Subsystem:   registry.subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: registry.labels(),
			Buckets:     buckets,
		})
	})

	if err != nil {
		return nil, err
	}

	return collector.(prometheus.Histogram), nil
}

// Timer returns a timer that records durations in seconds into
// the histogram with this name
func (registry *Registry) Timer(name, help string) (*Timer, error) {
	histogram, err := registry.Histogram(name, help, nil)

	if err != nil {
		return nil, err
	}

	return &Timer{histogram: histogram}, nil
}

// Remove unregisters the metric with this name. It returns false
// if no such metric exists.
func (registry *Registry) Remove(name string) bool {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	existing, ok := registry.collectors[name]

	if !ok {
		return false
	}

	registry.registry.Unregister(existing.collector)
	registry.families.release(name)
	delete(registry.collectors, name)

	return true
}

// Names lists the metric names in ascending order
func (registry *Registry) Names() []string {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	names := make([]string, 0, len(registry.collectors))

	for name := range registry.collectors {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Gatherer exposes the registry's metrics for export
func (registry *Registry) Gatherer() prometheus.Gatherer {
	return registry.registry
}

// Timer measures durations into a histogram
type Timer struct {
	histogram prometheus.Histogram
}

// Observe records d
func (timer *Timer) Observe(d time.Duration) {
	timer.histogram.Observe(d.Seconds())
}

// ObserveSince records the time elapsed since start
func (timer *Timer) ObserveSince(start time.Time) {
	timer.Observe(time.Since(start))
}

// Time runs fn and records how long it took
func (timer *Timer) Time(fn func()) {
	start := time.Now()
	defer timer.ObserveSince(start)

	fn()
}
