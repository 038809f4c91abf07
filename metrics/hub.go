package metrics

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

const (
	// DefaultNamespace is the metric namespace used when HubConfig.Namespace is empty
	DefaultNamespace = "regionserver"
	// DefaultSubsystem is the metric subsystem used when HubConfig.Subsystem is empty
	DefaultSubsystem = "coprocessor"
)

var _ prometheus.Gatherer = (*Hub)(nil)

// HubConfig contains configuration for a Hub
type HubConfig struct {
	Namespace string
	Subsystem string
	Logger    *zap.Logger
}

// Hub is the server-wide table of coprocessor metric registries.
// There is one Registry per coprocessor class and no per-region
// registries: a class's metrics aggregate over every region
// on the server.
type Hub struct {
	namespace  string
	subsystem  string
	logger     *zap.Logger
	families   *familyIndex
	mu         sync.RWMutex
	registries map[string]*Registry
}

// NewHub creates an empty Hub
func NewHub(config HubConfig) *Hub {
	hub := &Hub{
		namespace:  config.Namespace,
		subsystem:  config.Subsystem,
		logger:     config.Logger,
		families:   newFamilyIndex(),
		registries: make(map[string]*Registry),
	}

	if hub.namespace == "" {
		hub.namespace = DefaultNamespace
	}

	if hub.subsystem == "" {
		hub.subsystem = DefaultSubsystem
	}

	if hub.logger == nil {
		hub.logger = zap.L()
	}

	return hub
}

// RegistryFor returns the registry for class, creating it on
// first use. Every call for the same class returns the same
// *Registry.
func (hub *Hub) RegistryFor(class string) *Registry {
	hub.mu.RLock()
	registry, ok := hub.registries[class]
	hub.mu.RUnlock()

	if ok {
		return registry
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()

	if registry, ok := hub.registries[class]; ok {
		return registry
	}

	registry = newRegistry(class, hub.namespace, hub.subsystem, hub.families)
	hub.registries[class] = registry
	hub.logger.Debug("created metric registry", zap.String("coprocessor", class))

	return registry
}

// Classes lists the classes that have a registry
func (hub *Hub) Classes() []string {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	classes := make([]string, 0, len(hub.registries))

	for class := range hub.registries {
		classes = append(classes, class)
	}

	sort.Strings(classes)

	return classes
}

// Gather implements prometheus.Gatherer. Families with the
// same name from different classes are merged. They always
// agree on kind and help because registries share one index
// of metric families.
func (hub *Hub) Gather() ([]*dto.MetricFamily, error) {
	hub.mu.RLock()
	gatherers := make(prometheus.Gatherers, 0, len(hub.registries))

	for _, registry := range hub.registries {
		gatherers = append(gatherers, registry.Gatherer())
	}

	hub.mu.RUnlock()

	return gatherers.Gather()
}
