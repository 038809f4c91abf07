package metrics_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/regionhost/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistryForIdentity(t *testing.T) {
	hub := metrics.NewHub(metrics.HubConfig{})

	var wg sync.WaitGroup

	registries := make([]*metrics.Registry, 32)

	for i := range registries {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			registries[i] = hub.RegistryFor("Audit")
		}(i)
	}

	wg.Wait()

	for _, registry := range registries {
		if registry != registries[0] {
			t.Fatalf("expected every lookup to return the identical registry")
		}
	}

	if hub.RegistryFor("Index") == registries[0] {
		t.Fatalf("expected a different registry for a different class")
	}

	if diff := cmp.Diff([]string{"Audit", "Index"}, hub.Classes()); diff != "" {
		t.Fatalf(diff)
	}
}

func TestSharedInstruments(t *testing.T) {
	hub := metrics.NewHub(metrics.HubConfig{})

	// Two regions hosting the same class
	first, err := hub.RegistryFor("Audit").Counter("puts_total", "puts observed")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	second, err := hub.RegistryFor("Audit").Counter("puts_total", "puts observed")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	first.Inc()
	second.Add(2)

	if value := testutil.ToFloat64(first); value != 3 {
		t.Fatalf("expected 3, got %v", value)
	}
}

func TestMetricKind(t *testing.T) {
	registry := metrics.NewHub(metrics.HubConfig{}).RegistryFor("Audit")

	if _, err := registry.Gauge("open_scanners", "open scanners"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if _, err := registry.Counter("open_scanners", "open scanners"); !errors.Is(err, metrics.ErrMetricKind) {
		t.Fatalf("expected ErrMetricKind, got %#v", err)
	}

	if _, err := registry.Timer("open_scanners", "open scanners"); !errors.Is(err, metrics.ErrMetricKind) {
		t.Fatalf("expected ErrMetricKind, got %#v", err)
	}
}

func TestRemove(t *testing.T) {
	registry := metrics.NewHub(metrics.HubConfig{}).RegistryFor("Audit")
	registry.Counter("a_total", "a")
	registry.Gauge("b", "b")

	if diff := cmp.Diff([]string{"a_total", "b"}, registry.Names()); diff != "" {
		t.Fatalf(diff)
	}

	if !registry.Remove("a_total") || registry.Remove("a_total") {
		t.Fatalf("unexpected Remove result")
	}

	// A removed name can be reused with another kind
	if _, err := registry.Gauge("a_total", "a"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}
}

func TestGather(t *testing.T) {
	hub := metrics.NewHub(metrics.HubConfig{Namespace: "test"})

	audit, _ := hub.RegistryFor("Audit").Counter("calls_total", "calls")
	index, _ := hub.RegistryFor("Index").Counter("calls_total", "calls")
	timer, _ := hub.RegistryFor("Audit").Timer("call_seconds", "call latency")

	audit.Inc()
	index.Add(5)
	timer.Observe(10 * time.Millisecond)
	timer.Time(func() {})

	families, err := hub.Gather()

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	values := map[string]float64{}
	histograms := map[string]uint64{}

	for _, family := range families {
		for _, metric := range family.GetMetric() {
			var class string

			for _, label := range metric.GetLabel() {
				if label.GetName() == metrics.CoprocessorLabel {
					class = label.GetValue()
				}
			}

			switch family.GetName() {
			case "test_coprocessor_calls_total":
				values[class] = metric.GetCounter().GetValue()
			case "test_coprocessor_call_seconds":
				histograms[class] = metric.GetHistogram().GetSampleCount()
			}
		}
	}

	if diff := cmp.Diff(map[string]float64{"Audit": 1, "Index": 5}, values); diff != "" {
		t.Fatalf(diff)
	}

	if diff := cmp.Diff(map[string]uint64{"Audit": 2}, histograms); diff != "" {
		t.Fatalf(diff)
	}
}

func TestGatherSharedNameAcrossClasses(t *testing.T) {
	hub := metrics.NewHub(metrics.HubConfig{Namespace: "test"})

	audit, err := hub.RegistryFor("Audit").Counter("requests_total", "requests audited")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	index, err := hub.RegistryFor("Index").Counter("requests_total", "requests indexed")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	audit.Inc()
	index.Inc()

	families, err := hub.Gather()

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	var found int

	for _, family := range families {
		if family.GetName() != "test_coprocessor_requests_total" {
			continue
		}

		found++

		if family.GetHelp() != "requests audited" {
			t.Fatalf("expected help of the first class, got %q", family.GetHelp())
		}

		if len(family.GetMetric()) != 2 {
			t.Fatalf("expected 2 metrics, got %d", len(family.GetMetric()))
		}
	}

	if found != 1 {
		t.Fatalf("expected 1 family, got %d", found)
	}

	if _, err := hub.RegistryFor("Search").Gauge("requests_total", "requests"); !errors.Is(err, metrics.ErrMetricKind) {
		t.Fatalf("expected ErrMetricKind, got %#v", err)
	}

	// Once every class releases a name it can take another kind
	hub.RegistryFor("Audit").Remove("requests_total")
	hub.RegistryFor("Index").Remove("requests_total")

	if _, err := hub.RegistryFor("Search").Gauge("requests_total", "requests"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}
}
