package region_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/regionhost/region"
)

func TestKeyRangeContains(t *testing.T) {
	testCases := map[string]struct {
		keyRange region.KeyRange
		row      string
		result   bool
	}{
		"start-inclusive": {
			keyRange: region.KeyRange{Start: []byte("a"), End: []byte("m")},
			row:      "a",
			result:   true,
		},
		"end-exclusive": {
			keyRange: region.KeyRange{Start: []byte("a"), End: []byte("m")},
			row:      "m",
			result:   false,
		},
		"inside": {
			keyRange: region.KeyRange{Start: []byte("a"), End: []byte("m")},
			row:      "count",
			result:   true,
		},
		"before": {
			keyRange: region.KeyRange{Start: []byte("b"), End: []byte("m")},
			row:      "a",
			result:   false,
		},
		"open-end": {
			keyRange: region.KeyRange{Start: []byte("m")},
			row:      "zzz",
			result:   true,
		},
		"open-start": {
			keyRange: region.KeyRange{End: []byte("m")},
			row:      "",
			result:   true,
		},
		"whole-table": {
			keyRange: region.KeyRange{},
			row:      "anything",
			result:   true,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			if result := testCase.keyRange.Contains([]byte(testCase.row)); result != testCase.result {
				t.Fatalf("expected %v, got %v", testCase.result, result)
			}
		})
	}
}

func TestKeyRangeOverlaps(t *testing.T) {
	testCases := map[string]struct {
		a      region.KeyRange
		b      region.KeyRange
		result bool
	}{
		"adjacent": {
			a:      region.KeyRange{Start: []byte("a"), End: []byte("m")},
			b:      region.KeyRange{Start: []byte("m"), End: []byte("z")},
			result: false,
		},
		"overlapping": {
			a:      region.KeyRange{Start: []byte("a"), End: []byte("n")},
			b:      region.KeyRange{Start: []byte("m"), End: []byte("z")},
			result: true,
		},
		"open-ends": {
			a:      region.KeyRange{Start: []byte("a")},
			b:      region.KeyRange{Start: []byte("m")},
			result: true,
		},
		"whole-table": {
			a:      region.KeyRange{},
			b:      region.KeyRange{Start: []byte("m"), End: []byte("n")},
			result: true,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			if result := testCase.a.Overlaps(testCase.b); result != testCase.result {
				t.Fatalf("expected %v, got %v", testCase.result, result)
			}

			if result := testCase.b.Overlaps(testCase.a); result != testCase.result {
				t.Fatalf("expected symmetric result %v, got %v", testCase.result, result)
			}
		})
	}
}

func TestRegionInfoImmutable(t *testing.T) {
	start := []byte("a")
	end := []byte("m")
	info := region.NewRegionInfo("t1", start, end, 1)

	start[0] = 'x'
	end[0] = 'y'

	if diff := cmp.Diff([]byte("a"), info.StartKey()); diff != "" {
		t.Fatalf(diff)
	}

	info.EndKey()[0] = 'z'

	if diff := cmp.Diff([]byte("m"), info.EndKey()); diff != "" {
		t.Fatalf(diff)
	}
}

func TestRegionInfoNames(t *testing.T) {
	info := region.NewRegionInfo("t1", []byte("a"), []byte("m"), 42)
	same := region.NewRegionInfo("t1", []byte("a"), []byte("m"), 42)
	replica := region.NewReplicaRegionInfo("t1", []byte("a"), []byte("m"), 42, 1)

	if info.Name() != "t1,a,42" {
		t.Fatalf("unexpected name %s", info.Name())
	}

	if replica.Name() != "t1,a,42_0001" {
		t.Fatalf("unexpected replica name %s", replica.Name())
	}

	if len(info.EncodedName()) != 32 {
		t.Fatalf("expected a 32 character encoded name, got %s", info.EncodedName())
	}

	if info.EncodedName() != same.EncodedName() {
		t.Fatalf("expected encoded names to be stable")
	}

	if info.EncodedName() == replica.EncodedName() {
		t.Fatalf("expected replicas to have distinct encoded names")
	}

	if !info.Equal(same) || info.Equal(replica) {
		t.Fatalf("unexpected equality result")
	}

	if !info.ContainsRow([]byte("count")) || info.ContainsRow([]byte("z")) {
		t.Fatalf("unexpected ContainsRow result")
	}

	if (region.RegionInfo{}).IsZero() != true || info.IsZero() {
		t.Fatalf("unexpected IsZero result")
	}
}

func TestServerName(t *testing.T) {
	serverName := region.ServerName{Host: "rs1.example.com", Port: 16020, StartCode: 1700000000000}

	if serverName.String() != "rs1.example.com,16020,1700000000000" {
		t.Fatalf("unexpected string %s", serverName.String())
	}

	if serverName.Address() != "rs1.example.com:16020" {
		t.Fatalf("unexpected address %s", serverName.Address())
	}

	parsed, err := region.ParseServerName(serverName.String())

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff(serverName, parsed); diff != "" {
		t.Fatalf(diff)
	}

	for _, invalid := range []string{"", "host,port", "host,abc,1", "host,1,abc"} {
		if _, err := region.ParseServerName(invalid); err == nil {
			t.Fatalf("expected an error parsing %q", invalid)
		}
	}
}

type engineRegion struct {
	info region.RegionInfo
}

func (r *engineRegion) Info() region.RegionInfo { return r.info }
func (r *engineRegion) IsAvailable() bool       { return true }
func (r *engineRegion) Flush() error            { return nil }

func TestReadOnly(t *testing.T) {
	r := &engineRegion{info: region.NewRegionInfo("t1", nil, nil, 1)}
	view := region.ReadOnly(r)

	if _, ok := view.(interface{ Flush() error }); ok {
		t.Fatalf("expected read-only view to hide engine methods")
	}

	if !view.Info().Equal(r.info) || !view.IsAvailable() {
		t.Fatalf("expected view to delegate to the region")
	}

	if region.ReadOnly(view) != view {
		t.Fatalf("expected ReadOnly to not double wrap")
	}
}
