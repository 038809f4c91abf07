package regionserver

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/jrife/regionhost/region"
	"github.com/jrife/regionhost/utils/observable_map"
)

// RegionObserver is an observer callback for an
// onlineRegionsIndex
type RegionObserver func(r region.Region)

type onlineEntry struct {
	region region.Region
	refs   int
}

var _ region.OnlineRegions = (*onlineRegionsIndex)(nil)

// onlineRegionsIndex is a type-safe wrapper for ObservableMap
// that maps encoded region names to the regions online on this
// server. A region stays online while it holds at least one
// reference. Only the Host writes to it. Reads never block and
// see a recent snapshot.
type onlineRegionsIndex struct {
	regions *observable_map.ObservableMap
}

func newOnlineRegionsIndex() *onlineRegionsIndex {
	return &onlineRegionsIndex{
		regions: observable_map.New(),
	}
}

func (index *onlineRegionsIndex) ensureInvariants(r region.Region) {
	if r == nil {
		panic("nil region")
	}

	if r.Info().IsZero() {
		panic("region has no descriptor")
	}
}

// acquire adds a reference to r, bringing it online if
// it wasn't. It fails with ErrRegionConflict, leaving the
// index unchanged, if a different region is already online
// under the same encoded name. Writers are serialized by
// the Host.
func (index *onlineRegionsIndex) acquire(r region.Region) error {
	index.ensureInvariants(r)

	info := r.Info()

	if err := index.checkConflict(info); err != nil {
		return err
	}

	index.regions.Update(info.EncodedName(), func(value interface{}, ok bool) (interface{}, bool) {
		if !ok {
			return onlineEntry{region: region.ReadOnly(r), refs: 1}, true
		}

		entry := value.(onlineEntry)
		entry.refs++

		return entry, true
	})

	return nil
}

// checkConflict returns ErrRegionConflict if a region other
// than info is online under info's encoded name
func (index *onlineRegionsIndex) checkConflict(info region.RegionInfo) error {
	online, ok := index.OnlineRegion(info.EncodedName())

	if !ok || online.Info().Equal(info) {
		return nil
	}

	return fmt.Errorf("%s conflicts with online region %s: %w", info.Name(), online.Info().Name(), ErrRegionConflict)
}

// release drops a reference to the region. The region goes
// offline when its last reference is dropped.
func (index *onlineRegionsIndex) release(info region.RegionInfo) {
	index.regions.Update(info.EncodedName(), func(value interface{}, ok bool) (interface{}, bool) {
		if !ok {
			return nil, false
		}

		entry := value.(onlineEntry)
		entry.refs--

		return entry, entry.refs > 0
	})
}

// OnlineRegion implements region.OnlineRegions
func (index *onlineRegionsIndex) OnlineRegion(encodedName string) (region.Region, bool) {
	value, ok := index.regions.Get(encodedName)

	if !ok {
		return nil, false
	}

	return value.(onlineEntry).region, true
}

// OnlineRegionsForTable implements region.OnlineRegions
func (index *onlineRegionsIndex) OnlineRegionsForTable(table string) []region.Region {
	regions := []region.Region{}

	index.regions.Range(func(key, value interface{}) bool {
		if r := value.(onlineEntry).region; r.Info().Table() == table {
			regions = append(regions, r)
		}

		return true
	})

	sort.Slice(regions, func(i, j int) bool {
		return bytes.Compare(regions[i].Info().StartKey(), regions[j].Info().StartKey()) < 0
	})

	return regions
}

// OnlineRegions implements region.OnlineRegions
func (index *onlineRegionsIndex) OnlineRegions() []region.Region {
	regions := make([]region.Region, 0, index.regions.Len())

	index.regions.Range(func(key, value interface{}) bool {
		regions = append(regions, value.(onlineEntry).region)

		return true
	})

	sort.Slice(regions, func(i, j int) bool {
		return regions[i].Info().Name() < regions[j].Info().Name()
	})

	return regions
}

// OnAdd registers an observer for regions coming online
func (index *onlineRegionsIndex) OnAdd(cb RegionObserver) {
	index.regions.OnAdd(func(key interface{}, value interface{}) {
		cb(value.(onlineEntry).region)
	})
}

// OnDelete registers an observer for regions going offline
func (index *onlineRegionsIndex) OnDelete(cb RegionObserver) {
	index.regions.OnDelete(func(key interface{}, value interface{}) {
		cb(value.(onlineEntry).region)
	})
}
