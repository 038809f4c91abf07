package connection

import (
	"context"
	"fmt"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/jrife/regionhost/region"
)

// Location says which server hosts a region
type Location struct {
	Region region.RegionInfo
	Server region.ServerName
}

// Locator resolves calls to locations
type Locator interface {
	// Locate returns the location of the region containing row
	Locate(ctx context.Context, table string, row []byte) (Location, error)
	// LocateRegion returns the location of the region with
	// this encoded name
	LocateRegion(ctx context.Context, encodedName string) (Location, error)
}

// locationTable indexes locations by table and start key.
// It is not safe for concurrent use.
type locationTable struct {
	tables    map[string]*treemap.Map
	byEncoded map[string]Location
}

func newLocationTable() *locationTable {
	return &locationTable{
		tables:    map[string]*treemap.Map{},
		byEncoded: map[string]Location{},
	}
}

func (table *locationTable) put(location Location) {
	info := location.Region
	regions, ok := table.tables[info.Table()]

	if !ok {
		regions = treemap.NewWithStringComparator()
		table.tables[info.Table()] = regions
	}

	// A region replacing another one with the same start key
	// (a reopened or moved region) must also disappear from the
	// encoded index
	if old, ok := regions.Get(string(info.StartKey())); ok {
		delete(table.byEncoded, old.(Location).Region.EncodedName())
	}

	regions.Put(string(info.StartKey()), location)
	table.byEncoded[info.EncodedName()] = location
}

func (table *locationTable) remove(encodedName string) {
	location, ok := table.byEncoded[encodedName]

	if !ok {
		return
	}

	delete(table.byEncoded, encodedName)

	if regions, ok := table.tables[location.Region.Table()]; ok {
		regions.Remove(string(location.Region.StartKey()))

		if regions.Empty() {
			delete(table.tables, location.Region.Table())
		}
	}
}

func (table *locationTable) locate(tableName string, row []byte) (Location, bool) {
	regions, ok := table.tables[tableName]

	if !ok {
		return Location{}, false
	}

	_, value := regions.Floor(string(row))

	if value == nil {
		return Location{}, false
	}

	location := value.(Location)

	if !location.Region.ContainsRow(row) {
		return Location{}, false
	}

	return location, true
}

func (table *locationTable) locateRegion(encodedName string) (Location, bool) {
	location, ok := table.byEncoded[encodedName]

	return location, ok
}

var _ Locator = (*StaticLocator)(nil)

// StaticLocator is a Locator over a fixed set of locations
type StaticLocator struct {
	locations *locationTable
}

// NewStaticLocator creates a StaticLocator. Later locations
// replace earlier ones with the same table and start key.
func NewStaticLocator(locations ...Location) *StaticLocator {
	locator := &StaticLocator{locations: newLocationTable()}

	for _, location := range locations {
		locator.locations.put(location)
	}

	return locator
}

// Locate implements Locator
func (locator *StaticLocator) Locate(ctx context.Context, table string, row []byte) (Location, error) {
	location, ok := locator.locations.locate(table, row)

	if !ok {
		return Location{}, fmt.Errorf("table %s row %q: %w", table, row, ErrNoLocation)
	}

	return location, nil
}

// LocateRegion implements Locator
func (locator *StaticLocator) LocateRegion(ctx context.Context, encodedName string) (Location, error) {
	location, ok := locator.locations.locateRegion(encodedName)

	if !ok {
		return Location{}, fmt.Errorf("region %s: %w", encodedName, ErrNoLocation)
	}

	return location, nil
}

// locationCache remembers locations resolved by a Locator
type locationCache struct {
	mu        sync.Mutex
	locations *locationTable
}

func newLocationCache() *locationCache {
	return &locationCache{locations: newLocationTable()}
}

func (cache *locationCache) locate(table string, row []byte) (Location, bool) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	return cache.locations.locate(table, row)
}

func (cache *locationCache) locateRegion(encodedName string) (Location, bool) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	return cache.locations.locateRegion(encodedName)
}

func (cache *locationCache) put(location Location) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.locations.put(location)
}

func (cache *locationCache) invalidate(encodedName string) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.locations.remove(encodedName)
}
