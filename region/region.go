package region

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// RegionInfo is an immutable descriptor for a region.
// A region is a contiguous range of row keys in a table.
// The zero value is not a valid region.
type RegionInfo struct {
	table     string
	startKey  []byte
	endKey    []byte
	regionID  int64
	replicaID int
	name      string
	encoded   string
}

// NewRegionInfo creates a RegionInfo. The key slices
// are copied so later changes to them by the caller
// are not observed.
func NewRegionInfo(table string, startKey, endKey []byte, regionID int64) RegionInfo {
	return NewReplicaRegionInfo(table, startKey, endKey, regionID, 0)
}

// NewReplicaRegionInfo creates a RegionInfo for a read
// replica of a region. Replica 0 is the default replica.
func NewReplicaRegionInfo(table string, startKey, endKey []byte, regionID int64, replicaID int) RegionInfo {
	info := RegionInfo{
		table:     table,
		startKey:  clone(startKey),
		endKey:    clone(endKey),
		regionID:  regionID,
		replicaID: replicaID,
	}

	info.name = fmt.Sprintf("%s,%s,%d", table, startKey, regionID)

	if replicaID != 0 {
		info.name = fmt.Sprintf("%s_%04d", info.name, replicaID)
	}

	sum := md5.Sum([]byte(info.name))
	info.encoded = hex.EncodeToString(sum[:])

	return info
}

// Table returns the name of the table this region belongs to
func (info RegionInfo) Table() string {
	return info.table
}

// StartKey returns a copy of the first row key in the region
func (info RegionInfo) StartKey() []byte {
	return clone(info.startKey)
}

// EndKey returns a copy of the row key directly after
// the last row key in the region
func (info RegionInfo) EndKey() []byte {
	return clone(info.endKey)
}

// RegionID returns the region's id, usually its creation time
func (info RegionInfo) RegionID() int64 {
	return info.regionID
}

// ReplicaID returns the replica id
func (info RegionInfo) ReplicaID() int {
	return info.replicaID
}

// Name returns the full region name
func (info RegionInfo) Name() string {
	return info.name
}

// EncodedName returns a fixed-length encoding of the region
// name that is safe to use as a map key or file name
func (info RegionInfo) EncodedName() string {
	return info.encoded
}

// KeyRange returns the range of row keys covered by the region
func (info RegionInfo) KeyRange() KeyRange {
	return KeyRange{Start: info.StartKey(), End: info.EndKey()}
}

// ContainsRow returns true if row belongs to this region
func (info RegionInfo) ContainsRow(row []byte) bool {
	return KeyRange{Start: info.startKey, End: info.endKey}.Contains(row)
}

// Equal returns true if both descriptors identify the same region
func (info RegionInfo) Equal(other RegionInfo) bool {
	return info.table == other.table &&
		info.regionID == other.regionID &&
		info.replicaID == other.replicaID &&
		bytes.Equal(info.startKey, other.startKey) &&
		bytes.Equal(info.endKey, other.endKey)
}

// IsZero returns true if info was never initialized
func (info RegionInfo) IsZero() bool {
	return info.name == ""
}

// String implements fmt.Stringer
func (info RegionInfo) String() string {
	return fmt.Sprintf("{name: %s, encoded: %s, start: %q, end: %q}", info.name, info.encoded, info.startKey, info.endKey)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}

	c := make([]byte, len(b))
	copy(c, b)

	return c
}

// Region is the storage engine's view of a live region.
// This package does not implement regions. It only
// describes the parts that coprocessor hosting relies on.
type Region interface {
	// Info returns the region's descriptor
	Info() RegionInfo
	// IsAvailable returns true if the region is open
	// and serving requests
	IsAvailable() bool
}

// OnlineRegions is a read-only view of the regions
// currently online on a server. Results reflect a
// recent state of the server, not necessarily the
// state at the instant of the call.
type OnlineRegions interface {
	// OnlineRegion returns the online region with this
	// encoded name
	OnlineRegion(encodedName string) (Region, bool)
	// OnlineRegionsForTable returns the online regions
	// of a table sorted by start key
	OnlineRegionsForTable(table string) []Region
	// OnlineRegions returns every online region
	OnlineRegions() []Region
}

// ReadOnly wraps a region so that callers can only reach
// the methods of the Region interface, even if the
// underlying implementation exposes more.
func ReadOnly(region Region) Region {
	if _, ok := region.(readOnlyRegion); ok {
		return region
	}

	return readOnlyRegion{region: region}
}

type readOnlyRegion struct {
	region Region
}

func (r readOnlyRegion) Info() RegionInfo {
	return r.region.Info()
}

func (r readOnlyRegion) IsAvailable() bool {
	return r.region.IsAvailable()
}
