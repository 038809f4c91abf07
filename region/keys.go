package region

import (
	"bytes"
)

// KeyRange represents all row keys such that
//
//	k >= Start and k < End
//
// An empty Start indicates the start of the table.
// An empty End indicates the end of the table.
type KeyRange struct {
	Start []byte
	End   []byte
}

// Contains returns true if row falls inside the range
func (r KeyRange) Contains(row []byte) bool {
	if bytes.Compare(row, r.Start) < 0 {
		return false
	}

	return len(r.End) == 0 || bytes.Compare(row, r.End) < 0
}

// Overlaps returns true if the two ranges share at least one key
func (r KeyRange) Overlaps(other KeyRange) bool {
	return compareEnd(r.Start, other.End) < 0 && compareEnd(other.Start, r.End) < 0
}

// compareEnd compares a start key against an end key
// where an empty end key sorts after every other key
func compareEnd(start []byte, end []byte) int {
	if len(end) == 0 {
		return -1
	}

	return bytes.Compare(start, end)
}
