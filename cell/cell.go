package cell

import (
	"bytes"
	"fmt"
	"math"
)

// LatestTimestamp tells the storage engine to stamp
// the cell with the server time when it is written.
const LatestTimestamp int64 = math.MaxInt64

// Type is the kind of mutation a cell represents
type Type byte

const (
	// TypePut stores a value
	TypePut Type = 4
	// TypeDelete deletes one version of a column
	TypeDelete Type = 8
	// TypeDeleteFamilyVersion deletes all columns of a family with a given timestamp
	TypeDeleteFamilyVersion Type = 10
	// TypeDeleteColumn deletes all versions of a column
	TypeDeleteColumn Type = 12
	// TypeDeleteFamily deletes all versions of all columns of a family
	TypeDeleteFamily Type = 14
)

// String implements fmt.Stringer
func (t Type) String() string {
	switch t {
	case TypePut:
		return "Put"
	case TypeDelete:
		return "Delete"
	case TypeDeleteFamilyVersion:
		return "DeleteFamilyVersion"
	case TypeDeleteColumn:
		return "DeleteColumn"
	case TypeDeleteFamily:
		return "DeleteFamily"
	}

	return fmt.Sprintf("Type(%d)", byte(t))
}

func (t Type) valid() bool {
	switch t {
	case TypePut, TypeDelete, TypeDeleteFamilyVersion, TypeDeleteColumn, TypeDeleteFamily:
		return true
	}

	return false
}

// Tag is a piece of metadata attached to a cell that
// is not part of its user-visible value
type Tag struct {
	Type  byte
	Value []byte
}

// Cell is an immutable unit of data addressed by
// row, family, qualifier and timestamp. Cells built
// by coprocessors carry no sequence id. The storage
// engine assigns one when the cell is written, so no
// ordering between built cells can be assumed.
type Cell struct {
	row       []byte
	family    []byte
	qualifier []byte
	timestamp int64
	typ       Type
	value     []byte
	tags      []Tag
}

// Row returns a copy of the row key
func (c Cell) Row() []byte {
	return clone(c.row)
}

// Family returns a copy of the column family
func (c Cell) Family() []byte {
	return clone(c.family)
}

// Qualifier returns a copy of the column qualifier
func (c Cell) Qualifier() []byte {
	return clone(c.qualifier)
}

// Timestamp returns the cell timestamp
func (c Cell) Timestamp() int64 {
	return c.timestamp
}

// Type returns the cell type
func (c Cell) Type() Type {
	return c.typ
}

// Value returns a copy of the value
func (c Cell) Value() []byte {
	return clone(c.value)
}

// Tags returns a copy of the tags
func (c Cell) Tags() []Tag {
	return cloneTags(c.tags)
}

// Tag returns the first tag with this type
func (c Cell) Tag(tagType byte) (Tag, bool) {
	for _, tag := range c.tags {
		if tag.Type == tagType {
			return Tag{Type: tag.Type, Value: clone(tag.Value)}, true
		}
	}

	return Tag{}, false
}

// Equal returns true if both cells have the same
// coordinates, type, value, and tags
func (c Cell) Equal(other Cell) bool {
	if !bytes.Equal(c.row, other.row) ||
		!bytes.Equal(c.family, other.family) ||
		!bytes.Equal(c.qualifier, other.qualifier) ||
		c.timestamp != other.timestamp ||
		c.typ != other.typ ||
		!bytes.Equal(c.value, other.value) ||
		len(c.tags) != len(other.tags) {
		return false
	}

	for i := range c.tags {
		if c.tags[i].Type != other.tags[i].Type || !bytes.Equal(c.tags[i].Value, other.tags[i].Value) {
			return false
		}
	}

	return true
}

// String implements fmt.Stringer
func (c Cell) String() string {
	return fmt.Sprintf("%q/%s:%s/%d/%s/vlen=%d", c.row, c.family, c.qualifier, c.timestamp, c.typ, len(c.value))
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}

	c := make([]byte, len(b))
	copy(c, b)

	return c
}

func cloneTags(tags []Tag) []Tag {
	if tags == nil {
		return nil
	}

	c := make([]Tag, len(tags))

	for i, tag := range tags {
		c[i] = Tag{Type: tag.Type, Value: clone(tag.Value)}
	}

	return c
}
