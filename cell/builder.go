package cell

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingRow is returned by Build when no row was set
	ErrMissingRow = errors.New("cell: row is required")
	// ErrMissingFamily is returned by Build when a put has no family
	ErrMissingFamily = errors.New("cell: family is required")
	// ErrInvalidType is returned by Build when the type is unknown
	ErrInvalidType = errors.New("cell: invalid type")
)

// Builder builds cells. Setters copy their arguments
// so the caller may reuse its buffers. A Builder is not
// safe for concurrent use, but it may be reused after
// Build or Clear. There is deliberately no way to set
// a sequence id.
type Builder struct {
	row       []byte
	family    []byte
	qualifier []byte
	timestamp int64
	typ       Type
	value     []byte
	tags      []Tag
}

// NewBuilder returns an empty builder
func NewBuilder() *Builder {
	builder := &Builder{}

	return builder.Clear()
}

// SetRow sets the row key
func (builder *Builder) SetRow(row []byte) *Builder {
	builder.row = clone(row)

	return builder
}

// SetFamily sets the column family
func (builder *Builder) SetFamily(family []byte) *Builder {
	builder.family = clone(family)

	return builder
}

// SetQualifier sets the column qualifier
func (builder *Builder) SetQualifier(qualifier []byte) *Builder {
	builder.qualifier = clone(qualifier)

	return builder
}

// SetTimestamp sets the timestamp. The default is LatestTimestamp.
func (builder *Builder) SetTimestamp(timestamp int64) *Builder {
	builder.timestamp = timestamp

	return builder
}

// SetType sets the type. The default is TypePut.
func (builder *Builder) SetType(typ Type) *Builder {
	builder.typ = typ

	return builder
}

// SetValue sets the value
func (builder *Builder) SetValue(value []byte) *Builder {
	builder.value = clone(value)

	return builder
}

// SetTags replaces the tags
func (builder *Builder) SetTags(tags []Tag) *Builder {
	builder.tags = cloneTags(tags)

	return builder
}

// AddTag appends a tag
func (builder *Builder) AddTag(tag Tag) *Builder {
	builder.tags = append(builder.tags, Tag{Type: tag.Type, Value: clone(tag.Value)})

	return builder
}

// Clear resets the builder to its initial state
func (builder *Builder) Clear() *Builder {
	*builder = Builder{
		timestamp: LatestTimestamp,
		typ:       TypePut,
	}

	return builder
}

// Build returns a new cell. The builder keeps its state
// so that similar cells can be built by changing only
// a few fields.
func (builder *Builder) Build() (Cell, error) {
	if len(builder.row) == 0 {
		return Cell{}, ErrMissingRow
	}

	if !builder.typ.valid() {
		return Cell{}, fmt.Errorf("%w: %d", ErrInvalidType, byte(builder.typ))
	}

	if builder.typ == TypePut && len(builder.family) == 0 {
		return Cell{}, ErrMissingFamily
	}

	return Cell{
		row:       clone(builder.row),
		family:    clone(builder.family),
		qualifier: clone(builder.qualifier),
		timestamp: builder.timestamp,
		typ:       builder.typ,
		value:     clone(builder.value),
		tags:      cloneTags(builder.tags),
	}, nil
}
