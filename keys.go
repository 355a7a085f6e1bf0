package hashtrie

import (
	"bytes"
	"cmp"
	"fmt"
)

// KeySource gives the trie access to the identity keys of row indices. The
// trie never copies key bytes, it only holds row indices.
type KeySource interface {
	// BucketFor returns the nibble of the row's identity key at level.
	BucketFor(idx, level int) int

	// Compare orders two row indices. The trie's sortedness and the
	// collapsing policy are both defined by this ordering.
	Compare(left, right int) int
}

// KeyColumn is anything that can hand out the identity key of a row. Every
// key of a column has Width bytes.
type KeyColumn interface {
	IID(idx int) []byte
	Width() int
}

// IIDColumn is a fixed-width identity key column.
type IIDColumn struct {
	width int
	data  []byte
}

func NewIIDColumn(width int) IIDColumn {
	if width <= 0 {
		panic(fmt.Errorf("invalid iid width %d", width))
	}
	return IIDColumn{width: width}
}

func (c IIDColumn) Width() int { return c.width }

func (c IIDColumn) Len() int {
	if c.width == 0 {
		return 0
	}
	return len(c.data) / c.width
}

// IID returns the key of row idx. The returned slice aliases the column.
func (c IIDColumn) IID(idx int) []byte {
	off := idx * c.width
	return c.data[off : off+c.width : off+c.width]
}

// Append returns the column with iid appended.
func (c IIDColumn) Append(iid []byte) IIDColumn {
	if len(iid) != c.width {
		panic(fmt.Errorf("iid %x has %d bytes, column width is %d", iid, len(iid), c.width))
	}
	c.data = append(c.data, iid...)
	return c
}

// IIDKeys is the KeySource of a fixed-width iid column. Rows are ordered by
// key bytes, then by row index descending, so later insertions of the same
// key sort first and the order is total.
type IIDKeys struct {
	col KeyColumn
}

func NewIIDKeys(col KeyColumn) IIDKeys {
	return IIDKeys{col: col}
}

func (k IIDKeys) IID(idx int) []byte {
	return k.col.IID(idx)
}

func (k IIDKeys) Width() int {
	return k.col.Width()
}

func (k IIDKeys) BucketFor(idx, level int) int {
	return BucketFor(k.col.IID(idx), level)
}

func (k IIDKeys) Compare(left, right int) int {
	if c := bytes.Compare(k.col.IID(left), k.col.IID(right)); c != 0 {
		return c
	}
	return cmp.Compare(right, left)
}

// Collapsing returns a KeySource that compares by key bytes only, so rows
// with the same iid compare equal. Pair it with CollapseDuplicates.
func (k IIDKeys) Collapsing() KeySource {
	return collapsingKeys{k}
}

type collapsingKeys struct {
	IIDKeys
}

func (k collapsingKeys) Compare(left, right int) int {
	return bytes.Compare(k.col.IID(left), k.col.IID(right))
}
