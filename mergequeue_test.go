package hashtrie

import (
	"bytes"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mergedRow struct {
	iid     string
	sys     int64
	ordinal int
}

func compareMergedRows(a, b mergedRow) int {
	if c := bytes.Compare([]byte(a.iid), []byte(b.iid)); c != 0 {
		return c
	}
	if a.sys != b.sys {
		if a.sys > b.sys {
			return -1
		}
		return 1
	}
	return b.ordinal - a.ordinal
}

func TestLeafMergeQueue_MatchesGlobalSort(t *testing.T) {
	r := newRand(11)
	pool := randomIIDs(r, 30, 2)

	var want []mergedRow
	var lps []*LeafPointer
	for ord := range 5 {
		seen := map[string]bool{}
		var rows []row
		for range 40 {
			iid := pool[r.IntN(len(pool))]
			sys := int64(r.IntN(20))
			k := string(iid) + string(rune(sys))
			if seen[k] {
				continue
			}
			seen[k] = true
			rows = append(rows, row{iid, sys})
		}
		rel := sortedEvents(2, rows)
		for i := range rel.RowCount() {
			want = append(want, mergedRow{string(rel.IID(i)), rel.SystemFrom(i), ord})
		}
		lps = append(lps, &LeafPointer{Ordinal: ord, RowPointer: NewRowPointer(rel, Path{})})
	}
	slices.SortFunc(want, compareMergedRows)

	var got []mergedRow
	q := NewLeafMergeQueue(Path{}, lps)
	err := q.Merge(func(lp *LeafPointer) (bool, error) {
		got = append(got, mergedRow{string(lp.IID()), lp.SystemFrom(), lp.Ordinal})
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Zero(t, q.Len())
	assert.Nil(t, q.Poll())
}

func TestLeafMergeQueue_PathBounds(t *testing.T) {
	a := sortedEvents(1, []row{{x("05"), 1}, {x("12"), 1}, {x("1f"), 1}, {x("20"), 1}})
	b := sortedEvents(1, []row{{x("10"), 2}, {x("30"), 2}})
	c := sortedEvents(1, []row{{x("40"), 3}})

	path := Path{0x1}
	q := NewLeafMergeQueue(path, []*LeafPointer{
		{Ordinal: 0, RowPointer: NewRowPointer(a, path)},
		{Ordinal: 1, RowPointer: NewRowPointer(b, path)},
		{Ordinal: 2, RowPointer: NewRowPointer(c, path)},
		nil,
	})
	assert.Equal(t, path, q.Path())
	assert.Equal(t, 2, q.Len(), "c has nothing under %v", path)

	var got [][]byte
	require.NoError(t, q.Merge(func(lp *LeafPointer) (bool, error) {
		got = append(got, lp.IID())
		return true, nil
	}))
	assert.Equal(t, [][]byte{x("10"), x("12"), x("1f")}, got)
}

func TestLeafMergeQueue_PollAdvance(t *testing.T) {
	a := sortedEvents(1, []row{{x("01"), 1}, {x("03"), 1}})
	b := sortedEvents(1, []row{{x("01"), 1}, {x("02"), 1}})
	q := NewLeafMergeQueue(Path{}, []*LeafPointer{
		{Ordinal: 0, RowPointer: NewRowPointer(a, Path{})},
		{Ordinal: 1, RowPointer: NewRowPointer(b, Path{})},
	})

	lp := q.Poll()
	assert.Equal(t, 1, lp.Ordinal, "the newer generation wins a tie")
	q.Advance(lp)
	lp = q.Poll()
	assert.Equal(t, 0, lp.Ordinal)
	assert.Equal(t, x("01"), lp.IID())
	q.Advance(lp)
	lp = q.Poll()
	assert.Equal(t, x("02"), lp.IID())
	q.Advance(lp)
	assert.Equal(t, 1, q.Len())
}

func TestLeafMergeQueue_StopAndError(t *testing.T) {
	mk := func() *LeafMergeQueue {
		rel := sortedEvents(1, []row{{x("01"), 1}, {x("02"), 1}, {x("03"), 1}})
		return NewLeafMergeQueue(Path{}, []*LeafPointer{{Ordinal: 0, RowPointer: NewRowPointer(rel, Path{})}})
	}

	var n int
	require.NoError(t, mk().Merge(func(*LeafPointer) (bool, error) {
		n++
		return n < 2, nil
	}))
	assert.Equal(t, 2, n)

	boom := errors.New("boom")
	err := mk().Merge(func(*LeafPointer) (bool, error) {
		return true, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestLeafMergeQueue_DuplicateOrdinalPanics(t *testing.T) {
	rel := sortedEvents(1, []row{{x("01"), 1}})
	assert.Panics(t, func() {
		NewLeafMergeQueue(Path{}, []*LeafPointer{
			{Ordinal: 3, RowPointer: NewRowPointer(rel, Path{})},
			{Ordinal: 3, RowPointer: NewRowPointer(rel, Path{})},
		})
	})
}
