package hashtrie

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveTable_SystemTimeRegression(t *testing.T) {
	lt := NewLiveTable(2, LiveTableOptions{Logger: testLogger(t), Verbose: true})
	idx, err := lt.Put(x("0001"), 10, 0, EndOfTime, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = lt.Delete(x("0002"), 10, 0, EndOfTime)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = lt.Put(x("0003"), 9, 0, EndOfTime, nil)
	assert.ErrorIs(t, err, ErrSystemTimeRegression)
	assert.Equal(t, 2, lt.RowCount())
	assert.Equal(t, 2, lt.Width())

	assert.Panics(t, func() { lt.Put(x("01"), 11, 0, EndOfTime, nil) })
}

func TestLiveTable_SnapshotIsolation(t *testing.T) {
	lt := NewLiveTable(1, LiveTableOptions{Trie: LiveOptions{LogLimit: 2, PageLimit: 2}, Logger: testLogger(t)})
	for sys := range int64(4) {
		_, err := lt.Put([]byte{byte(sys << 4)}, sys, 0, EndOfTime, nil)
		require.NoError(t, err)
	}
	snap := lt.Snapshot()
	for sys := int64(4); sys < 20; sys++ {
		_, err := lt.Put([]byte{byte(sys << 4)}, sys, 0, EndOfTime, nil)
		require.NoError(t, err)
	}

	assert.Equal(t, 4, snap.Relation().RowCount())
	var iids []string
	for ev, err := range Events([]Segment{snap}, ScanOptions{}) {
		require.NoError(t, err)
		iids = append(iids, hexstr(ev.IID))
	}
	assert.Equal(t, []string{"00", "10", "20", "30"}, iids)
	assert.Len(t, liveRows(lt.Snapshot().Trie()), 20)
}

func TestLiveTable_FindCandidates(t *testing.T) {
	lt := NewLiveTable(2, LiveTableOptions{Trie: LiveOptions{LogLimit: 3, PageLimit: 4}, Logger: testLogger(t)})
	var want []int
	for sys := range int64(30) {
		iid := x("aa00")
		if sys%3 != 0 {
			iid = []byte{byte(sys), 0x01}
		}
		idx, err := lt.Put(iid, sys, 0, EndOfTime, nil)
		require.NoError(t, err)
		if sys%3 == 0 {
			want = append([]int{idx}, want...)
		}
	}
	assert.Equal(t, want, lt.FindCandidates(x("aa00")))
	assert.Empty(t, lt.FindCandidates(x("bb00")))
}

func TestLiveTable_ConcurrentAppendAndSnapshot(t *testing.T) {
	lt := NewLiveTable(16, LiveTableOptions{Trie: LiveOptions{LogLimit: 8, PageLimit: 16}, Logger: testLogger(t)})
	r := newRand(4)
	iids := randomIIDs(r, 500, 16)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for sys, iid := range iids {
			if _, err := lt.Put(iid, int64(sys), 0, EndOfTime, nil); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	for range 20 {
		snap := lt.Snapshot()
		n := snap.Relation().RowCount()
		assert.Len(t, liveRows(snap.Trie()), n)
	}
	wg.Wait()
	assert.Equal(t, 500, lt.RowCount())
}

func TestLiveTable_Finish(t *testing.T) {
	s := OpenMem(Options{Logger: testLogger(t)})
	defer s.Close()
	lt := NewLiveTable(1, LiveTableOptions{Logger: testLogger(t)})
	_, err := lt.Put(x("10"), 1, 0, EndOfTime, []byte("a"))
	require.NoError(t, err)
	_, err = lt.Delete(x("10"), 2, 0, EndOfTime)
	require.NoError(t, err)

	key := TrieKey{Level: 0, BlockIndex: 4}
	meta, err := lt.Finish(s, key)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.RowCount)
	assert.Equal(t, 1, meta.PageCount)
	assert.Equal(t, int64(1), meta.MinSystemFrom)
	assert.Equal(t, int64(2), meta.MaxSystemFrom)

	seg, err := s.OpenSegment(key)
	require.NoError(t, err)
	defer seg.Close()
	events, err := Lookup([]Segment{seg}, x("10"), ScanOptions{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, OpDelete, events[0].Op)
	assert.Equal(t, []byte("a"), events[1].Doc)

	_, err = lt.Finish(s, key)
	assert.ErrorIs(t, err, ErrGenerationExists)
}
