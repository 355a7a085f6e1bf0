package hashtrie

import (
	"bytes"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// liveSegment builds a live segment over puts of the given (iid, sys) rows,
// appended in the given order.
func liveSegment(width int, opt LiveOptions, rows ...row) *LiveSegment {
	rel := NewEventRelation(width)
	for _, r := range rows {
		rel.Append(Event{IID: r.iid, SystemFrom: r.sys, ValidFrom: r.sys, ValidTo: EndOfTime, Doc: []byte{byte(r.sys)}})
	}
	trie := NewLiveTrie(NewIIDKeys(rel), opt)
	for idx := range rel.RowCount() {
		trie = trie.Add(idx)
	}
	return NewLiveSegment(trie, rel)
}

func taskPaths(tasks []MergeTask) []string {
	var paths []string
	for _, task := range tasks {
		paths = append(paths, task.Path.String())
	}
	return paths
}

func TestMergePlan_LeafCarriedIntoBranches(t *testing.T) {
	split := liveSegment(1, LiveOptions{LogLimit: 1, PageLimit: 1, MaxLevel: MaxLevel(1)},
		row{x("10"), 1}, row{x("30"), 2}, row{x("50"), 3})
	flat := liveSegment(1, LiveOptions{MaxLevel: MaxLevel(1)}, row{x("30"), 4})
	require.IsType(t, &LiveBranch{}, split.RootNode())
	require.IsType(t, &LiveLeaf{}, flat.RootNode())

	tasks := MergePlan([]Segment{split, flat}, nil)

	// split has leaves at 1, 3 and 5; flat's root leaf joins every bucket.
	require.Len(t, tasks, LevelWidth)
	for _, task := range tasks {
		var ordinals []int
		for _, ml := range task.Leaves {
			ordinals = append(ordinals, ml.Ordinal)
		}
		switch task.Path.String() {
		case "1", "3", "5":
			assert.Equal(t, []int{0, 1}, ordinals, "path %v", task.Path)
		default:
			assert.Equal(t, []int{1}, ordinals, "path %v", task.Path)
		}
		assert.Same(t, flat.RootNode(), task.Leaves[len(task.Leaves)-1].Leaf)
	}
}

func TestMergePlan_AbsentAndPruned(t *testing.T) {
	opt := LiveOptions{LogLimit: 1, PageLimit: 1, MaxLevel: MaxLevel(1)}
	a := liveSegment(1, opt, row{x("10"), 1}, row{x("30"), 2})
	b := liveSegment(1, opt, row{x("30"), 3}, row{x("50"), 4})

	tasks := MergePlan([]Segment{a, b}, nil)
	assert.Equal(t, []string{"1", "3", "5"}, taskPaths(tasks))
	assert.Len(t, tasks[1].Leaves, 2)

	tasks = MergePlan([]Segment{a, b}, IIDPathPred(x("3f")))
	assert.Equal(t, []string{"3"}, taskPaths(tasks))
	tasks = MergePlan([]Segment{a, b}, PathPrefixPred(Path{0x5}))
	assert.Equal(t, []string{"5"}, taskPaths(tasks))
	tasks = MergePlan([]Segment{a, b}, PathPrefixPred(Path{0x7}))
	assert.Empty(t, tasks)

	assert.Empty(t, MergePlan(nil, nil))
	empty := liveSegment(1, LiveOptions{})
	assert.Equal(t, []string{"<root>"}, taskPaths(MergePlan([]Segment{empty}, nil)))
}

func TestMergePlan_DeepSplit(t *testing.T) {
	opt := LiveOptions{LogLimit: 1, PageLimit: 1, MaxLevel: MaxLevel(2)}
	a := liveSegment(2, opt, row{x("1200"), 1}, row{x("1300"), 2}, row{x("4000"), 3}, row{x("1400"), 4})
	b := liveSegment(2, opt, row{x("1200"), 5}, row{x("9000"), 6})

	// a has leaves 12, 13, 14 and 4; b has leaves 1 and 9, so b's leaf at 1
	// is carried into all of a's sub-buckets.
	tasks := MergePlan([]Segment{a, b}, nil)
	paths := taskPaths(tasks)
	require.Len(t, tasks, LevelWidth+2)
	assert.True(t, slices.IsSorted(paths), "paths %v", paths)
	assert.Equal(t, "4", paths[LevelWidth])
	assert.Equal(t, "9", paths[LevelWidth+1])
	for _, task := range tasks {
		want := 1
		switch task.Path.String() {
		case "12", "13", "14":
			want = 2
		}
		assert.Len(t, task.Leaves, want, "path %v", task.Path)
		for _, ml := range task.Leaves {
			assert.True(t, bytes.HasPrefix(task.Path, ml.Leaf.Path()), "leaf %v under task %v", ml.Leaf.Path(), task.Path)
		}
	}
}
