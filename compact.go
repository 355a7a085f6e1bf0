package hashtrie

import "slices"

// compactLeaf flushes the leaf's log into its page, splitting the leaf one
// level down if the page outgrows PageLimit. An empty log returns the leaf
// itself.
func (t *LiveTrie) compactLeaf(l *LiveLeaf) Node {
	if len(l.log) == 0 {
		return l
	}

	data := t.mergeLog(l.data, t.sortLog(l.log))

	if len(data) > t.opt.PageLimit && len(l.path) < t.opt.MaxLevel {
		return t.split(l.path, data)
	}
	return &LiveLeaf{path: l.path, data: data}
}

// sortLog returns a sorted copy of the log. The sort must be stable: equal
// entries keep insertion order, which is what lets the collapsing policy
// pick the last one.
func (t *LiveTrie) sortLog(log []int) []int {
	sorted := slices.Clone(log)
	slices.SortStableFunc(sorted, t.keys.Compare)
	return sorted
}

func (t *LiveTrie) mergeLog(data, sortedLog []int) []int {
	switch t.opt.Policy {
	case KeepAll:
		return mergeKeepAll(t.keys.Compare, data, sortedLog)
	case CollapseDuplicates:
		return mergeCollapsing(t.keys.Compare, data, sortedLog)
	default:
		panic("unsupported policy " + t.opt.Policy.String())
	}
}

func mergeKeepAll(compare func(a, b int) int, data, log []int) []int {
	res := make([]int, 0, len(data)+len(log))
	var di, li int
	for di < len(data) && li < len(log) {
		if compare(data[di], log[li]) < 0 {
			res = append(res, data[di])
			di++
		} else {
			res = append(res, log[li])
			li++
		}
	}
	res = append(res, data[di:]...)
	return append(res, log[li:]...)
}

func mergeCollapsing(compare func(a, b int) int, data, log []int) []int {
	log = lastOfRuns(compare, log)

	res := make([]int, 0, len(data)+len(log))
	var di, li int
	for di < len(data) && li < len(log) {
		switch c := compare(data[di], log[li]); {
		case c < 0:
			res = append(res, data[di])
			di++
		case c == 0:
			res = append(res, log[li])
			di++
			li++
		default:
			res = append(res, log[li])
			li++
		}
	}
	res = append(res, data[di:]...)
	return append(res, log[li:]...)
}

// lastOfRuns keeps the last entry of every run of equal entries.
func lastOfRuns(compare func(a, b int) int, sorted []int) []int {
	res := make([]int, 0, len(sorted))
	for i, idx := range sorted {
		if i+1 < len(sorted) && compare(idx, sorted[i+1]) == 0 {
			continue
		}
		res = append(res, idx)
	}
	return res
}

// split partitions a sorted page by the next nibble into a branch of leaves.
// Oversized children are left for their own next compaction.
func (t *LiveTrie) split(path Path, data []int) Node {
	var groups [LevelWidth][]int
	level := len(path)
	for _, idx := range data {
		b := t.keys.BucketFor(idx, level)
		groups[b] = append(groups[b], idx)
	}

	br := &LiveBranch{path: path}
	for bucket, group := range groups {
		if group != nil {
			br.children[bucket] = &LiveLeaf{path: path.Conj(bucket), data: group}
		}
	}
	return br
}
