package hashtrie

import (
	"bytes"
	"fmt"
)

// Segment is one generation as seen by a merge: a trie plus a way to read
// the rows of its leaves.
type Segment interface {
	RootNode() Node
	LoadLeaf(l Leaf) (*EventRelation, error)
}

// LiveSegment is an in-memory generation: a live trie over its relation.
type LiveSegment struct {
	trie *LiveTrie
	rel  *EventRelation
}

func NewLiveSegment(trie *LiveTrie, rel *EventRelation) *LiveSegment {
	return &LiveSegment{trie: trie, rel: rel}
}

func (s *LiveSegment) Trie() *LiveTrie { return s.trie }

func (s *LiveSegment) Relation() *EventRelation { return s.rel }

func (s *LiveSegment) RootNode() Node { return s.trie.RootNode() }

func (s *LiveSegment) LoadLeaf(l Leaf) (*EventRelation, error) {
	ll, ok := l.(*LiveLeaf)
	if !ok {
		panic(fmt.Errorf("live segment got %T", l))
	}
	return s.rel.Select(s.trie.Selection(ll)), nil
}

type MergeLeaf struct {
	Ordinal int
	Segment Segment
	Leaf    Leaf
}

// MergeTask is a trie path at which every participating segment has a leaf.
type MergeTask struct {
	Path   Path
	Leaves []MergeLeaf
}

// MergePlan walks all segments' tries in lock-step and returns one task per
// leaf-level path, in path order. A segment's ordinal is its position in
// segs. pathPred, when non-nil, prunes subtrees whose path it rejects.
func MergePlan(segs []Segment, pathPred func(Path) bool) []MergeTask {
	nodes := make([]planNode, 0, len(segs))
	for i, seg := range segs {
		nodes = append(nodes, planNode{ordinal: i, seg: seg, node: seg.RootNode()})
	}
	var tasks []MergeTask
	planPath(Path{}, nodes, pathPred, &tasks)
	return tasks
}

type planNode struct {
	ordinal int
	seg     Segment
	node    Node
}

func planPath(path Path, nodes []planNode, pathPred func(Path) bool, tasks *[]MergeTask) {
	var present []planNode
	var anyBranch bool
	for _, n := range nodes {
		if n.node == nil {
			continue
		}
		if _, ok := n.node.(Branch); ok {
			anyBranch = true
		}
		present = append(present, n)
	}
	if len(present) == 0 {
		return
	}
	if pathPred != nil && !pathPred(path) {
		return
	}

	if !anyBranch {
		task := MergeTask{Path: path, Leaves: make([]MergeLeaf, len(present))}
		for i, n := range present {
			task.Leaves[i] = MergeLeaf{Ordinal: n.ordinal, Segment: n.seg, Leaf: n.node.(Leaf)}
		}
		*tasks = append(*tasks, task)
		return
	}

	children := make([][]Node, len(present))
	for i, n := range present {
		if br, ok := n.node.(Branch); ok {
			children[i] = br.Children()
		}
	}
	for bucket := range LevelWidth {
		next := make([]planNode, len(present))
		for i, n := range present {
			next[i] = n
			if children[i] != nil {
				next[i].node = children[i][bucket]
			}
		}
		planPath(path.Conj(bucket), next, pathPred, tasks)
	}
}

// IIDPathPred accepts exactly the paths on iid's route from the root. Paths
// deeper than the iid has nibbles are rejected.
func IIDPathPred(iid []byte) func(Path) bool {
	return func(p Path) bool {
		return len(p) <= MaxLevel(len(iid)) && CompareToPath(iid, p) == 0
	}
}

// PathPrefixPred accepts the paths leading down to prefix and every path
// below it.
func PathPrefixPred(prefix Path) func(Path) bool {
	return func(p Path) bool {
		n := min(len(p), len(prefix))
		return bytes.Equal(p[:n], prefix[:n])
	}
}
