package hashtrie

import "fmt"

// Node is a trie node: either a Branch or a Leaf. Nodes are immutable once
// published.
type Node interface {
	Path() Path
	node()
}

// Branch is a node with up to LevelWidth children, keyed by the nibble at
// the branch's depth.
type Branch interface {
	Node
	// Children returns LevelWidth entries; nil means an empty bucket.
	Children() []Node
}

// Leaf is a node holding rows. Live leaves expose their row selection,
// reconstructed leaves expose a page index.
type Leaf interface {
	Node
	leaf()
}

// Visitor is dispatched by Accept over the node union.
type Visitor[R any] interface {
	VisitBranch(b Branch) (R, error)
	VisitLeaf(l Leaf) (R, error)
}

// Accept dispatches n to the matching visitor method. A nil node yields the
// zero value.
func Accept[R any](n Node, v Visitor[R]) (R, error) {
	switch n := n.(type) {
	case nil:
		var zero R
		return zero, nil
	case Branch:
		return v.VisitBranch(n)
	case Leaf:
		return v.VisitLeaf(n)
	default:
		panic(fmt.Errorf("unknown node type %T", n))
	}
}

// VisitFuncs adapts functions to Visitor. When Branch is nil, branches are
// walked recursively and the children's results are discarded. When Leaf is
// nil, leaves yield the zero value.
type VisitFuncs[R any] struct {
	Branch func(b Branch) (R, error)
	Leaf   func(l Leaf) (R, error)
}

func (f VisitFuncs[R]) VisitBranch(b Branch) (R, error) {
	if f.Branch != nil {
		return f.Branch(b)
	}
	var zero R
	for _, child := range b.Children() {
		if child == nil {
			continue
		}
		if _, err := Accept[R](child, f); err != nil {
			return zero, err
		}
	}
	return zero, nil
}

func (f VisitFuncs[R]) VisitLeaf(l Leaf) (R, error) {
	if f.Leaf != nil {
		return f.Leaf(l)
	}
	var zero R
	return zero, nil
}

// Leaves returns every leaf under n in path order.
func Leaves(n Node) []Leaf {
	var result []Leaf
	_, _ = Accept[struct{}](n, VisitFuncs[struct{}]{
		Leaf: func(l Leaf) (struct{}, error) {
			result = append(result, l)
			return struct{}{}, nil
		},
	})
	return result
}

// Trie is the read side shared by live and reconstructed tries.
type Trie interface {
	// RootNode returns the root, or nil for an empty persisted trie.
	RootNode() Node
}

// Add inserts row idx into t. Only live tries accept rows; reconstructed
// tries fail with ErrReadOnly.
func Add(t Trie, idx int) (Trie, error) {
	switch t := t.(type) {
	case *LiveTrie:
		return t.Add(idx), nil
	case *ReadOnlyTrie:
		return nil, fmt.Errorf("add row %d: %w", idx, ErrReadOnly)
	default:
		return nil, fmt.Errorf("add row %d to %T: %w", idx, t, ErrReadOnly)
	}
}
