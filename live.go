package hashtrie

import (
	"bytes"
	"fmt"
)

const (
	DefaultLogLimit  = 64
	DefaultPageLimit = 1024

	// DefaultMaxLevel covers 16-byte iids. It only applies to key sources
	// that do not report their key width.
	DefaultMaxLevel = 32
)

// Policy decides what happens to entries that compare equal when a leaf's
// log is merged into its page.
type Policy int

const (
	// KeepAll retains every entry. Used for append-only event indexes where
	// each insertion is a distinct historical fact.
	KeepAll Policy = iota

	// CollapseDuplicates keeps only the newest of equal-comparing entries,
	// the log winning over the page. Used for indexes of mutable state.
	CollapseDuplicates
)

func (p Policy) String() string {
	switch p {
	case KeepAll:
		return "keep-all"
	case CollapseDuplicates:
		return "collapse"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

type LiveOptions struct {
	// LogLimit is the number of logged entries that forces a compaction.
	LogLimit int
	// PageLimit is the largest sorted page a leaf keeps before splitting.
	PageLimit int
	// MaxLevel is the depth beyond which leaves no longer split. Zero means
	// MaxLevel(keyWidth) for key sources with a Width, DefaultMaxLevel
	// otherwise. It is never allowed past the key width.
	MaxLevel int
	Policy   Policy
}

func (o LiveOptions) withDefaults() LiveOptions {
	if o.LogLimit == 0 {
		o.LogLimit = DefaultLogLimit
	}
	if o.PageLimit == 0 {
		o.PageLimit = DefaultPageLimit
	}
	if o.MaxLevel == 0 {
		o.MaxLevel = DefaultMaxLevel
	}
	if o.LogLimit < 0 || o.PageLimit < 0 || o.MaxLevel < 0 {
		panic(fmt.Errorf("invalid live trie options %+v", o))
	}
	return o
}

// LiveTrie is a persistent hash trie over row indices. Every Add returns a
// new trie value; nodes untouched by the insertion are shared with the
// previous value, and no published node is ever modified.
type LiveTrie struct {
	root Node
	keys KeySource
	opt  LiveOptions
}

// NewLiveTrie returns an empty trie: a single empty leaf at the root path.
func NewLiveTrie(keys KeySource, opt LiveOptions) *LiveTrie {
	if w, ok := keys.(interface{ Width() int }); ok {
		if limit := MaxLevel(w.Width()); opt.MaxLevel == 0 || opt.MaxLevel > limit {
			opt.MaxLevel = limit
		}
	}
	return &LiveTrie{
		root: &LiveLeaf{path: Path{}},
		keys: keys,
		opt:  opt.withDefaults(),
	}
}

func (t *LiveTrie) RootNode() Node { return t.root }

func (t *LiveTrie) Options() LiveOptions { return t.opt }

func (t *LiveTrie) Keys() KeySource { return t.keys }

// WithKeys returns the same node graph bound to another key source, e.g. a
// snapshot of the column the trie was built over.
func (t *LiveTrie) WithKeys(keys KeySource) *LiveTrie {
	return &LiveTrie{root: t.root, keys: keys, opt: t.opt}
}

// Add returns a trie with row idx inserted.
func (t *LiveTrie) Add(idx int) *LiveTrie {
	if idx < 0 {
		panic(fmt.Errorf("invalid row index %d", idx))
	}
	return &LiveTrie{root: t.addTo(t.root, idx), keys: t.keys, opt: t.opt}
}

// CompactLogs returns a trie in which every leaf has an empty log.
func (t *LiveTrie) CompactLogs() *LiveTrie {
	return &LiveTrie{root: t.compact(t.root), keys: t.keys, opt: t.opt}
}

func (t *LiveTrie) addTo(n Node, idx int) Node {
	switch n := n.(type) {
	case *LiveLeaf:
		log := make([]int, len(n.log)+1, t.opt.LogLimit)
		copy(log, n.log)
		log[len(n.log)] = idx
		leaf := &LiveLeaf{path: n.path, data: n.data, log: log}
		if len(log) >= t.opt.LogLimit {
			return t.compactLeaf(leaf)
		}
		return leaf

	case *LiveBranch:
		bucket := t.keys.BucketFor(idx, len(n.path))
		br := &LiveBranch{path: n.path, children: n.children}
		child := br.children[bucket]
		if child == nil {
			child = &LiveLeaf{path: n.path.Conj(bucket)}
		}
		br.children[bucket] = t.addTo(child, idx)
		return br

	default:
		panic(fmt.Errorf("unexpected node %T in live trie", n))
	}
}

func (t *LiveTrie) compact(n Node) Node {
	switch n := n.(type) {
	case *LiveLeaf:
		return t.compactLeaf(n)

	case *LiveBranch:
		br := &LiveBranch{path: n.path}
		for i, child := range n.children {
			if child != nil {
				br.children[i] = t.compact(child)
			}
		}
		return br

	default:
		panic(fmt.Errorf("unexpected node %T in live trie", n))
	}
}

// Selection returns the leaf's rows in sorted order, merging in the log
// without compacting the leaf.
func (t *LiveTrie) Selection(l *LiveLeaf) []int {
	if len(l.log) == 0 {
		return l.data
	}
	return t.mergeLog(l.data, t.sortLog(l.log))
}

// FindCandidates returns the rows whose identity key equals iid, in trie
// order.
func (t *LiveTrie) FindCandidates(iid []byte) []int {
	n := t.root
	for {
		switch nn := n.(type) {
		case nil:
			return nil
		case *LiveBranch:
			n = nn.children[BucketFor(iid, len(nn.path))]
		case *LiveLeaf:
			if CompareToPath(iid, nn.path) != 0 {
				return nil
			}
			var result []int
			for _, idx := range t.Selection(nn) {
				if t.sameKey(idx, iid) {
					result = append(result, idx)
				}
			}
			return result
		default:
			panic(fmt.Errorf("unexpected node %T in live trie", n))
		}
	}
}

func (t *LiveTrie) sameKey(idx int, iid []byte) bool {
	if col, ok := t.keys.(KeyColumn); ok {
		return bytes.Equal(col.IID(idx), iid)
	}
	panic(fmt.Errorf("key source %T does not expose iids", t.keys))
}

// LiveBranch is an interior node of a live trie.
type LiveBranch struct {
	path     Path
	children [LevelWidth]Node
}

func (b *LiveBranch) Path() Path { return b.path }

func (b *LiveBranch) Children() []Node {
	children := b.children
	return children[:]
}

func (*LiveBranch) node() {}

// LiveLeaf holds a sorted page of row indices and an unsorted log of rows
// added since the last compaction.
type LiveLeaf struct {
	path Path
	data []int
	log  []int
}

func (l *LiveLeaf) Path() Path { return l.path }

// Data returns the sorted page. Callers must not modify it.
func (l *LiveLeaf) Data() []int { return l.data }

// Log returns the not yet sorted entries in insertion order.
func (l *LiveLeaf) Log() []int { return l.log }

func (l *LiveLeaf) LogCount() int { return len(l.log) }

func (*LiveLeaf) node() {}
func (*LiveLeaf) leaf() {}
