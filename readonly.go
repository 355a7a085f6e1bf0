package hashtrie

import "fmt"

// ReadOnlyTrie is a trie reconstructed from its persisted encoding. Leaf
// pages are loaded on first access and cached.
//
// A ReadOnlyTrie is not safe for concurrent use: page loads go through a
// loader that may keep read state. Open one instance per reader.
type ReadOnlyTrie struct {
	name  string
	enc   *TrieEncoding
	pages PageLoader
	root  Node
}

// OpenReadOnlyTrie validates enc and rebuilds its node graph. name is used
// in page load errors.
func OpenReadOnlyTrie(name string, enc *TrieEncoding, pages PageLoader) (*ReadOnlyTrie, error) {
	if err := enc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	t := &ReadOnlyTrie{name: name, enc: enc, pages: pages}
	t.root = t.reconstruct(enc.RootID(), Path{})
	return t, nil
}

func (t *ReadOnlyTrie) Name() string { return t.name }

func (t *ReadOnlyTrie) RootNode() Node { return t.root }

func (t *ReadOnlyTrie) Encoding() *TrieEncoding { return t.enc }

func (t *ReadOnlyTrie) reconstruct(id int, path Path) Node {
	node := t.enc.Nodes[id]
	switch node.Tag {
	case TagEmpty:
		return nil
	case TagLeaf:
		return &ReadOnlyLeaf{trie: t, path: path, page: node.Page}
	case TagBranch:
		br := &ReadOnlyBranch{path: path}
		for bucket, child := range node.Children {
			if child >= 0 {
				br.children[bucket] = t.reconstruct(child, path.Conj(bucket))
			}
		}
		return br
	default:
		panic(fmt.Errorf("unexpected tag %v", node.Tag))
	}
}

type ReadOnlyBranch struct {
	path     Path
	children [LevelWidth]Node
}

func (b *ReadOnlyBranch) Path() Path { return b.path }

func (b *ReadOnlyBranch) Children() []Node {
	children := b.children
	return children[:]
}

func (*ReadOnlyBranch) node() {}

type ReadOnlyLeaf struct {
	trie *ReadOnlyTrie
	path Path
	page int
	rows *EventRelation
}

func (l *ReadOnlyLeaf) Path() Path { return l.path }

func (l *ReadOnlyLeaf) PageIndex() int { return l.page }

// Rows loads the leaf's page. Failures come back as *PageError.
func (l *ReadOnlyLeaf) Rows() (*EventRelation, error) {
	if l.rows != nil {
		return l.rows, nil
	}
	rows, err := l.trie.pages.LoadPage(l.page)
	if err == nil {
		err = checkLeafRows(l.path, rows)
	}
	if err != nil {
		return nil, &PageError{Trie: l.trie.name, Page: l.page, Err: err}
	}
	l.rows = rows
	return rows, nil
}

func (l *ReadOnlyLeaf) RowCount() (int, error) {
	rows, err := l.Rows()
	if err != nil {
		return 0, err
	}
	return rows.RowCount(), nil
}

func (*ReadOnlyLeaf) node() {}
func (*ReadOnlyLeaf) leaf() {}

// checkLeafRows verifies that a loaded page can sit at the leaf's path: the
// path is no deeper than the page's iids and the page's first and last rows
// fall under it.
func checkLeafRows(path Path, rows *EventRelation) error {
	n := rows.RowCount()
	if n == 0 {
		return nil
	}
	if len(path) > MaxLevel(rows.Width()) {
		return dataErrf(nil, 0, nil, "leaf %v is deeper than %d-byte iids allow", path, rows.Width())
	}
	for _, idx := range []int{0, n - 1} {
		if CompareToPath(rows.IID(idx), path) != 0 {
			return dataErrf(nil, 0, nil, "row %d (%s) lies outside leaf %v", idx, hexstr(rows.IID(idx)), path)
		}
	}
	return nil
}
