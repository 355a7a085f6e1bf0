package hashtrie

import "fmt"

type NodeTag uint8

const (
	TagEmpty NodeTag = iota
	TagBranch
	TagLeaf
)

func (t NodeTag) String() string {
	switch t {
	case TagEmpty:
		return "empty"
	case TagBranch:
		return "branch"
	case TagLeaf:
		return "leaf"
	default:
		return fmt.Sprintf("NodeTag(%d)", uint8(t))
	}
}

// EncodedNode is one entry of a persisted node array. Branch children are
// node ids, -1 for an absent bucket. Leaves reference a page.
type EncodedNode struct {
	Tag      NodeTag
	Children []int
	Page     int
}

// TrieEncoding is the persisted shape of a trie: nodes in post-order, so
// every child precedes its parent and the root is the last node.
type TrieEncoding struct {
	Nodes []EncodedNode
}

const trieEncodingVersion = 1

func (e *TrieEncoding) RootID() int {
	return len(e.Nodes) - 1
}

func (e *TrieEncoding) appendEmpty() int {
	e.Nodes = append(e.Nodes, EncodedNode{Tag: TagEmpty})
	return len(e.Nodes) - 1
}

func (e *TrieEncoding) appendLeaf(page int) int {
	e.Nodes = append(e.Nodes, EncodedNode{Tag: TagLeaf, Page: page})
	return len(e.Nodes) - 1
}

func (e *TrieEncoding) appendBranch(children []int) int {
	e.Nodes = append(e.Nodes, EncodedNode{Tag: TagBranch, Children: children})
	return len(e.Nodes) - 1
}

// PageCount returns the number of leaf nodes.
func (e *TrieEncoding) PageCount() int {
	var n int
	for _, node := range e.Nodes {
		if node.Tag == TagLeaf {
			n++
		}
	}
	return n
}

// Validate checks that the node array describes a single well-formed tree.
func (e *TrieEncoding) Validate() error {
	if len(e.Nodes) == 0 {
		return fmt.Errorf("trie encoding has no nodes")
	}
	referenced := make([]bool, len(e.Nodes))
	for id, node := range e.Nodes {
		switch node.Tag {
		case TagEmpty:
		case TagLeaf:
			if node.Page < 0 {
				return fmt.Errorf("node %d: negative page %d", id, node.Page)
			}
		case TagBranch:
			if len(node.Children) != LevelWidth {
				return fmt.Errorf("node %d: branch has %d children, wanted %d", id, len(node.Children), LevelWidth)
			}
			for _, child := range node.Children {
				if child < 0 {
					continue
				}
				if child >= id {
					return fmt.Errorf("node %d: child %d does not precede its parent", id, child)
				}
				if referenced[child] {
					return fmt.Errorf("node %d: child %d has more than one parent", id, child)
				}
				referenced[child] = true
			}
		default:
			return fmt.Errorf("node %d: unknown tag %v", id, node.Tag)
		}
	}
	for id := range e.Nodes[:len(e.Nodes)-1] {
		if !referenced[id] {
			return fmt.Errorf("node %d is unreachable from the root", id)
		}
	}
	return nil
}

// MarshalBinary encodes the node array as: version, node count, then per
// node its tag followed by 16 child ids (id+1, 0 for absent) for a branch,
// or the page index for a leaf. All integers are uvarints.
func (e *TrieEncoding) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 2+len(e.Nodes)*3)
	buf = appendUvarint(buf, trieEncodingVersion)
	buf = appendUvarinti(buf, len(e.Nodes))
	for _, node := range e.Nodes {
		buf = append(buf, byte(node.Tag))
		switch node.Tag {
		case TagBranch:
			for _, child := range node.Children {
				buf = appendUvarinti(buf, child+1)
			}
		case TagLeaf:
			buf = appendUvarinti(buf, node.Page)
		}
	}
	return buf, nil
}

func (e *TrieEncoding) UnmarshalBinary(data []byte) error {
	d := makeByteDecoder(data)
	ver, err := d.Uvarint()
	if err != nil {
		return err
	}
	if ver != trieEncodingVersion {
		return dataErrf(data, 0, nil, "unsupported trie encoding version %d", ver)
	}
	n, err := d.Uvarinti()
	if err != nil {
		return err
	}
	if n > len(data) {
		return dataErrf(data, d.Off(), nil, "node count %d exceeds encoding size", n)
	}

	nodes := make([]EncodedNode, n)
	for i := range nodes {
		tag, err := d.Byte()
		if err != nil {
			return err
		}
		node := EncodedNode{Tag: NodeTag(tag)}
		switch node.Tag {
		case TagEmpty:
		case TagBranch:
			node.Children = make([]int, LevelWidth)
			for j := range node.Children {
				v, err := d.Uvarinti()
				if err != nil {
					return err
				}
				node.Children[j] = v - 1
			}
		case TagLeaf:
			node.Page, err = d.Uvarinti()
			if err != nil {
				return err
			}
		default:
			return dataErrf(data, d.Off()-1, nil, "node %d: unknown tag %d", i, tag)
		}
		nodes[i] = node
	}
	if len(d.Buf) != 0 {
		return dataErrf(data, d.Off(), nil, "%d trailing bytes", len(d.Buf))
	}

	enc := TrieEncoding{Nodes: nodes}
	if err := enc.Validate(); err != nil {
		return dataErrf(data, 0, err, "invalid trie encoding")
	}
	*e = enc
	return nil
}
