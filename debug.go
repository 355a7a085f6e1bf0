package hashtrie

import (
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpShape = DumpFlags(1 << iota)
	DumpRows

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)

	indentStep = "  "
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// DumpSegment renders a segment's trie one node per line. Leaf rows are
// loaded and listed when f contains DumpRows.
func DumpSegment(seg Segment, f DumpFlags) (string, error) {
	var buf strings.Builder
	root := seg.RootNode()
	if root == nil {
		buf.WriteString("<empty>\n")
		return buf.String(), nil
	}
	if err := dumpNode(&buf, seg, root, "", f); err != nil {
		return buf.String(), err
	}
	return buf.String(), nil
}

func dumpNode(w *strings.Builder, seg Segment, n Node, indent string, f DumpFlags) error {
	switch n := n.(type) {
	case Branch:
		if f.Contains(DumpShape) {
			fmt.Fprintf(w, "%s%v branch\n", indent, n.Path())
		}
		for _, child := range n.Children() {
			if child == nil {
				continue
			}
			if err := dumpNode(w, seg, child, indent+indentStep, f); err != nil {
				return err
			}
		}
		return nil

	case Leaf:
		rows, err := seg.LoadLeaf(n)
		if err != nil {
			fmt.Fprintf(w, "%s%v leaf ** ERROR: %v\n", indent, n.Path(), err)
			return err
		}
		if f.Contains(DumpShape) {
			switch l := n.(type) {
			case *ReadOnlyLeaf:
				fmt.Fprintf(w, "%s%v leaf page=%d (%d rows)\n", indent, n.Path(), l.PageIndex(), rows.RowCount())
			case *LiveLeaf:
				fmt.Fprintf(w, "%s%v leaf (%d rows, %d logged)\n", indent, n.Path(), rows.RowCount(), l.LogCount())
			default:
				fmt.Fprintf(w, "%s%v leaf (%d rows)\n", indent, n.Path(), rows.RowCount())
			}
		}
		if f.Contains(DumpRows) {
			for i := range rows.RowCount() {
				fmt.Fprintf(w, "%s%s%d: %v\n", indent, indentStep, i, rows.Event(i))
			}
		}
		return nil

	default:
		panic(fmt.Errorf("unknown node type %T", n))
	}
}
