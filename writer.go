package hashtrie

import (
	"fmt"
	"sort"
)

// PageWriter stores leaf pages and hands back their page indices.
type PageWriter interface {
	WritePage(rows *EventRelation) (int, error)
}

// PageLoader reads back pages written by a PageWriter.
type PageLoader interface {
	LoadPage(page int) (*EventRelation, error)
}

// MemPages keeps pages in memory.
type MemPages struct {
	pages []*EventRelation
}

func (m *MemPages) WritePage(rows *EventRelation) (int, error) {
	m.pages = append(m.pages, rows)
	return len(m.pages) - 1, nil
}

func (m *MemPages) LoadPage(page int) (*EventRelation, error) {
	if page < 0 || page >= len(m.pages) {
		return nil, fmt.Errorf("page %d out of range, have %d", page, len(m.pages))
	}
	return m.pages[page], nil
}

func (m *MemPages) PageCount() int { return len(m.pages) }

// WriteStats summarizes the rows written for one trie.
type WriteStats struct {
	RowCount      int
	PageCount     int
	MinSystemFrom int64
	MaxSystemFrom int64
}

func (s *WriteStats) add(rows Relation) {
	s.PageCount++
	for i := range rows.RowCount() {
		sf := rows.SystemFrom(i)
		if s.RowCount == 0 || sf < s.MinSystemFrom {
			s.MinSystemFrom = sf
		}
		if s.RowCount == 0 || sf > s.MaxSystemFrom {
			s.MaxSystemFrom = sf
		}
		s.RowCount++
	}
}

// WriteLiveTrie compacts trie and writes one page per leaf, each page holding
// the leaf's rows of rel in trie order. The trie's keys must come from rel.
func WriteLiveTrie(pw PageWriter, trie *LiveTrie, rel *EventRelation) (*TrieEncoding, WriteStats, error) {
	w := &trieWriter{pw: pw}
	root := trie.CompactLogs().RootNode()
	if _, err := w.writeLiveNode(trie, root, rel); err != nil {
		return nil, w.stats, err
	}
	return &w.enc, w.stats, nil
}

// WriteRelation partitions a sorted relation by iid nibbles into a trie of
// pages. A partition becomes a leaf once it fits in pageSize rows, holds a
// single iid, or the key has no nibbles left.
func WriteRelation(pw PageWriter, rel *EventRelation, pageSize int) (*TrieEncoding, WriteStats, error) {
	if pageSize <= 0 {
		panic(fmt.Errorf("invalid page size %d", pageSize))
	}
	mustBeSorted(rel)
	w := &trieWriter{pw: pw}
	if _, err := w.writeRelationNode(rel, pageSize, Path{}, 0, rel.RowCount()); err != nil {
		return nil, w.stats, err
	}
	return &w.enc, w.stats, nil
}

type trieWriter struct {
	pw    PageWriter
	enc   TrieEncoding
	stats WriteStats
}

func (w *trieWriter) writePage(rows *EventRelation) (int, error) {
	page, err := w.pw.WritePage(rows)
	if err != nil {
		return -1, err
	}
	w.stats.add(rows)
	return w.enc.appendLeaf(page), nil
}

func (w *trieWriter) writeLiveNode(trie *LiveTrie, n Node, rel *EventRelation) (int, error) {
	switch n := n.(type) {
	case *LiveLeaf:
		sel := trie.Selection(n)
		if len(sel) == 0 {
			return w.enc.appendEmpty(), nil
		}
		return w.writePage(rel.Select(sel))

	case *LiveBranch:
		children := make([]int, LevelWidth)
		for i, child := range n.children {
			children[i] = -1
			if child == nil {
				continue
			}
			id, err := w.writeLiveNode(trie, child, rel)
			if err != nil {
				return -1, err
			}
			if w.enc.Nodes[id].Tag == TagEmpty {
				w.enc.Nodes = w.enc.Nodes[:id]
				continue
			}
			children[i] = id
		}
		return w.enc.appendBranch(children), nil

	default:
		panic(fmt.Errorf("unexpected node %T in live trie", n))
	}
}

func (w *trieWriter) writeRelationNode(rel *EventRelation, pageSize int, path Path, lo, hi int) (int, error) {
	switch {
	case lo == hi && len(path) == 0:
		return w.enc.appendEmpty(), nil
	case hi-lo <= pageSize || len(path) >= MaxLevel(rel.Width()) || soloIID(rel, lo, hi):
		rows := make([]int, hi-lo)
		for i := range rows {
			rows[i] = lo + i
		}
		return w.writePage(rel.Select(rows))
	}

	level := len(path)
	children := make([]int, LevelWidth)
	start := lo
	for bucket := range LevelWidth {
		end := start + sort.Search(hi-start, func(i int) bool {
			return BucketFor(rel.IID(start+i), level) > bucket
		})
		children[bucket] = -1
		if end > start {
			id, err := w.writeRelationNode(rel, pageSize, path.Conj(bucket), start, end)
			if err != nil {
				return -1, err
			}
			children[bucket] = id
		}
		start = end
	}
	return w.enc.appendBranch(children), nil
}

func soloIID(rel Relation, lo, hi int) bool {
	first, last := rel.IID(lo), rel.IID(hi-1)
	return string(first) == string(last)
}
