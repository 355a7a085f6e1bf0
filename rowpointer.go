package hashtrie

import "sort"

// RowPointer is a cursor over one generation's relation, positioned within
// the key partition of a trie path.
type RowPointer struct {
	rel Relation
	idx int
}

// NewRowPointer binary-searches rel for the first row whose key does not
// sort before path.
func NewRowPointer(rel Relation, path Path) *RowPointer {
	idx := sort.Search(rel.RowCount(), func(i int) bool {
		return CompareToPath(rel.IID(i), path) >= 0
	})
	return &RowPointer{rel: rel, idx: idx}
}

func (p *RowPointer) Relation() Relation { return p.rel }

func (p *RowPointer) Index() int { return p.idx }

func (p *RowPointer) Advance() int {
	p.idx++
	return p.idx
}

// IID returns the current row's key. The slice aliases the relation and
// must not be modified.
func (p *RowPointer) IID() []byte { return p.rel.IID(p.idx) }

func (p *RowPointer) SystemFrom() int64 { return p.rel.SystemFrom(p.idx) }

// IsValid reports whether the pointer is still inside path's partition.
func (p *RowPointer) IsValid(path Path) bool {
	return p.idx < p.rel.RowCount() && CompareToPath(p.rel.IID(p.idx), path) <= 0
}

// CompareRowPointers orders two positioned pointers by iid ascending, then
// system time descending.
func CompareRowPointers(a, b *RowPointer) int {
	return compareRows(a.rel, a.idx, b.rel, b.idx)
}

// EventRowPointer is a RowPointer over an operation relation that also
// exposes the row payload.
type EventRowPointer struct {
	RowPointer
	events *EventRelation
}

func NewEventRowPointer(rel *EventRelation, path Path) *EventRowPointer {
	return &EventRowPointer{RowPointer: *NewRowPointer(rel, path), events: rel}
}

func (p *EventRowPointer) Op() Op { return p.events.Op(p.idx) }

func (p *EventRowPointer) ValidFrom() int64 { return p.events.ValidFrom(p.idx) }

func (p *EventRowPointer) ValidTo() int64 { return p.events.ValidTo(p.idx) }

func (p *EventRowPointer) Doc() []byte { return p.events.Doc(p.idx) }

func (p *EventRowPointer) Event() Event { return p.events.Event(p.idx) }
