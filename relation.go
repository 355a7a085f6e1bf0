package hashtrie

import (
	"bytes"
	"fmt"
	"math"
)

// EndOfTime is the open upper bound of a valid-time range.
const EndOfTime = math.MaxInt64

// Relation is an indexable, length-known sequence of rows sorted ascending
// by identity key and, among equal keys, descending by system time.
type Relation interface {
	RowCount() int
	IID(idx int) []byte
	SystemFrom(idx int) int64
}

type Op uint8

const (
	OpPut Op = iota
	OpDelete
)

func (op Op) String() string {
	switch op {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("Op(%d)", uint8(op))
	}
}

// Event is one row of an operation relation. ValidFrom and ValidTo bound
// the half-open valid-time range [ValidFrom, ValidTo).
type Event struct {
	IID        []byte
	SystemFrom int64
	ValidFrom  int64
	ValidTo    int64
	Op         Op
	Doc        []byte
}

func (ev Event) ValidAt(t int64) bool {
	return ev.ValidFrom <= t && t < ev.ValidTo
}

func (ev Event) String() string {
	return fmt.Sprintf("%s %s sys=%d valid=[%d,%d) doc=%q", hexstr(ev.IID), ev.Op, ev.SystemFrom, ev.ValidFrom, ev.ValidTo, ev.Doc)
}

// EventRelation is a columnar operation relation. Rows are only ever
// appended; Head returns a view that later appends cannot disturb.
type EventRelation struct {
	iids       IIDColumn
	systemFrom []int64
	validFrom  []int64
	validTo    []int64
	ops        []Op
	docs       [][]byte
}

func NewEventRelation(width int) *EventRelation {
	return &EventRelation{iids: NewIIDColumn(width)}
}

func (r *EventRelation) Width() int { return r.iids.Width() }

func (r *EventRelation) RowCount() int { return len(r.systemFrom) }

func (r *EventRelation) IID(idx int) []byte { return r.iids.IID(idx) }

func (r *EventRelation) SystemFrom(idx int) int64 { return r.systemFrom[idx] }

func (r *EventRelation) ValidFrom(idx int) int64 { return r.validFrom[idx] }

func (r *EventRelation) ValidTo(idx int) int64 { return r.validTo[idx] }

func (r *EventRelation) Op(idx int) Op { return r.ops[idx] }

func (r *EventRelation) Doc(idx int) []byte { return r.docs[idx] }

func (r *EventRelation) Event(idx int) Event {
	return Event{
		IID:        r.iids.IID(idx),
		SystemFrom: r.systemFrom[idx],
		ValidFrom:  r.validFrom[idx],
		ValidTo:    r.validTo[idx],
		Op:         r.ops[idx],
		Doc:        r.docs[idx],
	}
}

// Append adds ev as the next row and returns its index.
func (r *EventRelation) Append(ev Event) int {
	if ev.ValidTo <= ev.ValidFrom {
		panic(fmt.Errorf("empty valid-time range [%d,%d) for %s", ev.ValidFrom, ev.ValidTo, hexstr(ev.IID)))
	}
	idx := len(r.systemFrom)
	r.iids = r.iids.Append(ev.IID)
	r.systemFrom = append(r.systemFrom, ev.SystemFrom)
	r.validFrom = append(r.validFrom, ev.ValidFrom)
	r.validTo = append(r.validTo, ev.ValidTo)
	r.ops = append(r.ops, ev.Op)
	r.docs = append(r.docs, ev.Doc)
	return idx
}

// Head returns an immutable view of the first n rows. The view shares
// storage with r, and appends to either never become visible in the other.
func (r *EventRelation) Head(n int) *EventRelation {
	if n < 0 || n > r.RowCount() {
		panic(fmt.Errorf("head %d of a %d-row relation", n, r.RowCount()))
	}
	w := r.iids.width
	return &EventRelation{
		iids:       IIDColumn{width: w, data: r.iids.data[: n*w : n*w]},
		systemFrom: r.systemFrom[:n:n],
		validFrom:  r.validFrom[:n:n],
		validTo:    r.validTo[:n:n],
		ops:        r.ops[:n:n],
		docs:       r.docs[:n:n],
	}
}

// Select returns a new relation holding the given rows in the given order.
func (r *EventRelation) Select(rows []int) *EventRelation {
	out := &EventRelation{
		iids:       IIDColumn{width: r.iids.width, data: make([]byte, 0, len(rows)*r.iids.width)},
		systemFrom: make([]int64, 0, len(rows)),
		validFrom:  make([]int64, 0, len(rows)),
		validTo:    make([]int64, 0, len(rows)),
		ops:        make([]Op, 0, len(rows)),
		docs:       make([][]byte, 0, len(rows)),
	}
	for _, idx := range rows {
		out.iids = out.iids.Append(r.iids.IID(idx))
		out.systemFrom = append(out.systemFrom, r.systemFrom[idx])
		out.validFrom = append(out.validFrom, r.validFrom[idx])
		out.validTo = append(out.validTo, r.validTo[idx])
		out.ops = append(out.ops, r.ops[idx])
		out.docs = append(out.docs, r.docs[idx])
	}
	return out
}

// compareRows is the relation order: iid ascending, then system time
// descending.
func compareRows(a Relation, i int, b Relation, j int) int {
	if c := bytes.Compare(a.IID(i), b.IID(j)); c != 0 {
		return c
	}
	switch sa, sb := a.SystemFrom(i), b.SystemFrom(j); {
	case sa > sb:
		return -1
	case sa < sb:
		return 1
	default:
		return 0
	}
}

// firstUnsorted returns the index of the first row that breaks the
// relation order, or -1.
func firstUnsorted(rel Relation) int {
	for i := 1; i < rel.RowCount(); i++ {
		if compareRows(rel, i-1, rel, i) > 0 {
			return i
		}
	}
	return -1
}

func mustBeSorted(rel Relation) {
	if i := firstUnsorted(rel); i >= 0 {
		panic(fmt.Errorf("relation not sorted at row %d: %s/%d after %s/%d", i, hexstr(rel.IID(i)), rel.SystemFrom(i), hexstr(rel.IID(i-1)), rel.SystemFrom(i-1)))
	}
}
