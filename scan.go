package hashtrie

import (
	"bytes"
	"context"
	"iter"
	"log/slog"
	"slices"
)

type ScanOptions struct {
	// PathPred prunes trie paths, e.g. IIDPathPred for point lookups.
	PathPred func(Path) bool

	// ValidAt, when set, restricts ScanLatest to events whose valid-time
	// range contains it.
	ValidAt *int64

	Logger  *slog.Logger
	Verbose bool
	Metrics *Metrics
}

func (o ScanOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// ScanEvents merges segs path by path and calls pick with every event in
// order: iid ascending, system time descending, more recent segments first.
// A segment's ordinal is its index in segs. Returning false from pick ends
// the scan.
func ScanEvents(segs []Segment, opts ScanOptions, pick func(ev Event, ordinal int) (bool, error)) error {
	tasks := MergePlan(segs, opts.PathPred)
	logger := opts.logger()
	rels := make([]*EventRelation, len(segs))
	for _, task := range tasks {
		clear(rels)
		lps := make([]*LeafPointer, 0, len(task.Leaves))
		for _, ml := range task.Leaves {
			rel, err := ml.Segment.LoadLeaf(ml.Leaf)
			if err != nil {
				return err
			}
			rels[ml.Ordinal] = rel
			lps = append(lps, &LeafPointer{Ordinal: ml.Ordinal, RowPointer: NewRowPointer(rel, task.Path)})
		}
		if opts.Verbose {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "hashtrie: merge task", slog.String("path", task.Path.String()), slog.Int("leaves", len(lps)))
		}

		var stopped bool
		q := NewLeafMergeQueue(task.Path, lps)
		err := q.Merge(func(lp *LeafPointer) (bool, error) {
			opts.Metrics.rowMerged()
			more, err := pick(rels[lp.Ordinal].Event(lp.Index()), lp.Ordinal)
			stopped = !more
			return more, err
		})
		if err != nil {
			return err
		}
		if stopped {
			return nil
		}
	}
	return nil
}

// Events is ScanEvents as an iterator. A load error is yielded once and
// ends the sequence.
func Events(segs []Segment, opts ScanOptions) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		err := ScanEvents(segs, opts, func(ev Event, _ int) (bool, error) {
			return yield(ev, nil), nil
		})
		if err != nil {
			yield(Event{}, err)
		}
	}
}

// ScanLatest yields, per iid, the newest event with SystemFrom <= asOf that
// is valid at opts.ValidAt (if set). Iids whose newest such event is a
// delete are skipped.
func ScanLatest(segs []Segment, asOf int64, opts ScanOptions, yield func(ev Event) bool) error {
	var done []byte
	var haveDone bool
	return ScanEvents(segs, opts, func(ev Event, _ int) (bool, error) {
		if haveDone && bytes.Equal(ev.IID, done) {
			return true, nil
		}
		if ev.SystemFrom > asOf {
			return true, nil
		}
		if opts.ValidAt != nil && !ev.ValidAt(*opts.ValidAt) {
			return true, nil
		}
		done = append(done[:0], ev.IID...)
		haveDone = true
		if ev.Op == OpDelete {
			return true, nil
		}
		return yield(ev), nil
	})
}

// Lookup returns every event of one iid across segs, newest first.
func Lookup(segs []Segment, iid []byte, opts ScanOptions) ([]Event, error) {
	opts.PathPred = IIDPathPred(iid)
	var result []Event
	err := ScanEvents(segs, opts, func(ev Event, _ int) (bool, error) {
		switch c := bytes.Compare(ev.IID, iid); {
		case c < 0:
			return true, nil
		case c > 0:
			return false, nil
		}
		ev.IID = slices.Clone(ev.IID)
		result = append(result, ev)
		return true, nil
	})
	return result, err
}
