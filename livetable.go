package hashtrie

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

type LiveTableOptions struct {
	Trie    LiveOptions
	Logger  *slog.Logger
	Verbose bool
	Metrics *Metrics
}

// LiveTable accumulates the events of the current generation: an append-only
// operation relation indexed by a live trie with the KeepAll policy.
//
// LiveTable is safe for concurrent use. Snapshots are immutable and can be
// read while events keep arriving.
type LiveTable struct {
	mu             sync.Mutex
	rel            *EventRelation
	trie           *LiveTrie
	lastSystemFrom int64

	logger  *slog.Logger
	verbose bool
	metrics *Metrics
}

func NewLiveTable(width int, opt LiveTableOptions) *LiveTable {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	topt := opt.Trie
	topt.Policy = KeepAll
	rel := NewEventRelation(width)
	return &LiveTable{
		rel:            rel,
		trie:           NewLiveTrie(NewIIDKeys(rel), topt),
		lastSystemFrom: math.MinInt64,
		logger:         opt.Logger,
		verbose:        opt.Verbose,
		metrics:        opt.Metrics,
	}
}

func (lt *LiveTable) Width() int { return lt.rel.Width() }

func (lt *LiveTable) RowCount() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.rel.RowCount()
}

// Put records a document for iid, valid over [validFrom, validTo).
func (lt *LiveTable) Put(iid []byte, systemFrom, validFrom, validTo int64, doc []byte) (int, error) {
	return lt.Append(Event{IID: iid, SystemFrom: systemFrom, ValidFrom: validFrom, ValidTo: validTo, Op: OpPut, Doc: doc})
}

// Delete records that iid has no document over [validFrom, validTo).
func (lt *LiveTable) Delete(iid []byte, systemFrom, validFrom, validTo int64) (int, error) {
	return lt.Append(Event{IID: iid, SystemFrom: systemFrom, ValidFrom: validFrom, ValidTo: validTo, Op: OpDelete})
}

// Append adds ev and returns its row index. System time must not decrease.
func (lt *LiveTable) Append(ev Event) (int, error) {
	if len(ev.IID) != lt.rel.Width() {
		panic(fmt.Errorf("iid %x has %d bytes, table width is %d", ev.IID, len(ev.IID), lt.rel.Width()))
	}

	lt.mu.Lock()
	defer lt.mu.Unlock()
	if ev.SystemFrom < lt.lastSystemFrom {
		return -1, fmt.Errorf("%s at %d after %d: %w", hexstr(ev.IID), ev.SystemFrom, lt.lastSystemFrom, ErrSystemTimeRegression)
	}
	idx := lt.rel.Append(ev)
	lt.trie = lt.trie.Add(idx)
	lt.lastSystemFrom = ev.SystemFrom
	lt.metrics.liveRowAdded()

	if lt.verbose {
		lt.logger.LogAttrs(context.Background(), slog.LevelDebug, "hashtrie: live append", hexAttr("iid", ev.IID), slog.Int("row", idx), slog.String("op", ev.Op.String()), slog.Int64("sys", ev.SystemFrom))
	}
	return idx, nil
}

// Snapshot returns the table's current contents as an immutable segment.
func (lt *LiveTable) Snapshot() *LiveSegment {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	head := lt.rel.Head(lt.rel.RowCount())
	return NewLiveSegment(lt.trie.WithKeys(NewIIDKeys(head)), head)
}

// FindCandidates returns the row indices recorded for iid, newest first.
func (lt *LiveTable) FindCandidates(iid []byte) []int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.trie.FindCandidates(iid)
}

// Finish persists the table as generation key.
func (lt *LiveTable) Finish(s *Store, key TrieKey) (GenerationMeta, error) {
	seg := lt.Snapshot()
	meta, err := s.WriteLiveTrie(key, seg.Trie(), seg.Relation())
	if err != nil {
		return GenerationMeta{}, err
	}
	lt.logger.LogAttrs(context.Background(), slog.LevelInfo, "hashtrie: finished live table", slog.String("trie", meta.Key), slog.Int("rows", meta.RowCount), slog.Int("pages", meta.PageCount))
	return meta, nil
}
