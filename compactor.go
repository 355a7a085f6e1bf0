package hashtrie

import (
	"fmt"
	"log/slog"
	"slices"
)

const DefaultCompactPageSize = 1024

// NextCompactionKey returns the key a compaction of inputs writes to: one
// level above the highest input, at the highest input block index.
func NextCompactionKey(inputs []TrieKey) TrieKey {
	var out TrieKey
	for i, k := range inputs {
		if i == 0 || k.Level+1 > out.Level {
			out.Level = k.Level + 1
		}
		if i == 0 || k.BlockIndex > out.BlockIndex {
			out.BlockIndex = k.BlockIndex
		}
	}
	return out
}

// CompactionInputs returns the generations of level that no compaction
// covers yet, in block order.
func (s *Store) CompactionInputs(level int) ([]TrieKey, error) {
	gens, err := s.GenerationsAtLevel(level)
	if err != nil {
		return nil, err
	}
	current, err := s.CurrentGenerations()
	if err != nil {
		return nil, err
	}
	var inputs []TrieKey
	for _, m := range gens {
		if slices.ContainsFunc(current, func(c GenerationMeta) bool { return c.Key == m.Key }) {
			inputs = append(inputs, m.TrieKey())
		}
	}
	return inputs, nil
}

// Compact merges the input generations, oldest first, into one generation
// at output. Every input event is kept; the output is sorted by iid
// ascending, system time descending, more recent input first. Inputs are
// left in place.
func (s *Store) Compact(inputs []TrieKey, output TrieKey, pageSize int) (GenerationMeta, error) {
	if len(inputs) == 0 {
		return GenerationMeta{}, fmt.Errorf("compact %v: no inputs", output)
	}
	for _, in := range inputs {
		if in.Level >= output.Level {
			return GenerationMeta{}, fmt.Errorf("compact %v: input %v is not below the output level", output, in)
		}
	}
	if err := s.checkCompactionInputs(inputs, output); err != nil {
		return GenerationMeta{}, err
	}
	if pageSize <= 0 {
		pageSize = DefaultCompactPageSize
	}
	start := s.now()

	psegs, err := s.OpenSegments(inputs)
	if err != nil {
		return GenerationMeta{}, fmt.Errorf("compact %v: %w", output, err)
	}
	// Read transactions must be closed before the write: Bolt cannot remap
	// while one is open.
	out, err := mergeSegments(s, psegs, output)
	CloseSegments(psegs)
	if err != nil {
		return GenerationMeta{}, err
	}

	meta, err := s.WriteRelation(output, out, pageSize)
	if err != nil {
		return GenerationMeta{}, err
	}
	s.logger.LogAttrs(s.context, slog.LevelInfo, "hashtrie: compacted", slog.String("trie", meta.Key), slog.Int("inputs", len(inputs)), slog.Int("rows", meta.RowCount), slog.Int("pages", meta.PageCount), slog.Duration("elapsed", s.now().Sub(start)))
	return meta, nil
}

// checkCompactionInputs verifies that the output will hide exactly the
// inputs from CurrentGenerations: every input must be current, and every
// current generation below the output level up to its block must be an
// input.
func (s *Store) checkCompactionInputs(inputs []TrieKey, output TrieKey) error {
	all, err := s.Generations()
	if err != nil {
		return fmt.Errorf("compact %v: %w", output, err)
	}
	if slices.ContainsFunc(all, func(m GenerationMeta) bool { return m.TrieKey() == output }) {
		return fmt.Errorf("compact %v: %w", output, ErrGenerationExists)
	}
	current := currentGenerations(all)
	isCurrent := func(k TrieKey) bool {
		return slices.ContainsFunc(current, func(m GenerationMeta) bool { return m.TrieKey() == k })
	}
	for _, in := range inputs {
		if !slices.ContainsFunc(all, func(m GenerationMeta) bool { return m.TrieKey() == in }) {
			return fmt.Errorf("compact %v: %v: %w", output, in, ErrGenerationNotFound)
		}
		if !isCurrent(in) {
			return fmt.Errorf("compact %v: input %v is already covered by a compaction", output, in)
		}
	}
	for _, m := range current {
		if m.Level < output.Level && m.BlockIndex <= output.BlockIndex && !slices.Contains(inputs, m.TrieKey()) {
			return fmt.Errorf("compact %v: current generation %v would be hidden but is not an input", output, m.Key)
		}
	}
	return nil
}

func mergeSegments(s *Store, psegs []*PersistedSegment, output TrieKey) (*EventRelation, error) {
	segs := make([]Segment, len(psegs))
	width := 0
	for i, seg := range psegs {
		segs[i] = seg
		w, err := segmentWidth(seg)
		if err != nil {
			return nil, fmt.Errorf("compact %v: %w", output, err)
		}
		if w != 0 {
			if width != 0 && w != width {
				return nil, fmt.Errorf("compact %v: %v has %d-byte iids, others have %d", output, seg.Key(), w, width)
			}
			width = w
		}
	}
	if width == 0 {
		return nil, fmt.Errorf("compact %v: all inputs are empty", output)
	}

	out := NewEventRelation(width)
	err := ScanEvents(segs, ScanOptions{Logger: s.logger, Verbose: s.verbose, Metrics: s.metrics}, func(ev Event, _ int) (bool, error) {
		out.Append(ev)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("compact %v: %w", output, err)
	}

	return out, nil
}

// segmentWidth returns the iid width of a segment's first leaf page, or 0
// for an empty segment.
func segmentWidth(seg *PersistedSegment) (int, error) {
	for _, l := range Leaves(seg.RootNode()) {
		rows, err := seg.LoadLeaf(l)
		if err != nil {
			return 0, err
		}
		if rows.RowCount() > 0 {
			return rows.Width(), nil
		}
	}
	return 0, nil
}
