package hashtrie

import (
	"encoding/hex"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

// x decodes a hex literal, ignoring spaces.
func x(s string) []byte {
	return must(hex.DecodeString(strings.ReplaceAll(s, " ", "")))
}

// column builds an iid column from hex keys, row i holding keys[i].
func column(keys ...string) IIDColumn {
	col := NewIIDColumn(len(x(keys[0])))
	for _, k := range keys {
		col = col.Append(x(k))
	}
	return col
}

func randomIIDs(r *rand.Rand, n, width int) [][]byte {
	iids := make([][]byte, n)
	for i := range iids {
		iid := make([]byte, width)
		for j := range iid {
			iid[j] = byte(r.UintN(256))
		}
		iids[i] = iid
	}
	return iids
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// liveRows returns every row index reachable from the trie's leaves, in
// leaf order, each leaf's rows in selection order.
func liveRows(t *LiveTrie) []int {
	var rows []int
	for _, l := range Leaves(t.RootNode()) {
		rows = append(rows, t.Selection(l.(*LiveLeaf))...)
	}
	return rows
}

type row struct {
	iid []byte
	sys int64
}

// sortedEvents returns a relation of one put per row, in relation order.
func sortedEvents(width int, rows []row) *EventRelation {
	rows = slices.Clone(rows)
	slices.SortStableFunc(rows, func(a, b row) int {
		if c := strings.Compare(string(a.iid), string(b.iid)); c != 0 {
			return c
		}
		switch {
		case a.sys > b.sys:
			return -1
		case a.sys < b.sys:
			return 1
		}
		return 0
	})
	rel := NewEventRelation(width)
	for _, r := range rows {
		rel.Append(Event{IID: r.iid, SystemFrom: r.sys, ValidFrom: r.sys, ValidTo: EndOfTime, Op: OpPut})
	}
	return rel
}

func setupStore(t testing.TB) *Store {
	t.Helper()
	s, err := Open(t.TempDir()+"/test.db", Options{IsTesting: true, Logger: testLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type logWriter struct {
	t testing.TB
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

func testLogger(t testing.TB) *slog.Logger {
	if os.Getenv("HASHTRIE_TEST_QUIET") != "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(&logWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
