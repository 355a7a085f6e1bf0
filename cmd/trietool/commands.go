package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/xtdb/hashtrie"
)

const iidWidth = 16

func ingestCmd() *cobra.Command {
	var generations, rows, keys int
	var seed uint64
	var deleteRatio float64
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Write level-0 generations of random events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if generations <= 0 || rows <= 0 || keys <= 0 {
				return errors.New("--generations, --rows and --keys must be positive")
			}
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			existing, err := s.Generations()
			if err != nil {
				return err
			}
			var nextBlock, sysTime int64
			for _, m := range existing {
				nextBlock = max(nextBlock, m.BlockIndex+1)
				sysTime = max(sysTime, m.MaxSystemFrom+1)
			}

			var seedBytes [32]byte
			for i := range 8 {
				seedBytes[i] = byte(seed >> (8 * i))
			}
			rng := rand.NewChaCha8(seedBytes)
			iids := make([][]byte, keys)
			for i := range iids {
				id, err := uuid.NewRandomFromReader(rng)
				if err != nil {
					return err
				}
				iids[i] = id[:]
			}
			r := rand.New(rng)

			for g := range generations {
				lt := hashtrie.NewLiveTable(iidWidth, hashtrie.LiveTableOptions{
					Trie:    liveOptions(),
					Logger:  logger,
					Verbose: cfg.Verbose,
					Metrics: metrics,
				})
				for range rows {
					iid := iids[r.IntN(len(iids))]
					if r.Float64() < deleteRatio {
						_, err = lt.Delete(iid, sysTime, sysTime, hashtrie.EndOfTime)
					} else {
						_, err = lt.Put(iid, sysTime, sysTime, hashtrie.EndOfTime, []byte(fmt.Sprintf("v%d", sysTime)))
					}
					if err != nil {
						return err
					}
					sysTime++
				}
				meta, err := lt.Finish(s, hashtrie.TrieKey{Level: 0, BlockIndex: nextBlock + int64(g)})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows, %d pages\n", meta.Key, meta.RowCount, meta.PageCount)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&generations, "generations", 1, "number of generations to write")
	f.IntVar(&rows, "rows", 1000, "events per generation")
	f.IntVar(&keys, "keys", 100, "number of distinct iids")
	f.Uint64Var(&seed, "seed", 1, "random seed")
	f.Float64Var(&deleteRatio, "delete-ratio", 0.1, "fraction of events that are deletes")
	return cmd
}

func dumpCmd() *cobra.Command {
	var showRows bool
	cmd := &cobra.Command{
		Use:   "dump [trie key]",
		Short: "Print the catalog, or the shape of one trie",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				metas, err := s.Generations()
				if err != nil {
					return err
				}
				stats, err := s.Stats()
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
				fmt.Fprintln(w, "KEY\tROWS\tPAGES\tKEYS\tSYSTEM FROM\tCREATED")
				for _, m := range metas {
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d..%d\t%s\n", m.Key, m.RowCount, m.PageCount, stats.TrieKeys[m.Key], m.MinSystemFrom, m.MaxSystemFrom, m.Created.Format("2006-01-02 15:04:05"))
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(out, "%d generations, %d bytes\n", len(metas), stats.Size)
				return nil
			}

			key, err := hashtrie.ParseTrieKey(args[0])
			if err != nil {
				return err
			}
			seg, err := s.OpenSegment(key)
			if err != nil {
				return err
			}
			defer seg.Close()
			flags := hashtrie.DumpShape
			if showRows {
				flags |= hashtrie.DumpRows
			}
			text, err := hashtrie.DumpSegment(seg, flags)
			fmt.Fprint(out, text)
			return err
		},
	}
	cmd.Flags().BoolVar(&showRows, "rows", false, "also print leaf rows")
	return cmd
}

func scanCmd() *cobra.Command {
	var asOf, validAt int64
	var iidStr, pathStr string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Print the latest visible version of every iid",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			metas, err := s.CurrentGenerations()
			if err != nil {
				return err
			}
			keys := make([]hashtrie.TrieKey, len(metas))
			for i, m := range metas {
				keys[i] = m.TrieKey()
			}
			psegs, err := s.OpenSegments(keys)
			if err != nil {
				return err
			}
			defer hashtrie.CloseSegments(psegs)
			segs := make([]hashtrie.Segment, len(psegs))
			for i, seg := range psegs {
				segs[i] = seg
			}

			opts := hashtrie.ScanOptions{Logger: logger, Verbose: cfg.Verbose, Metrics: metrics}
			if cmd.Flags().Changed("valid-at") {
				opts.ValidAt = &validAt
			}
			var iid []byte
			if iidStr != "" {
				iid, err = parseIID(iidStr)
				if err != nil {
					return err
				}
				opts.PathPred = hashtrie.IIDPathPred(iid)
			}
			var path hashtrie.Path
			if pathStr != "" {
				path, err = hashtrie.ParsePath(pathStr)
				if err != nil {
					return err
				}
				if len(path) > hashtrie.MaxLevel(iidWidth) {
					return fmt.Errorf("path %q is deeper than a %d-byte iid", pathStr, iidWidth)
				}
				inPath := hashtrie.PathPrefixPred(path)
				if byIID := opts.PathPred; byIID != nil {
					opts.PathPred = func(p hashtrie.Path) bool { return byIID(p) && inPath(p) }
				} else {
					opts.PathPred = inPath
				}
			}

			out := cmd.OutOrStdout()
			var n int
			err = hashtrie.ScanLatest(segs, asOf, opts, func(ev hashtrie.Event) bool {
				if iid != nil && !bytes.Equal(ev.IID, iid) {
					return true
				}
				if hashtrie.CompareToPath(ev.IID, path) != 0 {
					return true
				}
				n++
				fmt.Fprintln(out, ev)
				return true
			})
			if err != nil {
				return err
			}
			logger.Info("scan finished", "rows", n, "generations", len(segs))
			return nil
		},
	}
	f := cmd.Flags()
	f.Int64Var(&asOf, "as-of", math.MaxInt64, "system time to read as of")
	f.Int64Var(&validAt, "valid-at", 0, "valid time to read at (default: any)")
	f.StringVar(&iidStr, "iid", "", "only this iid (uuid or hex)")
	f.StringVar(&pathStr, "path", "", "only iids under this trie path, in hex nibbles (e.g. a5)")
	return cmd
}

func compactCmd() *cobra.Command {
	var pageSize, level int
	var dropInputs bool
	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Compact the uncovered generations of one level into the next level",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			inputs, err := s.CompactionInputs(level)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to compact")
				return nil
			}
			meta, err := s.Compact(inputs, hashtrie.NextCompactionKey(inputs), pageSize)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows, %d pages from %d generations\n", meta.Key, meta.RowCount, meta.PageCount, len(inputs))

			if dropInputs {
				for _, in := range inputs {
					if err := s.DropGeneration(in); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&pageSize, "page-size", hashtrie.DefaultCompactPageSize, "maximum rows per output page")
	f.IntVar(&level, "level", 0, "level to compact")
	f.BoolVar(&dropInputs, "drop-inputs", false, "remove the compacted generations")
	return cmd
}

func parseIID(s string) ([]byte, error) {
	if id, err := uuid.Parse(s); err == nil {
		return id[:], nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid iid %q: want a uuid or hex", s)
	}
	if len(b) != iidWidth {
		return nil, fmt.Errorf("invalid iid %q: %d bytes, want %d", s, len(b), iidWidth)
	}
	return b, nil
}
