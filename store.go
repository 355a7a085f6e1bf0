package hashtrie

import (
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

const (
	catalogBucket = "catalog"
	triesBucket   = "tries"

	encodingKey   = 0x00
	pageKeyPrefix = 0x01
)

type Options struct {
	Logger    *slog.Logger
	Verbose   bool
	IsTesting bool
	MmapSize  int
	Metrics   *Metrics
	Now       func() time.Time
}

// GenerationMeta is the catalog entry of a persisted generation.
type GenerationMeta struct {
	Key           string    `msgpack:"k"`
	Level         int       `msgpack:"l"`
	BlockIndex    int64     `msgpack:"b"`
	RowCount      int       `msgpack:"r"`
	PageCount     int       `msgpack:"p"`
	MinSystemFrom int64     `msgpack:"smin"`
	MaxSystemFrom int64     `msgpack:"smax"`
	Created       time.Time `msgpack:"c"`
}

func (m GenerationMeta) TrieKey() TrieKey {
	return TrieKey{Level: m.Level, BlockIndex: m.BlockIndex}
}

// Store persists generations: a catalog plus, per generation, the trie
// encoding and its leaf pages.
type Store struct {
	st      storage
	logger  *slog.Logger
	verbose bool
	metrics *Metrics
	now     func() time.Time
	context context.Context
}

// Open opens or creates a Bolt-backed store at path.
func Open(path string, opt Options) (*Store, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 256
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("hashtrie: %w", err)
	}
	return newStore(newBoltStorage(bdb), opt), nil
}

// OpenMem returns a transient in-memory store.
func OpenMem(opt Options) *Store {
	return newStore(newMemStorage(), opt)
}

func newStore(st storage, opt Options) *Store {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Store{
		st:      st,
		logger:  opt.Logger,
		verbose: opt.Verbose,
		metrics: opt.Metrics,
		now:     opt.Now,
		context: context.Background(),
	}
}

func (s *Store) Close() error {
	return s.st.Close()
}

// WriteLiveTrie persists a live trie over rel as generation key.
func (s *Store) WriteLiveTrie(key TrieKey, trie *LiveTrie, rel *EventRelation) (GenerationMeta, error) {
	return s.write(key, "live", func(pw PageWriter) (*TrieEncoding, WriteStats, error) {
		return WriteLiveTrie(pw, trie, rel)
	})
}

// WriteRelation persists a sorted relation as generation key, partitioned
// into pages of at most pageSize rows where the keys allow.
func (s *Store) WriteRelation(key TrieKey, rel *EventRelation, pageSize int) (GenerationMeta, error) {
	return s.write(key, "relation", func(pw PageWriter) (*TrieEncoding, WriteStats, error) {
		return WriteRelation(pw, rel, pageSize)
	})
}

func (s *Store) write(key TrieKey, source string, f func(pw PageWriter) (*TrieEncoding, WriteStats, error)) (GenerationMeta, error) {
	name := key.String()
	tx, err := s.st.BeginTx(true)
	if err != nil {
		return GenerationMeta{}, fmt.Errorf("%s: %w", name, err)
	}
	defer tx.Rollback()

	catalog, err := tx.CreateBucket(catalogBucket, "")
	if err != nil {
		return GenerationMeta{}, fmt.Errorf("%s: %w", name, err)
	}
	if catalog.Get([]byte(name)) != nil {
		return GenerationMeta{}, fmt.Errorf("%s: %w", name, ErrGenerationExists)
	}
	b, err := tx.CreateBucket(triesBucket, name)
	if err != nil {
		return GenerationMeta{}, fmt.Errorf("%s: %w", name, err)
	}

	enc, stats, err := f(&bucketPageWriter{b: b})
	if err != nil {
		return GenerationMeta{}, fmt.Errorf("%s: %w", name, err)
	}
	encData, err := enc.MarshalBinary()
	if err != nil {
		return GenerationMeta{}, fmt.Errorf("%s: %w", name, err)
	}
	if err := b.Put([]byte{encodingKey}, appendChecksummed(nil, encData)); err != nil {
		return GenerationMeta{}, fmt.Errorf("%s: %w", name, err)
	}

	meta := GenerationMeta{
		Key:           name,
		Level:         key.Level,
		BlockIndex:    key.BlockIndex,
		RowCount:      stats.RowCount,
		PageCount:     stats.PageCount,
		MinSystemFrom: stats.MinSystemFrom,
		MaxSystemFrom: stats.MaxSystemFrom,
		Created:       s.now().UTC(),
	}
	metaData, err := msgpack.Marshal(&meta)
	if err != nil {
		panic(fmt.Errorf("failed to encode %T using MsgPack: %w", meta, err))
	}
	if err := catalog.Put([]byte(name), metaData); err != nil {
		return GenerationMeta{}, fmt.Errorf("%s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return GenerationMeta{}, fmt.Errorf("%s: %w", name, err)
	}

	s.metrics.trieWritten(source)
	if s.verbose {
		s.logger.LogAttrs(s.context, slog.LevelDebug, "hashtrie: wrote trie", slog.String("trie", name), slog.String("source", source), slog.Int("rows", meta.RowCount), slog.Int("pages", meta.PageCount), slog.Int("nodes", len(enc.Nodes)))
	}
	return meta, nil
}

// Generations lists the catalog in key order.
func (s *Store) Generations() ([]GenerationMeta, error) {
	return s.scanCatalog("")
}

// GenerationsAtLevel lists the catalog entries of one level in block order.
func (s *Store) GenerationsAtLevel(level int) ([]GenerationMeta, error) {
	return s.scanCatalog("l" + lexHex(int64(level)) + "-")
}

func (s *Store) scanCatalog(prefix string) ([]GenerationMeta, error) {
	tx, err := s.st.BeginTx(false)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	catalog := tx.Bucket(catalogBucket, "")
	if catalog == nil {
		return nil, nil
	}
	var result []GenerationMeta
	c := catalog.Cursor()
	for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
		var meta GenerationMeta
		if err := msgpack.Unmarshal(v, &meta); err != nil {
			return nil, dataErrf(v, 0, err, "catalog entry %q", k)
		}
		meta.Created = meta.Created.UTC()
		result = append(result, meta)
	}
	return result, nil
}

// StoreStats reports the size of the store and, per generation, the number
// of keys kept under its trie bucket (the encoding plus one per page).
type StoreStats struct {
	Size     int64
	TrieKeys map[string]int
}

func (s *Store) Stats() (StoreStats, error) {
	tx, err := s.st.BeginTx(false)
	if err != nil {
		return StoreStats{}, err
	}
	defer tx.Rollback()

	stats := StoreStats{Size: tx.Size(), TrieKeys: make(map[string]int)}
	catalog := tx.Bucket(catalogBucket, "")
	if catalog == nil {
		return stats, nil
	}
	c := catalog.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		if b := tx.Bucket(triesBucket, string(k)); b != nil {
			stats.TrieKeys[string(k)] = b.KeyCount()
		}
	}
	return stats, nil
}

// CurrentGenerations returns the generations a scan should read, oldest
// first: every generation not covered by a higher-level one whose block
// index is at least its own.
func (s *Store) CurrentGenerations() ([]GenerationMeta, error) {
	all, err := s.Generations()
	if err != nil {
		return nil, err
	}
	return currentGenerations(all), nil
}

func currentGenerations(all []GenerationMeta) []GenerationMeta {
	var result []GenerationMeta
	for _, m := range all {
		covered := slices.ContainsFunc(all, func(o GenerationMeta) bool {
			return o.Level > m.Level && o.BlockIndex >= m.BlockIndex
		})
		if !covered {
			result = append(result, m)
		}
	}
	slices.SortFunc(result, func(a, b GenerationMeta) int {
		if c := cmp.Compare(a.BlockIndex, b.BlockIndex); c != 0 {
			return c
		}
		return cmp.Compare(a.Level, b.Level)
	})
	return result
}

// DropGeneration removes a generation and its pages.
func (s *Store) DropGeneration(key TrieKey) error {
	name := key.String()
	tx, err := s.st.BeginTx(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	catalog := tx.Bucket(catalogBucket, "")
	if catalog == nil || catalog.Get([]byte(name)) == nil {
		return fmt.Errorf("%s: %w", name, ErrGenerationNotFound)
	}
	if err := catalog.Delete([]byte(name)); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := tx.DeleteBucket(triesBucket, name); err != nil && !errors.Is(err, ErrBucketNotFound) {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if s.verbose {
		s.logger.LogAttrs(s.context, slog.LevelDebug, "hashtrie: dropped trie", slog.String("trie", name))
	}
	return nil
}

// OpenSegment opens generation key for reading. The segment holds a read
// transaction until closed and must not be shared between goroutines.
func (s *Store) OpenSegment(key TrieKey) (*PersistedSegment, error) {
	name := key.String()
	tx, err := s.st.BeginTx(false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	b := tx.Bucket(triesBucket, name)
	if b == nil {
		tx.Rollback()
		return nil, fmt.Errorf("%s: %w", name, ErrGenerationNotFound)
	}
	data := b.Get([]byte{encodingKey})
	if data == nil {
		tx.Rollback()
		return nil, fmt.Errorf("%s: missing trie encoding", name)
	}
	body, err := verifyChecksum(data, "trie encoding")
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	var enc TrieEncoding
	if err := enc.UnmarshalBinary(body); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	trie, err := OpenReadOnlyTrie(name, &enc, &bucketPageLoader{b: b, metrics: s.metrics})
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	return &PersistedSegment{key: key, tx: tx, trie: trie}, nil
}

// OpenSegments opens the given generations in order. On failure, the
// segments opened so far are closed.
func (s *Store) OpenSegments(keys []TrieKey) ([]*PersistedSegment, error) {
	segs := make([]*PersistedSegment, 0, len(keys))
	for _, key := range keys {
		seg, err := s.OpenSegment(key)
		if err != nil {
			CloseSegments(segs)
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

func CloseSegments(segs []*PersistedSegment) {
	for _, seg := range segs {
		seg.Close()
	}
}

// PersistedSegment is a generation read from the store.
type PersistedSegment struct {
	key  TrieKey
	tx   storageTx
	trie *ReadOnlyTrie
}

func (s *PersistedSegment) Key() TrieKey { return s.key }

func (s *PersistedSegment) Trie() *ReadOnlyTrie { return s.trie }

func (s *PersistedSegment) RootNode() Node { return s.trie.RootNode() }

func (s *PersistedSegment) LoadLeaf(l Leaf) (*EventRelation, error) {
	rl, ok := l.(*ReadOnlyLeaf)
	if !ok {
		panic(fmt.Errorf("persisted segment got %T", l))
	}
	return rl.Rows()
}

func (s *PersistedSegment) Close() error {
	return s.tx.Rollback()
}

func pageKey(page int) []byte {
	var k [5]byte
	k[0] = pageKeyPrefix
	binary.BigEndian.PutUint32(k[1:], uint32(page))
	return k[:]
}

type bucketPageWriter struct {
	b storageBucket
	n int
}

func (w *bucketPageWriter) WritePage(rows *EventRelation) (int, error) {
	page := w.n
	if err := w.b.Put(pageKey(page), encodePage(rows)); err != nil {
		return -1, err
	}
	w.n++
	return page, nil
}

type bucketPageLoader struct {
	b       storageBucket
	metrics *Metrics
}

func (l *bucketPageLoader) LoadPage(page int) (*EventRelation, error) {
	data := l.b.Get(pageKey(page))
	if data == nil {
		return nil, fmt.Errorf("missing page")
	}
	rows, err := decodePage(data)
	if err != nil {
		return nil, err
	}
	l.metrics.pageLoaded(len(data))
	return rows, nil
}
