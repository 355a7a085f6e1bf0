package hashtrie

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TrieKey names a persisted generation. Level 0 holds tries written from
// live tables; each compaction writes one level higher.
type TrieKey struct {
	Level      int
	BlockIndex int64
}

// String formats the key so that lexicographic order equals numeric order:
// "l<level>-b<block>", both as lex-hex.
func (k TrieKey) String() string {
	return "l" + lexHex(int64(k.Level)) + "-b" + lexHex(k.BlockIndex)
}

func (k TrieKey) Compare(o TrieKey) int {
	if c := cmp.Compare(k.Level, o.Level); c != 0 {
		return c
	}
	return cmp.Compare(k.BlockIndex, o.BlockIndex)
}

func ParseTrieKey(s string) (TrieKey, error) {
	rest, ok := strings.CutPrefix(s, "l")
	if !ok {
		return TrieKey{}, fmt.Errorf("invalid trie key %q: missing level", s)
	}
	levelStr, blockStr, ok := strings.Cut(rest, "-b")
	if !ok {
		return TrieKey{}, fmt.Errorf("invalid trie key %q: missing block index", s)
	}
	level, err := parseLexHex(levelStr)
	if err != nil {
		return TrieKey{}, fmt.Errorf("invalid trie key %q: level: %w", s, err)
	}
	block, err := parseLexHex(blockStr)
	if err != nil {
		return TrieKey{}, fmt.Errorf("invalid trie key %q: block index: %w", s, err)
	}
	if level > math.MaxInt {
		return TrieKey{}, fmt.Errorf("invalid trie key %q: level out of range", s)
	}
	return TrieKey{Level: int(level), BlockIndex: block}, nil
}

// lexHex writes one hex digit holding the number of digits minus one, then
// the digits.
func lexHex(v int64) string {
	if v < 0 {
		panic(fmt.Errorf("negative lex-hex value %d", v))
	}
	digits := strconv.FormatInt(v, 16)
	return strconv.FormatInt(int64(len(digits)-1), 16) + digits
}

func parseLexHex(s string) (int64, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("lex-hex %q too short", s)
	}
	n, err := strconv.ParseUint(s[:1], 16, 8)
	if err != nil {
		return 0, fmt.Errorf("lex-hex %q: bad length digit", s)
	}
	digits := s[1:]
	if len(digits) != int(n)+1 {
		return 0, fmt.Errorf("lex-hex %q: length digit says %d digits, got %d", s, n+1, len(digits))
	}
	if len(digits) > 1 && digits[0] == '0' {
		return 0, fmt.Errorf("lex-hex %q: leading zero", s)
	}
	if strings.ToLower(digits) != digits {
		return 0, fmt.Errorf("lex-hex %q: upper-case digits", s)
	}
	v, err := strconv.ParseInt(digits, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("lex-hex %q: %w", s, err)
	}
	return v, nil
}
