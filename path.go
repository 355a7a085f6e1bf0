package hashtrie

import (
	"encoding/hex"
	"fmt"
)

const (
	// LevelBits is the number of identity key bits consumed per trie level.
	LevelBits = 4

	// LevelWidth is the fan-out of a branch.
	LevelWidth = 1 << LevelBits

	levelMask = LevelWidth - 1
)

// Path is a sequence of nibbles, one per trie level, identifying a node's
// position in the trie. len(path) is the node's depth.
type Path []byte

// Conj returns a new path with bucket appended. The receiver is never shared
// with the result.
func (p Path) Conj(bucket int) Path {
	if bucket < 0 || bucket >= LevelWidth {
		panic(fmt.Errorf("bucket %d out of range", bucket))
	}
	child := make(Path, len(p)+1)
	copy(child, p)
	child[len(p)] = byte(bucket)
	return child
}

func (p Path) String() string {
	if len(p) == 0 {
		return "<root>"
	}
	buf := make([]byte, len(p))
	for i, b := range p {
		buf[i] = hexDigits[b&levelMask]
	}
	return string(buf)
}

const hexDigits = "0123456789abcdef"

// MaxLevel is the number of levels a key of the given byte width can address.
func MaxLevel(keyWidth int) int {
	return keyWidth * 8 / LevelBits
}

// BucketFor extracts the nibble of key at the given level, most significant
// nibble of each byte first.
func BucketFor(key []byte, level int) int {
	bitIdx := level * LevelBits
	b := key[bitIdx/8]
	return int(b>>(8-LevelBits-bitIdx%8)) & levelMask
}

// CompareToPath compares the key's leading nibbles with path. Zero means the
// key falls under the path.
func CompareToPath(key []byte, path Path) int {
	for level, bucket := range path {
		if b := BucketFor(key, level); b != int(bucket) {
			if b < int(bucket) {
				return -1
			}
			return 1
		}
	}
	return 0
}

// ParsePath parses the String form of a path.
func ParsePath(s string) (Path, error) {
	if s == "" || s == "<root>" {
		return Path{}, nil
	}
	p := make(Path, len(s))
	for i := 0; i < len(s); i++ {
		v, err := hex.DecodeString("0" + s[i:i+1])
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", s, err)
		}
		p[i] = v[0]
	}
	return p, nil
}
