package hashtrie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketFor(t *testing.T) {
	key := x("a5 3c")
	want := []int{0xa, 0x5, 0x3, 0xc}
	for level, w := range want {
		if got := BucketFor(key, level); got != w {
			t.Fatalf("BucketFor(%x, %d) = %x, wanted %x", key, level, got, w)
		}
	}
}

func TestCompareToPath(t *testing.T) {
	key := x("a5 3c")
	tests := []struct {
		path Path
		want int
	}{
		{Path{}, 0},
		{Path{0xa}, 0},
		{Path{0xa, 0x5, 0x3, 0xc}, 0},
		{Path{0xa, 0x6}, -1},
		{Path{0xb}, -1},
		{Path{0xa, 0x4}, 1},
		{Path{0x0, 0xf}, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CompareToPath(key, tt.path), "path %v", tt.path)
	}
}

func TestPathConj(t *testing.T) {
	base := make(Path, 1, 8)
	base[0] = 0x7
	a := base.Conj(1)
	b := base.Conj(2)
	assert.Equal(t, Path{0x7, 0x1}, a)
	assert.Equal(t, Path{0x7, 0x2}, b)
	assert.Equal(t, Path{0x7}, base)

	assert.Panics(t, func() { base.Conj(LevelWidth) })
	assert.Panics(t, func() { base.Conj(-1) })
}

func TestMaxLevel(t *testing.T) {
	assert.Equal(t, 32, MaxLevel(16))
	assert.Equal(t, 2, MaxLevel(1))
}

func TestPathStringRoundTrip(t *testing.T) {
	for _, p := range []Path{{}, {0}, {0xa, 0x5, 0xf, 0x0}} {
		parsed, err := ParsePath(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
	assert.Equal(t, "<root>", Path{}.String())
	assert.Equal(t, "a5f0", Path{0xa, 0x5, 0xf, 0x0}.String())

	_, err := ParsePath("az")
	assert.Error(t, err)
}

func TestKeyPrefixPaths(t *testing.T) {
	r := newRand(1)
	for _, key := range randomIIDs(r, 200, 4) {
		var path Path
		for level := range MaxLevel(4) {
			path = path.Conj(BucketFor(key, level))
			require.Zero(t, CompareToPath(key, path), "key %x path %v", key, path)
			require.True(t, IIDPathPred(key)(path))
			require.True(t, PathPrefixPred(path[:level/2])(path))
		}
	}
}
