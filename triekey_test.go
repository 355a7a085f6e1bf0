package hashtrie

import (
	"slices"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrieKey_String(t *testing.T) {
	tests := []struct {
		key  TrieKey
		want string
	}{
		{TrieKey{0, 0}, "l00-b00"},
		{TrieKey{1, 15}, "l01-b0f"},
		{TrieKey{2, 16}, "l02-b110"},
		{TrieKey{10, 0x12345}, "l0a-b412345"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.key.String())
		parsed, err := ParseTrieKey(tt.want)
		require.NoError(t, err)
		assert.Equal(t, tt.key, parsed)
	}
}

func TestTrieKey_LexOrderMatchesNumericOrder(t *testing.T) {
	r := newRand(17)
	var keys []TrieKey
	for range 300 {
		keys = append(keys, TrieKey{Level: r.IntN(20), BlockIndex: r.Int64N(1 << uint(r.IntN(40)+1))})
	}
	byString := slices.Clone(keys)
	sort.Slice(byString, func(i, j int) bool { return byString[i].String() < byString[j].String() })
	slices.SortFunc(keys, TrieKey.Compare)
	assert.Equal(t, keys, byString)
}

func TestParseTrieKey_Invalid(t *testing.T) {
	for _, s := range []string{
		"",
		"b00",
		"l00",
		"l00-x00",
		"l0-b00",
		"l10-b00",
		"l01-b005",
		"l100-b00",
		"l00-b0F",
		"l00-bzz",
	} {
		_, err := ParseTrieKey(s)
		assert.Error(t, err, "%q", s)
	}
	assert.Panics(t, func() { _ = TrieKey{Level: -1}.String() })
}
