package hashtrie

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestPageCodec_RoundTrip(t *testing.T) {
	rel := NewEventRelation(2)
	rel.Append(Event{IID: x("0102"), SystemFrom: -5, ValidFrom: 1, ValidTo: EndOfTime, Op: OpPut, Doc: []byte("hello")})
	rel.Append(Event{IID: x("0102"), SystemFrom: -6, ValidFrom: 0, ValidTo: 3, Op: OpDelete})
	rel.Append(Event{IID: x("ffee"), SystemFrom: 1 << 40, ValidFrom: 7, ValidTo: 8, Op: OpPut, Doc: []byte{}})

	data := encodePage(rel)
	got, err := decodePage(data)
	require.NoError(t, err)
	require.Equal(t, rel.RowCount(), got.RowCount())
	assert.Equal(t, 2, got.Width())
	for i := range rel.RowCount() {
		want, have := rel.Event(i), got.Event(i)
		assert.Equal(t, want.IID, have.IID)
		assert.Equal(t, want.SystemFrom, have.SystemFrom)
		assert.Equal(t, want.ValidFrom, have.ValidFrom)
		assert.Equal(t, want.ValidTo, have.ValidTo)
		assert.Equal(t, want.Op, have.Op)
		assert.Equal(t, string(want.Doc), string(have.Doc))
	}
}

func TestPageCodec_HeadView(t *testing.T) {
	rel := sortedEvents(1, []row{{x("01"), 1}, {x("02"), 2}, {x("03"), 3}})
	got, err := decodePage(encodePage(rel.Head(2)))
	require.NoError(t, err)
	assert.Equal(t, 2, got.RowCount())
	assert.Equal(t, x("02"), got.IID(1))
}

func TestPageCodec_Corrupt(t *testing.T) {
	data := encodePage(sortedEvents(1, []row{{x("01"), 1}}))

	tests := []struct {
		name string
		data []byte
		msg  string
	}{
		{"short", data[:4], "too short"},
		{"bad checksum", flipByte(data, 0), "checksum"},
		{"bad body", flipByte(data, len(data)-1), "checksum"},
		{"garbage body", withChecksum([]byte{0xc1}), "msgpack"},
		{"inconsistent", withChecksum(mustMsgpack(t, pageRows{Width: 1, IIDs: []byte{1, 2}, SystemFrom: []int64{1}})), "inconsistent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodePage(tt.data)
			var de *DataError
			require.True(t, errors.As(err, &de), "err = %v", err)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func flipByte(data []byte, i int) []byte {
	out := append([]byte(nil), data...)
	out[i] ^= 0x55
	return out
}

func withChecksum(body []byte) []byte {
	out := binary.BigEndian.AppendUint64(nil, xxhash.Sum64(body))
	return append(out, body...)
}

func mustMsgpack(t *testing.T, v any) []byte {
	t.Helper()
	data, err := msgpack.Marshal(v)
	require.NoError(t, err)
	return data
}
