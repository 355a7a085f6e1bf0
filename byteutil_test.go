package hashtrie

import (
	"errors"
	"io"
	"math"
	"reflect"
	"testing"
)

func TestBytesBuilder_Basics(t *testing.T) {
	var bb bytesBuilder
	off := bb.Grow(3)
	copy(bb.Buf[off:], []byte{1, 2, 3})
	if cap(bb.Buf) < 16 {
		t.Fatalf("cap(bb.Buf) = %d, wanted >= 16", cap(bb.Buf))
	}

	_, _ = bb.Write([]byte{9, 8})
	_ = bb.WriteByte(7)
	if !reflect.DeepEqual(bb.Buf, []byte{1, 2, 3, 9, 8, 7}) {
		t.Fatalf("bb.Buf = %x, wanted 010203090807", bb.Buf)
	}

	big := make([]byte, 100)
	_, _ = bb.Write(big)
	if len(bb.Buf) != 106 || cap(bb.Buf) < 106 {
		t.Fatalf("len/cap = %d/%d, wanted 106/>=106", len(bb.Buf), cap(bb.Buf))
	}
	if bb.Buf[5] != 7 {
		t.Fatalf("bb.Buf[5] = %d, wanted 7 after growth", bb.Buf[5])
	}
}

func TestByteDecoder(t *testing.T) {
	var buf []byte
	buf = append(buf, 0xAB)
	buf = appendUvarint(buf, 300)
	buf = appendUvarinti(buf, 7)
	buf = append(buf, 1, 2, 3)

	d := makeByteDecoder(buf)
	if b, err := d.Byte(); err != nil || b != 0xAB {
		t.Fatalf("Byte = %x, %v", b, err)
	}
	if v, err := d.Uvarint(); err != nil || v != 300 {
		t.Fatalf("Uvarint = %d, %v", v, err)
	}
	if v, err := d.Uvarinti(); err != nil || v != 7 {
		t.Fatalf("Uvarinti = %d, %v", v, err)
	}
	if off := d.Off(); off != 4 {
		t.Fatalf("Off = %d, wanted 4", off)
	}
	for _, want := range []byte{1, 2, 3} {
		if b, err := d.Byte(); err != nil || b != want {
			t.Fatalf("Byte = %x, %v, wanted %x", b, err, want)
		}
	}

	_, err := d.Byte()
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Byte at end = %v, wanted ErrUnexpectedEOF", err)
	}
	var de *DataError
	if _, err := d.Uvarint(); !errors.As(err, &de) || de.Off != 7 {
		t.Fatalf("Uvarint at end = %v, wanted DataError at 7", err)
	}
}

func TestByteDecoder_UvarintiOverflow(t *testing.T) {
	buf := appendUvarint(nil, math.MaxUint64)
	d := makeByteDecoder(buf)
	if _, err := d.Uvarinti(); err == nil {
		t.Fatalf("Uvarinti(MaxUint64) succeeded")
	}
}

func TestAppendUvarinti_NegativePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("appendUvarinti(-1) did not panic")
		}
	}()
	appendUvarinti(nil, -1)
}
