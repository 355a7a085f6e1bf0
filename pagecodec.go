package hashtrie

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// pageRows is the stored form of a leaf page: the relation's columns, iids
// packed back to back.
type pageRows struct {
	Width      int      `msgpack:"w"`
	IIDs       []byte   `msgpack:"i"`
	SystemFrom []int64  `msgpack:"s"`
	ValidFrom  []int64  `msgpack:"vf"`
	ValidTo    []int64  `msgpack:"vt"`
	Ops        []byte   `msgpack:"o"`
	Docs       [][]byte `msgpack:"d"`
}

const pageChecksumLen = 8

// encodePage returns the msgpack body prefixed with its checksum, laid out
// as appendChecksummed does.
func encodePage(rel *EventRelation) []byte {
	n := rel.RowCount()
	p := pageRows{
		Width:      rel.Width(),
		IIDs:       rel.iids.data[:n*rel.Width()],
		SystemFrom: rel.systemFrom,
		ValidFrom:  rel.validFrom,
		ValidTo:    rel.validTo,
		Ops:        make([]byte, n),
		Docs:       rel.docs,
	}
	for i, op := range rel.ops {
		p.Ops[i] = byte(op)
	}

	bb := bytesBuilder{make([]byte, pageChecksumLen, pageChecksumLen+n*(rel.Width()+32))}
	enc := msgpack.GetEncoder()
	enc.Reset(&bb)
	err := enc.Encode(&p)
	msgpack.PutEncoder(enc)
	if err != nil {
		panic(fmt.Errorf("failed to encode page of %d rows using MsgPack: %w", n, err))
	}
	binary.BigEndian.PutUint64(bb.Buf[:pageChecksumLen], xxhash.Sum64(bb.Buf[pageChecksumLen:]))
	return bb.Buf
}

// appendChecksummed appends xxhash64(body) as 8 big-endian bytes followed by
// body.
func appendChecksummed(buf, body []byte) []byte {
	buf = binary.BigEndian.AppendUint64(buf, xxhash.Sum64(body))
	return append(buf, body...)
}

// verifyChecksum returns the body of checksummed data. what names the data
// in errors.
func verifyChecksum(data []byte, what string) ([]byte, error) {
	if len(data) < pageChecksumLen {
		return nil, dataErrf(data, 0, nil, "%s too short", what)
	}
	body := data[pageChecksumLen:]
	if want, got := binary.BigEndian.Uint64(data), xxhash.Sum64(body); want != got {
		return nil, dataErrf(data, 0, nil, "%s checksum mismatch: stored %016x, computed %016x", what, want, got)
	}
	return body, nil
}

func decodePage(data []byte) (*EventRelation, error) {
	body, err := verifyChecksum(data, "page")
	if err != nil {
		return nil, err
	}

	var p pageRows
	var r bytes.Reader
	r.Reset(body)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err = dec.Decode(&p)
	msgpack.PutDecoder(dec)
	if err != nil {
		return nil, dataErrf(data, pageChecksumLen, err, "failed to decode msgpack page")
	}

	n := len(p.SystemFrom)
	if p.Width <= 0 || len(p.IIDs) != n*p.Width || len(p.ValidFrom) != n || len(p.ValidTo) != n || len(p.Ops) != n || len(p.Docs) != n {
		return nil, dataErrf(data, pageChecksumLen, nil, "inconsistent page columns for %d rows of width %d", n, p.Width)
	}
	rel := &EventRelation{
		iids:       IIDColumn{width: p.Width, data: p.IIDs},
		systemFrom: p.SystemFrom,
		validFrom:  p.ValidFrom,
		validTo:    p.ValidTo,
		ops:        make([]Op, n),
		docs:       p.Docs,
	}
	for i, op := range p.Ops {
		rel.ops[i] = Op(op)
	}
	return rel, nil
}
