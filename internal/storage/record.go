package storage

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Record is a row: an ordered list of Values, one per schema column.
type Record struct {
	Values []Value
}

// Compare orders records lexicographically by their Value list.
func (r Record) Compare(o Record) int {
	n := len(r.Values)
	if len(o.Values) < n {
		n = len(o.Values)
	}
	for i := 0; i < n; i++ {
		if c := r.Values[i].Compare(o.Values[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(r.Values) < len(o.Values):
		return -1
	case len(r.Values) > len(o.Values):
		return 1
	default:
		return 0
	}
}

// SelectOnly returns a new Record containing only the values at indices, in
// ascending index order.
func (r Record) SelectOnly(indices []int) Record {
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)
	out := make([]Value, len(sorted))
	for i, idx := range sorted {
		out[i] = r.Values[idx]
	}
	return Record{Values: out}
}

// Clone returns a deep-enough copy (Value is a plain struct, so a slice copy
// suffices) safe to mutate independently of r.
func (r Record) Clone() Record {
	out := make([]Value, len(r.Values))
	copy(out, r.Values)
	return Record{Values: out}
}

// encodeRecord produces the self-delimiting row_bytes for a Record: a
// count-prefixed list of encoded Values.
func encodeRecord(rec Record) []byte {
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(rec.Values)))
	buf := append([]byte{}, countBuf[:]...)
	for _, v := range rec.Values {
		buf = encodeValue(buf, v)
	}
	return buf
}

// decodeRecord decodes a Record previously produced by encodeRecord,
// verifying that it consumes exactly len(buf) bytes.
func decodeRecord(buf []byte) (Record, error) {
	if len(buf) < 4 {
		return Record{}, &CorruptionError{Detail: "record: truncated count"}
	}
	count := binary.BigEndian.Uint32(buf[0:4])
	off := 4
	values := make([]Value, 0, count)
	for i := uint32(0); i < count; i++ {
		v, n, err := decodeValue(buf[off:])
		if err != nil {
			return Record{}, err
		}
		values = append(values, v)
		off += n
	}
	if off != len(buf) {
		return Record{}, &CorruptionError{Detail: fmt.Sprintf("record: decoded %d bytes, expected %d", off, len(buf))}
	}
	return Record{Values: values}, nil
}
