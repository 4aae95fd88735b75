package storage

import (
	"encoding/binary"
	"fmt"
)

// Tag identifies the concrete type carried by a Value.
type Tag byte

const (
	TagString Tag = 0x00
	TagUInt   Tag = 0x01
	TagU64    Tag = 0x02
	TagNull   Tag = 0x03
)

func (t Tag) String() string {
	switch t {
	case TagString:
		return "string"
	case TagUInt:
		return "uint"
	case TagU64:
		return "u64"
	case TagNull:
		return "null"
	default:
		return fmt.Sprintf("tag(0x%02x)", byte(t))
	}
}

// ParseTypeName maps a grammar type keyword (string | uint | u64) to a Tag.
func ParseTypeName(name string) (Tag, error) {
	switch name {
	case "string":
		return TagString, nil
	case "uint":
		return TagUInt, nil
	case "u64":
		return TagU64, nil
	default:
		return 0, &SchemaError{Detail: fmt.Sprintf("unknown type %q", name)}
	}
}

// Value is a tagged scalar. Exactly one of Str/UInt/U64 is meaningful,
// selected by Tag; TagNull carries no payload.
type Value struct {
	Tag  Tag
	Str  string
	UInt uint32
	U64  uint64
}

func NullValue() Value               { return Value{Tag: TagNull} }
func StringValue(s string) Value     { return Value{Tag: TagString, Str: s} }
func UIntValue(v uint32) Value       { return Value{Tag: TagUInt, UInt: v} }
func U64Value(v uint64) Value        { return Value{Tag: TagU64, U64: v} }

// Compare returns -1, 0, 1 for a<b, a==b, a>b under the total order: Null is
// the maximum; otherwise compared by the tag's natural order.
func (a Value) Compare(b Value) int {
	if a.Tag == TagNull && b.Tag == TagNull {
		return 0
	}
	if a.Tag == TagNull {
		return 1
	}
	if b.Tag == TagNull {
		return -1
	}
	switch a.Tag {
	case TagString:
		switch {
		case a.Str < b.Str:
			return -1
		case a.Str > b.Str:
			return 1
		default:
			return 0
		}
	case TagUInt:
		switch {
		case a.UInt < b.UInt:
			return -1
		case a.UInt > b.UInt:
			return 1
		default:
			return 0
		}
	case TagU64:
		switch {
		case a.U64 < b.U64:
			return -1
		case a.U64 > b.U64:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

func (a Value) Equal(b Value) bool { return a.Compare(b) == 0 }

func (v Value) String() string {
	switch v.Tag {
	case TagString:
		return v.Str
	case TagUInt:
		return fmt.Sprintf("%d", v.UInt)
	case TagU64:
		return fmt.Sprintf("%d", v.U64)
	default:
		return "NULL"
	}
}

// encodeValue appends a self-delimiting encoding of v to buf and returns the
// extended slice: [tag(1)] followed by a tag-specific payload.
func encodeValue(buf []byte, v Value) []byte {
	buf = append(buf, byte(v.Tag))
	switch v.Tag {
	case TagString:
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v.Str)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, v.Str...)
	case TagUInt:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v.UInt)
		buf = append(buf, b[:]...)
	case TagU64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], v.U64)
		buf = append(buf, b[:]...)
	case TagNull:
		// no payload
	}
	return buf
}

// decodeValue reads one self-delimiting Value from the front of buf,
// returning the value and the number of bytes consumed.
func decodeValue(buf []byte) (Value, int, error) {
	if len(buf) < 1 {
		return Value{}, 0, &CorruptionError{Detail: "value: truncated tag"}
	}
	tag := Tag(buf[0])
	switch tag {
	case TagString:
		if len(buf) < 5 {
			return Value{}, 0, &CorruptionError{Detail: "value: truncated string length"}
		}
		n := binary.BigEndian.Uint32(buf[1:5])
		end := 5 + int(n)
		if len(buf) < end {
			return Value{}, 0, &CorruptionError{Detail: "value: truncated string payload"}
		}
		return Value{Tag: TagString, Str: string(buf[5:end])}, end, nil
	case TagUInt:
		if len(buf) < 5 {
			return Value{}, 0, &CorruptionError{Detail: "value: truncated uint"}
		}
		return Value{Tag: TagUInt, UInt: binary.BigEndian.Uint32(buf[1:5])}, 5, nil
	case TagU64:
		if len(buf) < 9 {
			return Value{}, 0, &CorruptionError{Detail: "value: truncated u64"}
		}
		return Value{Tag: TagU64, U64: binary.BigEndian.Uint64(buf[1:9])}, 9, nil
	case TagNull:
		return Value{Tag: TagNull}, 1, nil
	default:
		return Value{}, 0, &CorruptionError{Detail: fmt.Sprintf("value: unknown tag 0x%02x", byte(tag))}
	}
}
