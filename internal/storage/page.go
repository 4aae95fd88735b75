package storage

import (
	"encoding/binary"
	"fmt"
)

const (
	// PageSize is the fixed size of every non-schema page on disk.
	PageSize = 4096
	// PtrSize is the width of an offset/pointer field, in bytes.
	PtrSize = 8
	// headerSize is the common 10-byte node header preceding the
	// type-dependent body.
	headerSize = 10
	// SchemaRegionBytes is the size of the window read back by
	// ReadSchemaPage; the schema blob itself is usually much smaller and
	// is self-delimited by its own length prefix.
	SchemaRegionBytes = 512
	// FirstTreePageOffset is where the B-tree's first page is written,
	// leaving room for the schema page ahead of it.
	FirstTreePageOffset = 256
)

// NodeType is the on-disk tag byte selecting a page's decoder.
type NodeType byte

const (
	NodeTypeInternal NodeType = 0x01
	NodeTypeLeaf     NodeType = 0x02
	NodeTypeSchema   NodeType = 0x03
)

// Node is the in-memory form of a page: a tagged union selected by Type.
// Only the fields relevant to Type are populated.
type Node struct {
	IsRoot       bool
	Type         NodeType
	ParentOffset int64 // 0 iff IsRoot

	Children []int64 // internal only, len == len(Keys)+1
	Keys     []Value // internal only

	Rows []Record // leaf only

	Schema *Schema // schema only
}

func isFullInternal(n *Node, b int) bool { return len(n.Keys) >= 2*b-1 }
func isFullLeaf(n *Node, b int) bool     { return len(n.Rows) >= 2*b-1 }

func isFull(n *Node, b int) bool {
	switch n.Type {
	case NodeTypeInternal:
		return isFullInternal(n, b)
	case NodeTypeLeaf:
		return isFullLeaf(n, b)
	default:
		return false
	}
}

func putU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func readU64At(buf []byte, offset int) (uint64, error) {
	if offset < 0 || offset+8 > len(buf) {
		return 0, &CorruptionError{Detail: "read_u64_at: out of range"}
	}
	return binary.BigEndian.Uint64(buf[offset : offset+8]), nil
}

func writeU64At(buf []byte, offset int, v uint64) error {
	if offset < 0 || offset+8 > len(buf) {
		return &CorruptionError{Detail: "write_u64_at: out of range"}
	}
	binary.BigEndian.PutUint64(buf[offset:offset+8], v)
	return nil
}

// EncodeNode produces the on-disk byte form of a node. Internal and leaf
// nodes are padded to exactly PageSize and fail if the body overflows it;
// schema nodes produce a compact blob and fail unless it fits ahead of
// FirstTreePageOffset, so the first tree page never overwrites it.
func EncodeNode(n *Node) ([]byte, error) {
	header := make([]byte, headerSize)
	if n.IsRoot {
		header[0] = 1
	}
	header[1] = byte(n.Type)
	binary.BigEndian.PutUint64(header[2:10], uint64(n.ParentOffset))

	var body []byte
	switch n.Type {
	case NodeTypeInternal:
		body = putU64(body, uint64(len(n.Children)))
		for _, c := range n.Children {
			body = putU64(body, uint64(c))
		}
		var keyBytes []byte
		for _, k := range n.Keys {
			keyBytes = encodeValue(keyBytes, k)
		}
		body = putU64(body, uint64(len(keyBytes)))
		body = append(body, keyBytes...)
	case NodeTypeLeaf:
		body = putU64(body, uint64(len(n.Rows)))
		for _, row := range n.Rows {
			rowBytes := encodeRecord(row)
			body = putU64(body, uint64(len(rowBytes)))
			body = append(body, rowBytes...)
		}
	case NodeTypeSchema:
		schemaBytes := encodeSchema(*n.Schema)
		body = putU64(body, uint64(len(schemaBytes)))
		body = append(body, schemaBytes...)
	default:
		return nil, &CorruptionError{Detail: fmt.Sprintf("encode_node: unknown node type 0x%02x", byte(n.Type))}
	}

	total := headerSize + len(body)
	if n.Type == NodeTypeSchema {
		if total > FirstTreePageOffset {
			return nil, &CorruptionError{Detail: fmt.Sprintf("encode_node: schema page overflows %d bytes", FirstTreePageOffset)}
		}
		return append(header, body...), nil
	}

	if total > PageSize {
		return nil, &CorruptionError{Detail: fmt.Sprintf("encode_node: body overflows page size %d (total %d)", PageSize, total)}
	}
	page := make([]byte, PageSize)
	copy(page, header)
	copy(page[headerSize:], body)
	return page, nil
}

// DecodeNode decodes a page buffer (exactly PageSize bytes, or a
// zero-padded PageSize buffer for the schema page) into a Node.
func DecodeNode(buf []byte) (*Node, error) {
	if len(buf) < headerSize {
		return nil, &CorruptionError{Detail: "decode_node: buffer shorter than header"}
	}
	n := &Node{
		IsRoot: buf[0] != 0,
		Type:   NodeType(buf[1]),
	}
	parentOffset, err := readU64At(buf, 2)
	if err != nil {
		return nil, err
	}
	n.ParentOffset = int64(parentOffset)

	body := buf[headerSize:]
	switch n.Type {
	case NodeTypeInternal:
		numChildren, err := readU64At(body, 0)
		if err != nil {
			return nil, err
		}
		off := 8
		children := make([]int64, 0, numChildren)
		for i := uint64(0); i < numChildren; i++ {
			c, err := readU64At(body, off)
			if err != nil {
				return nil, &CorruptionError{Detail: "decode_node: truncated child offset"}
			}
			children = append(children, int64(c))
			off += 8
		}
		keysLen, err := readU64At(body, off)
		if err != nil {
			return nil, &CorruptionError{Detail: "decode_node: truncated keys_len"}
		}
		off += 8
		if off+int(keysLen) > len(body) {
			return nil, &CorruptionError{Detail: "decode_node: keys_bytes overflow body"}
		}
		keyBuf := body[off : off+int(keysLen)]
		keys := make([]Value, 0)
		consumed := 0
		for consumed < len(keyBuf) {
			v, k, err := decodeValue(keyBuf[consumed:])
			if err != nil {
				return nil, err
			}
			keys = append(keys, v)
			consumed += k
		}
		if len(children) != len(keys)+1 {
			return nil, &CorruptionError{Detail: fmt.Sprintf("decode_node: children.len()=%d != keys.len()+1=%d", len(children), len(keys)+1)}
		}
		n.Children = children
		n.Keys = keys
	case NodeTypeLeaf:
		numRows, err := readU64At(body, 0)
		if err != nil {
			return nil, err
		}
		off := 8
		rows := make([]Record, 0, numRows)
		for i := uint64(0); i < numRows; i++ {
			rowLen, err := readU64At(body, off)
			if err != nil {
				return nil, &CorruptionError{Detail: "decode_node: truncated row_len"}
			}
			off += 8
			if off+int(rowLen) > len(body) {
				return nil, &CorruptionError{Detail: "decode_node: row_bytes overflow body"}
			}
			rec, err := decodeRecord(body[off : off+int(rowLen)])
			if err != nil {
				return nil, err
			}
			rows = append(rows, rec)
			off += int(rowLen)
		}
		n.Rows = rows
	case NodeTypeSchema:
		schemaLen, err := readU64At(body, 0)
		if err != nil {
			return nil, err
		}
		off := 8
		if off+int(schemaLen) > len(body) {
			return nil, &CorruptionError{Detail: "decode_node: schema blob overflows buffer"}
		}
		sch, err := decodeSchema(body[off : off+int(schemaLen)])
		if err != nil {
			return nil, err
		}
		n.Schema = &sch
	default:
		return nil, &CorruptionError{Detail: fmt.Sprintf("decode_node: unknown node type tag 0x%02x", byte(n.Type))}
	}
	return n, nil
}
