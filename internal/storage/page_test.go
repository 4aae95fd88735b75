package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeLeafNode(t *testing.T) {
	n := &Node{
		IsRoot: true,
		Type:   NodeTypeLeaf,
		Rows: []Record{
			{Values: []Value{UIntValue(1), StringValue("a")}},
			{Values: []Value{UIntValue(2), StringValue("b")}},
		},
	}
	page, err := EncodeNode(n)
	require.NoError(t, err)
	assert.Len(t, page, PageSize)

	got, err := DecodeNode(page)
	require.NoError(t, err)
	assert.True(t, got.IsRoot)
	assert.Equal(t, NodeTypeLeaf, got.Type)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, uint32(2), got.Rows[1].Values[0].UInt)
}

func TestEncodeDecodeInternalNode(t *testing.T) {
	n := &Node{
		Type:         NodeTypeInternal,
		ParentOffset: 256,
		Children:     []int64{256, 4352, 8448},
		Keys:         []Value{UIntValue(10), UIntValue(20)},
	}
	page, err := EncodeNode(n)
	require.NoError(t, err)

	got, err := DecodeNode(page)
	require.NoError(t, err)
	assert.Equal(t, int64(256), got.ParentOffset)
	assert.Equal(t, n.Children, got.Children)
	require.Len(t, got.Keys, 2)
	assert.Equal(t, uint32(20), got.Keys[1].UInt)
}

func TestDecodeNodeRejectsChildCountMismatch(t *testing.T) {
	n := &Node{Type: NodeTypeInternal, Children: []int64{1, 2, 3}, Keys: []Value{UIntValue(1)}}
	page, err := EncodeNode(n)
	require.NoError(t, err)
	_, err = DecodeNode(page)
	require.Error(t, err)
	var ce *CorruptionError
	assert.ErrorAs(t, err, &ce)
}

func TestEncodeSchemaNodeStaysWithinSchemaRegion(t *testing.T) {
	s := sampleSchema()
	n := &Node{Type: NodeTypeSchema, Schema: &s}
	page, err := EncodeNode(n)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(page), SchemaRegionBytes)

	padded := make([]byte, PageSize)
	copy(padded, page)
	got, err := DecodeNode(padded)
	require.NoError(t, err)
	require.NotNil(t, got.Schema)
	assert.Equal(t, s.TableName, got.Schema.TableName)
}

func TestIsFullBoundary(t *testing.T) {
	b := 2
	leaf := &Node{Type: NodeTypeLeaf, Rows: make([]Record, 2*b-2)}
	assert.False(t, isFull(leaf, b))
	leaf.Rows = make([]Record, 2*b-1)
	assert.True(t, isFull(leaf, b))
}
