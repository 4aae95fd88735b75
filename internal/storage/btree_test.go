package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usersSchema() Schema {
	return Schema{
		TableName:       "users",
		PrimaryKeyIndex: 0,
		Columns: []ColumnDef{
			{Name: "id", Type: TagUInt, PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: TagString, Unique: true},
			{Name: "age", Type: TagUInt, Nullable: true},
		},
	}
}

func newTestBTree(t *testing.T, b int) *BTree {
	t.Helper()
	dir := t.TempDir()
	pager, err := OpenPager(filepath.Join(dir, "table"), testLogger())
	require.NoError(t, err)
	wal, err := OpenWAL(filepath.Join(dir, "wal"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { pager.Close(); wal.Close() })
	return Open(pager, wal, b, testLogger())
}

func TestSplitNodeLeafBoundary(t *testing.T) {
	b := 2
	n := &Node{Type: NodeTypeLeaf, Rows: []Record{
		{Values: []Value{UIntValue(1)}},
		{Values: []Value{UIntValue(2)}},
		{Values: []Value{UIntValue(3)}},
	}}
	median, sibling := splitNode(n, b)

	assert.Equal(t, uint32(2), median.UInt)
	assert.Len(t, n.Rows, b, "the node keeps b rows after split")
	assert.Len(t, sibling.Rows, b-1, "the sibling keeps b-1 rows after split")
}

func TestSplitNodeInternalBoundary(t *testing.T) {
	b := 2
	n := &Node{Type: NodeTypeInternal,
		Keys:     []Value{UIntValue(10), UIntValue(20), UIntValue(30)},
		Children: []int64{256, 4352, 8448, 12544},
	}
	median, sibling := splitNode(n, b)
	assert.Equal(t, uint32(20), median.UInt)
	assert.Len(t, n.Keys, b-1)
	assert.Len(t, n.Children, b)
	assert.Len(t, sibling.Keys, 1)
	assert.Len(t, sibling.Children, 2)
}

func TestBTreeCreateInsertSelect(t *testing.T) {
	bt := newTestBTree(t, 10)
	schema := usersSchema()
	require.NoError(t, bt.CreateTable(schema))

	require.NoError(t, bt.Insert(nil, []Literal{NullLiteral(), TextLiteral("alice"), TextLiteral("30")}))
	require.NoError(t, bt.Insert(nil, []Literal{NullLiteral(), TextLiteral("bob"), TextLiteral("25")}))

	rows, err := bt.Select(nil, nil, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, uint32(1), rows[0].Values[0].UInt, "autoincrement assigns 1 then 2")
	assert.Equal(t, uint32(2), rows[1].Values[0].UInt)
}

func TestBTreeAutoincrementContinuesAfterMax(t *testing.T) {
	bt := newTestBTree(t, 10)
	schema := usersSchema()
	require.NoError(t, bt.CreateTable(schema))

	require.NoError(t, bt.Insert([]string{"id", "name"}, []Literal{TextLiteral("5"), TextLiteral("x")}))
	require.NoError(t, bt.Insert(nil, []Literal{NullLiteral(), TextLiteral("y"), NullLiteral()}))

	rows, err := bt.Select([]string{"id"}, nil, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, uint32(6), rows[1].Values[0].UInt)
}

func TestBTreeRejectsDuplicateUniqueColumn(t *testing.T) {
	bt := newTestBTree(t, 10)
	schema := usersSchema()
	require.NoError(t, bt.CreateTable(schema))

	require.NoError(t, bt.Insert(nil, []Literal{NullLiteral(), TextLiteral("alice"), TextLiteral("30")}))
	err := bt.Insert(nil, []Literal{NullLiteral(), TextLiteral("alice"), TextLiteral("40")})
	require.Error(t, err)
	var se *SchemaError
	assert.ErrorAs(t, err, &se)
}

func TestBTreeSelectWithWhereAndLimit(t *testing.T) {
	bt := newTestBTree(t, 10)
	schema := usersSchema()
	require.NoError(t, bt.CreateTable(schema))

	for i, name := range []string{"a", "b", "c", "d"} {
		require.NoError(t, bt.Insert(nil, []Literal{NullLiteral(), TextLiteral(name), TextLiteral(itoa(20 + i))}))
	}

	rows, err := bt.Select(nil, []ConditionTerm{{Column: "age", Op: OpGE, Value: TextLiteral("21")}}, 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestBTreeOrderByDescPrimaryKey(t *testing.T) {
	bt := newTestBTree(t, 10)
	schema := usersSchema()
	schema.Columns[0].Order = OrderDesc
	require.NoError(t, bt.CreateTable(schema))

	require.NoError(t, bt.Insert(nil, []Literal{NullLiteral(), TextLiteral("a"), NullLiteral()}))
	require.NoError(t, bt.Insert(nil, []Literal{NullLiteral(), TextLiteral("b"), NullLiteral()}))
	require.NoError(t, bt.Insert(nil, []Literal{NullLiteral(), TextLiteral("c"), NullLiteral()}))

	rows, err := bt.Select([]string{"id"}, nil, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, uint32(3), rows[0].Values[0].UInt, "descending PRIMARY KEY order reverses presentation")
	assert.Equal(t, uint32(1), rows[2].Values[0].UInt)
}

func TestBTreeUpdateAndDelete(t *testing.T) {
	bt := newTestBTree(t, 10)
	schema := usersSchema()
	require.NoError(t, bt.CreateTable(schema))

	require.NoError(t, bt.Insert(nil, []Literal{NullLiteral(), TextLiteral("alice"), TextLiteral("30")}))
	require.NoError(t, bt.Insert(nil, []Literal{NullLiteral(), TextLiteral("bob"), TextLiteral("25")}))

	affected, err := bt.Update(
		[]Assignment{{Column: "age", Value: TextLiteral("99")}},
		[]ConditionTerm{{Column: "name", Op: OpEQ, Value: TextLiteral("alice")}},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, affected)

	rows, err := bt.Select(nil, []ConditionTerm{{Column: "name", Op: OpEQ, Value: TextLiteral("alice")}}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint32(99), rows[0].Values[2].UInt)

	affected, err = bt.Delete([]ConditionTerm{{Column: "name", Op: OpEQ, Value: TextLiteral("bob")}})
	require.NoError(t, err)
	assert.Equal(t, 1, affected)

	rows, err = bt.Select(nil, nil, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestBTreeManyInsertsForceMultipleSplits(t *testing.T) {
	bt := newTestBTree(t, 2)
	schema := usersSchema()
	require.NoError(t, bt.CreateTable(schema))

	const n = 40
	for i := 0; i < n; i++ {
		require.NoError(t, bt.Insert(nil, []Literal{NullLiteral(), TextLiteral(itoa(i)), NullLiteral()}))
	}

	rows, err := bt.Select(nil, nil, 0)
	require.NoError(t, err)
	assert.Len(t, rows, n)
}

func TestBTreeSelectOnUninitializedTableErrors(t *testing.T) {
	bt := newTestBTree(t, 10)
	// No CreateTable call: the schema page was never written, so GetSchema
	// fails before requireRoot is ever consulted.
	_, err := bt.Select(nil, nil, 0)
	require.Error(t, err)
	var ce *CorruptionError
	assert.ErrorAs(t, err, &ce)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
