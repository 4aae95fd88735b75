package storage

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Assignment is one `col = literal` pair from an UPDATE's SET clause.
type Assignment struct {
	Column string
	Value  Literal
}

// BTree is a persistent B-tree over pages bound to one table: insert,
// select, update, delete, and the splitting that keeps nodes within the
// minimum-degree bound b. It exclusively owns its Pager and WAL for the
// lifetime of one statement; the dispatcher constructs a fresh BTree per
// statement after acquiring the table's lock.
type BTree struct {
	pager *Pager
	wal   *WAL
	b     int
	log   zerolog.Logger
}

// Open binds a BTree handle to an already-open pager and WAL.
func Open(pager *Pager, wal *WAL, b int, log zerolog.Logger) *BTree {
	return &BTree{pager: pager, wal: wal, b: b, log: log.With().Str("component", "btree").Logger()}
}

// CreateTable encodes the schema node at offset 0, reserves the schema
// region by moving the append cursor to FirstTreePageOffset, allocates an
// empty leaf root, and records it as the initial WAL entry.
func (t *BTree) CreateTable(schema Schema) error {
	schemaNode := &Node{Type: NodeTypeSchema, Schema: &schema}
	schemaBytes, err := EncodeNode(schemaNode)
	if err != nil {
		return err
	}
	if err := t.pager.WriteSchemaBytes(schemaBytes); err != nil {
		return err
	}
	t.pager.SetCursor(FirstTreePageOffset)

	root := &Node{IsRoot: true, Type: NodeTypeLeaf, Rows: []Record{}}
	page, err := EncodeNode(root)
	if err != nil {
		return err
	}
	offset, err := t.pager.WriteNewPage(page)
	if err != nil {
		return err
	}
	if err := t.wal.SetRoot(offset); err != nil {
		return err
	}
	t.log.Info().Str("table", schema.TableName).Msg("table created")
	return nil
}

// GetSchema reads and decodes the schema page.
func (t *BTree) GetSchema() (Schema, error) {
	page, err := t.pager.ReadSchemaPage()
	if err != nil {
		return Schema{}, err
	}
	node, err := DecodeNode(page)
	if err != nil {
		return Schema{}, err
	}
	if node.Type != NodeTypeSchema || node.Schema == nil {
		return Schema{}, &CorruptionError{Detail: "schema page does not decode to a schema node"}
	}
	return *node.Schema, nil
}

func (t *BTree) readNode(offset int64) (*Node, error) {
	page, err := t.pager.ReadPage(offset)
	if err != nil {
		return nil, err
	}
	node, err := DecodeNode(page)
	if err != nil {
		return nil, err
	}
	return node, nil
}

// walkLeaves visits every leaf reachable from offset in child order,
// stopping early if visit returns stop=true.
func (t *BTree) walkLeaves(offset int64, visit func(leaf *Node, leafOffset int64) (bool, error)) (bool, error) {
	node, err := t.readNode(offset)
	if err != nil {
		return false, err
	}
	switch node.Type {
	case NodeTypeLeaf:
		return visit(node, offset)
	case NodeTypeInternal:
		for _, child := range node.Children {
			stop, err := t.walkLeaves(child, visit)
			if err != nil || stop {
				return stop, err
			}
		}
		return false, nil
	default:
		return false, &CorruptionError{Detail: "walk_leaves: child offset does not decode to internal or leaf"}
	}
}

func (t *BTree) requireRoot(schema Schema) (int64, error) {
	rootOffset, err := t.wal.GetRoot()
	if err != nil {
		return 0, err
	}
	if rootOffset == 0 {
		return 0, &NotFoundError{Kind: "table not initialized", Name: schema.TableName}
	}
	return rootOffset, nil
}

func (t *BTree) maxColumnValue(rootOffset int64, colIdx int) (Value, bool, error) {
	var best Value
	found := false
	_, err := t.walkLeaves(rootOffset, func(leaf *Node, _ int64) (bool, error) {
		for _, row := range leaf.Rows {
			v := row.Values[colIdx]
			if v.Tag == TagNull {
				continue
			}
			if !found || v.Compare(best) > 0 {
				best, found = v, true
			}
		}
		return false, nil
	})
	return best, found, err
}

func nextAutoIncrement(best Value, found bool, t Tag) Value {
	switch t {
	case TagUInt:
		if !found {
			return UIntValue(1)
		}
		return UIntValue(best.UInt + 1)
	case TagU64:
		if !found {
			return U64Value(1)
		}
		return U64Value(best.U64 + 1)
	default:
		return NullValue()
	}
}

func (t *BTree) valueExistsInColumn(rootOffset int64, colIdx int, v Value) (bool, error) {
	if v.Tag == TagNull {
		return false, nil
	}
	found, err := t.walkLeaves(rootOffset, func(leaf *Node, _ int64) (bool, error) {
		for _, row := range leaf.Rows {
			if row.Values[colIdx].Compare(v) == 0 {
				return true, nil
			}
		}
		return false, nil
	})
	return found, err
}

// Insert validates and inserts one record, resolving autoincrement columns
// and enforcing UNIQUE/PRIMARY KEY via a full leaf scan before descending
// into the tree, per spec §4.5 plus the autoincrement/uniqueness
// enrichments (see SPEC_FULL.md §12).
func (t *BTree) Insert(columns []string, values []Literal) error {
	schema, err := t.GetSchema()
	if err != nil {
		return err
	}
	rec, err := schema.BuildRecord(namedInsertInput{Columns: columns, Values: values})
	if err != nil {
		return err
	}

	rootOffset, err := t.requireRoot(schema)
	if err != nil {
		return err
	}

	for i, col := range schema.Columns {
		if col.AutoIncrement && rec.Values[i].Tag == TagNull {
			best, found, err := t.maxColumnValue(rootOffset, i)
			if err != nil {
				return err
			}
			rec.Values[i] = nextAutoIncrement(best, found, col.Type)
		}
	}
	for i, col := range schema.Columns {
		if col.Unique || col.PrimaryKey {
			exists, err := t.valueExistsInColumn(rootOffset, i, rec.Values[i])
			if err != nil {
				return err
			}
			if exists {
				return &SchemaError{Detail: fmt.Sprintf("duplicate value for unique column %q", col.Name)}
			}
		}
	}
	if err := schema.ValidateRecord(rec); err != nil {
		return err
	}

	root, err := t.readNode(rootOffset)
	if err != nil {
		return err
	}
	if isFull(root, t.b) {
		rootOffset, err = t.splitRoot(root, rootOffset)
		if err != nil {
			return err
		}
		root, err = t.readNode(rootOffset)
		if err != nil {
			return err
		}
	}

	if err := t.insertNonFull(root, rootOffset, rec); err != nil {
		return err
	}
	return t.wal.SetRoot(rootOffset)
}

// splitRoot splits a full root into two new pages and writes a brand new
// internal node R' into the old root's offset, per spec §4.5 step 3: left
// and right each get a fresh offset, R' reuses the original root offset so
// only two new pages need allocating instead of three.
func (t *BTree) splitRoot(root *Node, rootOffset int64) (int64, error) {
	median, sibling := splitNode(root, t.b)

	root.IsRoot = false
	root.ParentOffset = rootOffset
	sibling.IsRoot = false
	sibling.ParentOffset = rootOffset

	leftPage, err := EncodeNode(root)
	if err != nil {
		return 0, err
	}
	leftOffset, err := t.pager.WriteNewPage(leftPage)
	if err != nil {
		return 0, err
	}

	siblingPage, err := EncodeNode(sibling)
	if err != nil {
		return 0, err
	}
	siblingOffset, err := t.pager.WriteNewPage(siblingPage)
	if err != nil {
		return 0, err
	}

	rPrime := &Node{
		IsRoot:   true,
		Type:     NodeTypeInternal,
		Children: []int64{leftOffset, siblingOffset},
		Keys:     []Value{median},
	}
	rPrimePage, err := EncodeNode(rPrime)
	if err != nil {
		return 0, err
	}
	if err := t.pager.WritePageAt(rPrimePage, rootOffset); err != nil {
		return 0, err
	}
	t.log.Debug().Int64("root_offset", rootOffset).Msg("root split")
	return rootOffset, nil
}

func childIndex(keys []Value, key Value) int {
	for i, k := range keys {
		if key.Compare(k) <= 0 {
			return i
		}
	}
	return len(keys)
}

// insertNonFull descends into node (guaranteed non-full) inserting rec,
// splitting a full child before descending into it.
func (t *BTree) insertNonFull(node *Node, offset int64, rec Record) error {
	if node.Type == NodeTypeLeaf {
		node.Rows = append(node.Rows, rec)
		page, err := EncodeNode(node)
		if err != nil {
			return err
		}
		return t.pager.WritePageAt(page, offset)
	}

	key := rec.Values[0]
	i := childIndex(node.Keys, key)
	childOffset := node.Children[i]
	child, err := t.readNode(childOffset)
	if err != nil {
		return err
	}

	if isFull(child, t.b) {
		median, sibling := splitNode(child, t.b)
		child.ParentOffset = offset
		child.IsRoot = false
		sibling.ParentOffset = offset
		sibling.IsRoot = false

		siblingPage, err := EncodeNode(sibling)
		if err != nil {
			return err
		}
		siblingOffset, err := t.pager.WriteNewPage(siblingPage)
		if err != nil {
			return err
		}

		childPage, err := EncodeNode(child)
		if err != nil {
			return err
		}
		if err := t.pager.WritePageAt(childPage, childOffset); err != nil {
			return err
		}

		newKeys := make([]Value, 0, len(node.Keys)+1)
		newKeys = append(newKeys, node.Keys[:i]...)
		newKeys = append(newKeys, median)
		newKeys = append(newKeys, node.Keys[i:]...)
		node.Keys = newKeys

		newChildren := make([]int64, 0, len(node.Children)+1)
		newChildren = append(newChildren, node.Children[:i+1]...)
		newChildren = append(newChildren, siblingOffset)
		newChildren = append(newChildren, node.Children[i+1:]...)
		node.Children = newChildren

		nodePage, err := EncodeNode(node)
		if err != nil {
			return err
		}
		if err := t.pager.WritePageAt(nodePage, offset); err != nil {
			return err
		}

		if key.Compare(median) > 0 {
			childOffset = siblingOffset
			child = sibling
		}
	}

	return t.insertNonFull(child, childOffset, rec)
}

// splitNode implements spec §4.5's split(node, b) -> (median, sibling). n
// is mutated in place to hold the left half; the returned sibling holds the
// right half.
func splitNode(n *Node, b int) (Value, *Node) {
	switch n.Type {
	case NodeTypeInternal:
		median := n.Keys[b-1]
		rightKeys := append([]Value{}, n.Keys[b:]...)
		rightChildren := append([]int64{}, n.Children[b:]...)
		sibling := &Node{Type: NodeTypeInternal, Keys: rightKeys, Children: rightChildren}
		n.Keys = append([]Value{}, n.Keys[:b-1]...)
		n.Children = append([]int64{}, n.Children[:b]...)
		return median, sibling
	default: // NodeTypeLeaf
		median := n.Rows[b-1].Values[0]
		rightRows := append([]Record{}, n.Rows[b:]...)
		sibling := &Node{Type: NodeTypeLeaf, Rows: rightRows}
		n.Rows = append([]Record{}, n.Rows[:b]...)
		return median, sibling
	}
}

// Select visits the tree in child order, collecting matching rows
// (optionally projected) up to limit (0 meaning unlimited), then reverses
// the result if the primary key column's declared ordering is Desc.
func (t *BTree) Select(projection []string, terms []ConditionTerm, limit int) ([]Record, error) {
	schema, err := t.GetSchema()
	if err != nil {
		return nil, err
	}
	conds, err := CompileConditions(schema, terms)
	if err != nil {
		return nil, err
	}
	indices, err := schema.IndicesOf(projection)
	if err != nil {
		return nil, err
	}
	rootOffset, err := t.requireRoot(schema)
	if err != nil {
		return nil, err
	}

	var results []Record
	_, err = t.walkLeaves(rootOffset, func(leaf *Node, _ int64) (bool, error) {
		for _, row := range leaf.Rows {
			ok, err := Match(row, conds)
			if err != nil {
				return false, err
			}
			if !ok {
				continue
			}
			results = append(results, row.SelectOnly(indices))
			if limit > 0 && len(results) >= limit {
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	if schema.PrimaryKeyIndex >= 0 && schema.PrimaryKeyIndex < len(schema.Columns) &&
		schema.Columns[schema.PrimaryKeyIndex].Order == OrderDesc {
		reverseRecords(results)
	}
	return results, nil
}

func reverseRecords(rs []Record) {
	for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
		rs[i], rs[j] = rs[j], rs[i]
	}
}

// Update overwrites assignment cells on every matching row, rewriting each
// touched leaf in place; the root is never changed.
func (t *BTree) Update(assignments []Assignment, terms []ConditionTerm) (int, error) {
	schema, err := t.GetSchema()
	if err != nil {
		return 0, err
	}
	conds, err := CompileConditions(schema, terms)
	if err != nil {
		return 0, err
	}
	rootOffset, err := t.requireRoot(schema)
	if err != nil {
		return 0, err
	}

	type resolvedAssignment struct {
		idx int
		val Value
	}
	resolved := make([]resolvedAssignment, 0, len(assignments))
	for _, a := range assignments {
		v, idx, err := schema.ParseValue(a.Column, a.Value)
		if err != nil {
			return 0, err
		}
		resolved = append(resolved, resolvedAssignment{idx, v})
	}

	affected := 0
	_, err = t.walkLeaves(rootOffset, func(leaf *Node, off int64) (bool, error) {
		changed := false
		for ri := range leaf.Rows {
			ok, err := Match(leaf.Rows[ri], conds)
			if err != nil {
				return false, err
			}
			if !ok {
				continue
			}
			for _, ra := range resolved {
				leaf.Rows[ri].Values[ra.idx] = ra.val
			}
			if err := schema.ValidateRecord(leaf.Rows[ri]); err != nil {
				return false, err
			}
			changed = true
			affected++
		}
		if changed {
			page, err := EncodeNode(leaf)
			if err != nil {
				return false, err
			}
			if err := t.pager.WritePageAt(page, off); err != nil {
				return false, err
			}
		}
		return false, nil
	})
	return affected, err
}

// Delete removes every matching row, rewriting each touched leaf in place
// with the remaining rows (tombstone-only; no rebalancing). The root is
// never changed.
func (t *BTree) Delete(terms []ConditionTerm) (int, error) {
	schema, err := t.GetSchema()
	if err != nil {
		return 0, err
	}
	conds, err := CompileConditions(schema, terms)
	if err != nil {
		return 0, err
	}
	rootOffset, err := t.requireRoot(schema)
	if err != nil {
		return 0, err
	}

	affected := 0
	_, err = t.walkLeaves(rootOffset, func(leaf *Node, off int64) (bool, error) {
		kept := make([]Record, 0, len(leaf.Rows))
		removed := 0
		for _, row := range leaf.Rows {
			ok, err := Match(row, conds)
			if err != nil {
				return false, err
			}
			if ok {
				removed++
				continue
			}
			kept = append(kept, row)
		}
		if removed > 0 {
			leaf.Rows = kept
			page, err := EncodeNode(leaf)
			if err != nil {
				return false, err
			}
			if err := t.pager.WritePageAt(page, off); err != nil {
				return false, err
			}
			affected += removed
		}
		return false, nil
	})
	return affected, err
}
