// Package parser implements a recursive-descent parser for the katadb SQL
// dialect, producing Statement ASTs independent of the storage core.
package parser

import "github.com/katadb/katadb/internal/storage"

// Statement is any parsed SQL statement.
type Statement interface{ statementNode() }

// ColumnSpec is one column definition from a CREATE TABLE statement,
// carrying its constraints in parsed (not yet schema-resolved) form.
type ColumnSpec struct {
	Name          string
	Type          string // "string" | "uint" | "u64"
	PrimaryKey    bool
	Order         storage.Ordering
	AutoIncrement bool
	NotNull       bool
	Unique        bool
	HasDefault    bool
	Default       string
}

// CreateTableStatement is `CREATE TABLE <ident> ( <col_def>{, <col_def>} );`.
type CreateTableStatement struct {
	Table   string
	Columns []ColumnSpec
}

// InsertStatement is `INSERT INTO <ident> [(<col>{,<col>})] VALUES (<lit>{,<lit>});`.
// Columns is nil for a positional insert.
type InsertStatement struct {
	Table   string
	Columns []string
	Values  []storage.Literal
}

// SelectStatement is `SELECT (* | <col>{,<col>}) FROM <ident> [WHERE <expr>];`.
// Columns is nil for `SELECT *`.
type SelectStatement struct {
	Table   string
	Columns []string
	Where   []storage.ConditionTerm
}

// UpdateStatement is `UPDATE <ident> SET <col>=<lit>{,...} [WHERE <expr>];`.
type UpdateStatement struct {
	Table string
	Set   []storage.Assignment
	Where []storage.ConditionTerm
}

// DeleteStatement is `DELETE FROM <ident> WHERE <expr>;`.
type DeleteStatement struct {
	Table string
	Where []storage.ConditionTerm
}

// DropTableStatement is `DROP TABLE <ident>;`.
type DropTableStatement struct {
	Table string
}

func (*CreateTableStatement) statementNode() {}
func (*InsertStatement) statementNode()      {}
func (*SelectStatement) statementNode()      {}
func (*UpdateStatement) statementNode()      {}
func (*DeleteStatement) statementNode()      {}
func (*DropTableStatement) statementNode()   {}
