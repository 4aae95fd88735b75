package dispatcher

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/katadb/katadb/internal/katalog"
	"github.com/katadb/katadb/internal/parser"
	"github.com/katadb/katadb/internal/storage"
)

// Result is the outcome of one executed statement, rendered independently of
// any particular client (CLI REPL or HTTP handler).
type Result struct {
	Columns  []string
	Rows     [][]string
	Affected int
	Message  string
}

// Dispatcher owns the data directory, the table lock registry, and the
// B-tree's minimum degree shared by every table. One Dispatcher serves the
// whole process; every statement opens and closes its own BTree handle
// while holding the table's lock for just that statement, per spec §5.
type Dispatcher struct {
	dataDir string
	b       int
	log     zerolog.Logger
	metrics *Metrics
	reg     *registry
}

// New scans dataDir for already-existing tables and returns a ready
// Dispatcher.
func New(dataDir string, b int, log zerolog.Logger) (*Dispatcher, error) {
	existing, err := storage.ListTables(dataDir)
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{
		dataDir: dataDir,
		b:       b,
		log:     katalog.For(log, "dispatcher"),
		metrics: NewMetrics(),
		reg:     newRegistry(existing),
	}
	d.metrics.TablesTotal.Set(float64(d.reg.count()))
	return d, nil
}

// Execute parses and runs one SQL statement.
func (d *Dispatcher) Execute(sql string) (*Result, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, &storage.SchemaError{Detail: fmt.Sprintf("parse error: %v", err)}
	}

	kind := statementKind(stmt)
	start := time.Now()
	res, table, err := d.dispatch(stmt)
	status := "ok"
	if err != nil {
		status = "error"
	}
	d.metrics.StatementsTotal.WithLabelValues(kind, status).Inc()
	d.metrics.StatementDuration.WithLabelValues(kind, table).Observe(time.Since(start).Seconds())
	return res, err
}

func statementKind(stmt parser.Statement) string {
	switch stmt.(type) {
	case *parser.CreateTableStatement:
		return "create_table"
	case *parser.InsertStatement:
		return "insert"
	case *parser.SelectStatement:
		return "select"
	case *parser.UpdateStatement:
		return "update"
	case *parser.DeleteStatement:
		return "delete"
	case *parser.DropTableStatement:
		return "drop_table"
	default:
		return "unknown"
	}
}

func (d *Dispatcher) dispatch(stmt parser.Statement) (*Result, string, error) {
	switch s := stmt.(type) {
	case *parser.CreateTableStatement:
		res, err := d.execCreateTable(s)
		return res, storage.SlugTableName(s.Table), err
	case *parser.InsertStatement:
		res, err := d.execInsert(s)
		return res, storage.SlugTableName(s.Table), err
	case *parser.SelectStatement:
		res, err := d.execSelect(s)
		return res, storage.SlugTableName(s.Table), err
	case *parser.UpdateStatement:
		res, err := d.execUpdate(s)
		return res, storage.SlugTableName(s.Table), err
	case *parser.DeleteStatement:
		res, err := d.execDelete(s)
		return res, storage.SlugTableName(s.Table), err
	case *parser.DropTableStatement:
		res, err := d.execDropTable(s)
		return res, storage.SlugTableName(s.Table), err
	default:
		return nil, "", &storage.UnsupportedError{Feature: "unknown statement"}
	}
}

func (d *Dispatcher) withWriteLock(table string, fn func() error) error {
	l := d.reg.lockFor(table)
	waitStart := time.Now()
	l.Lock()
	d.metrics.LockWaitSeconds.WithLabelValues(table, "write").Observe(time.Since(waitStart).Seconds())
	defer l.Unlock()
	return fn()
}

func (d *Dispatcher) withReadLock(table string, fn func() error) error {
	l := d.reg.lockFor(table)
	waitStart := time.Now()
	l.RLock()
	d.metrics.LockWaitSeconds.WithLabelValues(table, "read").Observe(time.Since(waitStart).Seconds())
	defer l.RUnlock()
	return fn()
}

func (d *Dispatcher) openHandle(table string) (*storage.Handle, error) {
	return storage.OpenHandle(d.dataDir, table, d.b, d.log)
}

// execCreateTable builds a Schema from the parsed column specs, enforcing
// the at-most-one-PRIMARY-KEY and AUTOINCREMENT-requires-PRIMARY-KEY rules
// from SPEC_FULL.md §12, then initializes the table's files.
func (d *Dispatcher) execCreateTable(s *parser.CreateTableStatement) (*Result, error) {
	table := storage.SlugTableName(s.Table)

	schema, err := buildSchema(s)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = d.withWriteLock(table, func() error {
		handle, err := d.openHandle(table)
		if err != nil {
			return err
		}
		defer handle.Close()
		if err := handle.CreateTable(schema); err != nil {
			return err
		}
		result = &Result{Message: fmt.Sprintf("table %q created", s.Table)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.metrics.TablesTotal.Set(float64(d.reg.count()))
	return result, nil
}

func buildSchema(s *parser.CreateTableStatement) (storage.Schema, error) {
	schema := storage.Schema{TableName: s.Table, PrimaryKeyIndex: -1}
	for i, col := range s.Columns {
		tag, err := storage.ParseTypeName(col.Type)
		if err != nil {
			return storage.Schema{}, err
		}
		if col.AutoIncrement && !col.PrimaryKey {
			return storage.Schema{}, &storage.SchemaError{Detail: fmt.Sprintf("column %q: AUTOINCREMENT requires PRIMARY KEY", col.Name)}
		}
		if col.PrimaryKey {
			if schema.PrimaryKeyIndex != -1 {
				return storage.Schema{}, &storage.SchemaError{Detail: "a table may declare at most one PRIMARY KEY column"}
			}
			schema.PrimaryKeyIndex = i
		}
		schema.Columns = append(schema.Columns, storage.ColumnDef{
			Name:          col.Name,
			Type:          tag,
			Nullable:      !col.NotNull && !col.PrimaryKey,
			Unique:        col.Unique,
			PrimaryKey:    col.PrimaryKey,
			AutoIncrement: col.AutoIncrement,
			Order:         col.Order,
			HasDefault:    col.HasDefault,
			Default:       col.Default,
		})
	}
	return schema, nil
}

func (d *Dispatcher) execInsert(s *parser.InsertStatement) (*Result, error) {
	table := storage.SlugTableName(s.Table)
	var result *Result
	err := d.withWriteLock(table, func() error {
		handle, err := d.openHandle(table)
		if err != nil {
			return err
		}
		defer handle.Close()
		if err := handle.Insert(s.Columns, s.Values); err != nil {
			return err
		}
		result = &Result{Affected: 1, Message: "1 row inserted"}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (d *Dispatcher) execSelect(s *parser.SelectStatement) (*Result, error) {
	table := storage.SlugTableName(s.Table)
	var result *Result
	err := d.withReadLock(table, func() error {
		handle, err := d.openHandle(table)
		if err != nil {
			return err
		}
		defer handle.Close()
		rows, err := handle.Select(s.Columns, s.Where, 0)
		if err != nil {
			return err
		}
		schema, err := handle.GetSchema()
		if err != nil {
			return err
		}
		indices, err := schema.IndicesOf(s.Columns)
		if err != nil {
			return err
		}
		columns := make([]string, len(indices))
		for i, idx := range indices {
			columns[i] = schema.Columns[idx].Name
		}
		result = &Result{Columns: columns, Rows: renderRows(rows)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func renderRows(rows []storage.Record) [][]string {
	out := make([][]string, len(rows))
	for i, rec := range rows {
		row := make([]string, len(rec.Values))
		for j, v := range rec.Values {
			row[j] = v.String()
		}
		out[i] = row
	}
	return out
}

func (d *Dispatcher) execUpdate(s *parser.UpdateStatement) (*Result, error) {
	table := storage.SlugTableName(s.Table)
	var result *Result
	err := d.withWriteLock(table, func() error {
		handle, err := d.openHandle(table)
		if err != nil {
			return err
		}
		defer handle.Close()
		affected, err := handle.Update(s.Set, s.Where)
		if err != nil {
			return err
		}
		result = &Result{Affected: affected, Message: fmt.Sprintf("%d row(s) updated", affected)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (d *Dispatcher) execDelete(s *parser.DeleteStatement) (*Result, error) {
	table := storage.SlugTableName(s.Table)
	var result *Result
	err := d.withWriteLock(table, func() error {
		handle, err := d.openHandle(table)
		if err != nil {
			return err
		}
		defer handle.Close()
		affected, err := handle.Delete(s.Where)
		if err != nil {
			return err
		}
		result = &Result{Affected: affected, Message: fmt.Sprintf("%d row(s) deleted", affected)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (d *Dispatcher) execDropTable(s *parser.DropTableStatement) (*Result, error) {
	table := storage.SlugTableName(s.Table)
	var result *Result
	err := d.withWriteLock(table, func() error {
		if err := storage.DropTableFiles(d.dataDir, table); err != nil {
			return err
		}
		d.reg.drop(table)
		result = &Result{Message: fmt.Sprintf("table %q dropped", s.Table)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.metrics.TablesTotal.Set(float64(d.reg.count()))
	return result, nil
}

// ListTables reports every table directory found under the data directory,
// for the `.show tables` meta-command (SPEC_FULL.md §12).
func (d *Dispatcher) ListTables() ([]string, error) {
	return storage.ListTables(d.dataDir)
}

// DescribeTable reports a table's schema for `.show table <name>`.
func (d *Dispatcher) DescribeTable(table string) (storage.Schema, error) {
	slug := storage.SlugTableName(table)
	var schema storage.Schema
	err := d.withReadLock(slug, func() error {
		handle, err := d.openHandle(slug)
		if err != nil {
			return err
		}
		defer handle.Close()
		schema, err = handle.GetSchema()
		return err
	})
	return schema, err
}
