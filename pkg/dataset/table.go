// Package dataset holds the immutable typed tables the ETL steps pass around.
package dataset

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrColumnNotFound = errors.New("column not found")

// ColumnType is the declared type of every value in a column.
type ColumnType int

const (
	String ColumnType = iota
	Int
	Float
	Date
	Bool
)

func (t ColumnType) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "float"
	case Date:
		return "date"
	case Bool:
		return "bool"
	default:
		return "string"
	}
}

type Column struct {
	Name string
	Type ColumnType
}

// Zero is the value FillMissing writes into an absent cell.
func (c Column) Zero() any {
	switch c.Type {
	case Int:
		return int64(0)
	case Float:
		return float64(0)
	case Bool:
		return false
	case Date:
		return time.Time{}
	default:
		return "0"
	}
}

// Table is a named, ordered set of rows with a fixed schema.
// Values are int64, float64, string, bool, time.Time or nil (missing).
type Table struct {
	name    string
	columns []Column
	index   map[string]int
	rows    [][]any
}

// New validates the schema and copies rows so later changes to the caller's
// slices are not visible through the table.
func New(name string, columns []Column, rows [][]any) (*Table, error) {
	index, err := indexColumns(name, columns)
	if err != nil {
		return nil, err
	}

	copied := make([][]any, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("dataset %s: row %d has %d values, want %d", name, i, len(row), len(columns))
		}
		copied[i] = slices.Clone(row)
	}

	return &Table{
		name:    name,
		columns: slices.Clone(columns),
		index:   index,
		rows:    copied,
	}, nil
}

// Empty returns a table with the given schema and no rows.
func Empty(name string, columns []Column) (*Table, error) {
	return New(name, columns, nil)
}

func indexColumns(name string, columns []Column) (map[string]int, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c.Name]; dup {
			return nil, fmt.Errorf("dataset %s: duplicate column %q", name, c.Name)
		}
		index[c.Name] = i
	}
	return index, nil
}

// build assumes columns are unique and rows are owned by the new table.
func build(name string, columns []Column, rows [][]any) *Table {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c.Name] = i
	}
	return &Table{name: name, columns: columns, index: index, rows: rows}
}

func (t *Table) Name() string {
	return t.name
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Columns() []Column {
	return slices.Clone(t.columns)
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

func (t *Table) Row(i int) Record {
	return Record{table: t, values: t.rows[i]}
}

// Values returns a copy of the i-th row in column order.
func (t *Table) Values(i int) []any {
	return slices.Clone(t.rows[i])
}

// WithName returns the same data under another name.
func (t *Table) WithName(name string) *Table {
	return &Table{name: name, columns: t.columns, index: t.index, rows: t.rows}
}

// Column values in row order.
func (t *Table) ColumnValues(name string) ([]any, error) {
	i, err := t.lookup(name)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out, nil
}

// Strings returns the distinct non-empty string values of a column, sorted.
func (t *Table) Strings(name string) ([]string, error) {
	values, err := t.ColumnValues(name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	slices.Sort(out)
	return out, nil
}

func (t *Table) lookup(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return 0, fmt.Errorf("dataset %s: %w: %q", t.name, ErrColumnNotFound, name)
	}
	return i, nil
}

func (t *Table) lookupAll(names []string) ([]int, error) {
	idx := make([]int, len(names))
	for i, n := range names {
		c, err := t.lookup(n)
		if err != nil {
			return nil, err
		}
		idx[i] = c
	}
	return idx, nil
}

// Record is a read-only view of one row.
type Record struct {
	table  *Table
	values []any
}

func (r Record) Get(name string) (any, bool) {
	i, ok := r.table.index[name]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

func (r Record) Value(name string) any {
	v, _ := r.Get(name)
	return v
}

func (r Record) Int(name string) int64 {
	v, _ := r.Value(name).(int64)
	return v
}

func (r Record) Float(name string) float64 {
	switch v := r.Value(name).(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func (r Record) String(name string) string {
	v, _ := r.Value(name).(string)
	return v
}

func (r Record) Date(name string) time.Time {
	v, _ := r.Value(name).(time.Time)
	return v
}

func (r Record) Bool(name string) bool {
	v, _ := r.Value(name).(bool)
	return v
}
