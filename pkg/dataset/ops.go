package dataset

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Select keeps the named columns in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	idx, err := t.lookupAll(names)
	if err != nil {
		return nil, err
	}

	columns := make([]Column, len(idx))
	for i, c := range idx {
		columns[i] = t.columns[c]
	}
	if _, err := indexColumns(t.name, columns); err != nil {
		return nil, err
	}

	rows := make([][]any, len(t.rows))
	for r, row := range t.rows {
		out := make([]any, len(idx))
		for i, c := range idx {
			out[i] = row[c]
		}
		rows[r] = out
	}
	return build(t.name, columns, rows), nil
}

// Rename maps old column names to new ones; unknown names are an error.
func (t *Table) Rename(names map[string]string) (*Table, error) {
	columns := slices.Clone(t.columns)
	for from, to := range names {
		i, err := t.lookup(from)
		if err != nil {
			return nil, err
		}
		columns[i].Name = to
	}
	if _, err := indexColumns(t.name, columns); err != nil {
		return nil, err
	}
	return build(t.name, columns, t.rows), nil
}

func (t *Table) Filter(keep func(Record) bool) *Table {
	rows := make([][]any, 0, len(t.rows))
	for _, row := range t.rows {
		if keep(Record{table: t, values: row}) {
			rows = append(rows, row)
		}
	}
	return build(t.name, t.columns, rows)
}

// Extend appends derived columns computed from each row.
func (t *Table) Extend(columns []Column, derive func(Record) []any) (*Table, error) {
	all := append(slices.Clone(t.columns), columns...)
	if _, err := indexColumns(t.name, all); err != nil {
		return nil, err
	}

	rows := make([][]any, len(t.rows))
	for r, row := range t.rows {
		extra := derive(Record{table: t, values: row})
		if len(extra) != len(columns) {
			return nil, fmt.Errorf("dataset %s: derived %d values for %d columns", t.name, len(extra), len(columns))
		}
		out := make([]any, 0, len(all))
		out = append(out, row...)
		out = append(out, extra...)
		rows[r] = out
	}
	return build(t.name, all, rows), nil
}

// SortBy orders rows ascending by the given columns. The sort is stable and
// missing values sort first.
func (t *Table) SortBy(names ...string) (*Table, error) {
	idx, err := t.lookupAll(names)
	if err != nil {
		return nil, err
	}
	rows := slices.Clone(t.rows)
	slices.SortStableFunc(rows, func(a, b []any) int {
		for _, c := range idx {
			if n := compareValues(a[c], b[c]); n != 0 {
				return n
			}
		}
		return 0
	})
	return build(t.name, t.columns, rows), nil
}

// Distinct projects the named columns and drops repeated tuples, keeping the
// first appearance of each.
func (t *Table) Distinct(names ...string) (*Table, error) {
	projected, err := t.Select(names...)
	if err != nil {
		return nil, err
	}
	all := make([]int, len(names))
	for i := range all {
		all[i] = i
	}

	seen := make(map[string]struct{}, projected.Len())
	rows := make([][]any, 0, projected.Len())
	for _, row := range projected.rows {
		k := keyOf(row, all)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		rows = append(rows, row)
	}
	return build(t.name, projected.columns, rows), nil
}

// Concat stacks tables with identical schemas.
func Concat(name string, tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("dataset %s: nothing to concatenate", name)
	}
	columns := tables[0].columns
	var rows [][]any
	for _, t := range tables {
		if !slices.Equal(t.columns, columns) {
			return nil, fmt.Errorf("dataset %s: schema of %s does not match %s", name, t.name, tables[0].name)
		}
		rows = append(rows, t.rows...)
	}
	return build(name, slices.Clone(columns), rows), nil
}

// FillMissing replaces every missing cell with its column's zero value.
func FillMissing(t *Table) *Table {
	rows := make([][]any, len(t.rows))
	for r, row := range t.rows {
		out := slices.Clone(row)
		for i, v := range out {
			if v == nil {
				out[i] = t.columns[i].Zero()
			}
		}
		rows[r] = out
	}
	return build(t.name, t.columns, rows)
}

func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch av := a.(type) {
	case int64:
		switch bv := b.(type) {
		case int64:
			return cmp.Compare(av, bv)
		case float64:
			return cmp.Compare(float64(av), bv)
		}
	case float64:
		switch bv := b.(type) {
		case float64:
			return cmp.Compare(av, bv)
		case int64:
			return cmp.Compare(av, float64(bv))
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// keyOf encodes the values at idx so equal tuples map to equal strings.
func keyOf(row []any, idx []int) string {
	var sb strings.Builder
	for _, c := range idx {
		switch v := row[c].(type) {
		case nil:
			sb.WriteString("n:")
		case time.Time:
			sb.WriteString("d:")
			sb.WriteString(v.UTC().Format(time.RFC3339Nano))
		default:
			fmt.Fprintf(&sb, "%T:%v", v, v)
		}
		sb.WriteByte(0)
	}
	return sb.String()
}
