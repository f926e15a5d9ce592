package dataset

import (
	"fmt"
	"slices"
)

// OuterJoin merges right onto left on the key columns, keeping every row of
// both sides. Left rows come first in their original order, followed by right
// rows whose key never matched, in order of first appearance. Cells with no
// counterpart are nil; use FillMissing to default them.
func OuterJoin(left, right *Table, keys ...string) (*Table, error) {
	return join(left, right, keys, true)
}

// LeftJoin keeps every left row and only the matching right rows.
func LeftJoin(left, right *Table, keys ...string) (*Table, error) {
	return join(left, right, keys, false)
}

func join(left, right *Table, keys []string, outer bool) (*Table, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("dataset: join %s with %s: no key columns", left.name, right.name)
	}
	lk, err := left.lookupAll(keys)
	if err != nil {
		return nil, err
	}
	rk, err := right.lookupAll(keys)
	if err != nil {
		return nil, err
	}
	for i := range keys {
		if lt, rt := left.columns[lk[i]].Type, right.columns[rk[i]].Type; lt != rt {
			return nil, fmt.Errorf("dataset: join %s with %s: key %q is %s on the left and %s on the right",
				left.name, right.name, keys[i], lt, rt)
		}
	}

	columns := slices.Clone(left.columns)
	var extra []int
	for i, c := range right.columns {
		if slices.Contains(keys, c.Name) {
			continue
		}
		if left.Has(c.Name) {
			return nil, fmt.Errorf("dataset: join %s with %s: column %q present on both sides",
				left.name, right.name, c.Name)
		}
		extra = append(extra, i)
		columns = append(columns, c)
	}
	width := len(left.columns)

	byKey := make(map[string][]int, len(right.rows))
	var order []string
	for i, row := range right.rows {
		k := keyOf(row, rk)
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], i)
	}

	matched := make(map[string]bool, len(byKey))
	rows := make([][]any, 0, len(left.rows))
	for _, row := range left.rows {
		k := keyOf(row, lk)
		hits := byKey[k]
		if len(hits) == 0 {
			out := make([]any, len(columns))
			copy(out, row)
			rows = append(rows, out)
			continue
		}
		matched[k] = true
		for _, ri := range hits {
			out := make([]any, len(columns))
			copy(out, row)
			for j, c := range extra {
				out[width+j] = right.rows[ri][c]
			}
			rows = append(rows, out)
		}
	}

	if outer {
		for _, k := range order {
			if matched[k] {
				continue
			}
			for _, ri := range byKey[k] {
				out := make([]any, len(columns))
				for j, c := range lk {
					out[c] = right.rows[ri][rk[j]]
				}
				for j, c := range extra {
					out[width+j] = right.rows[ri][c]
				}
				rows = append(rows, out)
			}
		}
	}

	return build(left.name, columns, rows), nil
}

// CrossJoin pairs every left row with every right row, left-major.
func CrossJoin(left, right *Table) (*Table, error) {
	columns := slices.Clone(left.columns)
	for _, c := range right.columns {
		if left.Has(c.Name) {
			return nil, fmt.Errorf("dataset: cross join %s with %s: column %q present on both sides",
				left.name, right.name, c.Name)
		}
		columns = append(columns, c)
	}

	rows := make([][]any, 0, len(left.rows)*len(right.rows))
	for _, l := range left.rows {
		for _, r := range right.rows {
			out := make([]any, 0, len(columns))
			out = append(out, l...)
			out = append(out, r...)
			rows = append(rows, out)
		}
	}
	return build(left.name, columns, rows), nil
}
