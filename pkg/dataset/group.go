package dataset

import "fmt"

type AggFunc int

const (
	// Count counts present (non-nil) values.
	Count AggFunc = iota
	// Sum adds Int or Float values, skipping missing ones.
	Sum
)

type Aggregation struct {
	Column string
	Func   AggFunc
	As     string
}

func CountOf(column, as string) Aggregation {
	return Aggregation{Column: column, Func: Count, As: as}
}

func SumOf(column, as string) Aggregation {
	return Aggregation{Column: column, Func: Sum, As: as}
}

// GroupBy reduces t to one row per distinct key tuple. Groups are emitted in
// order of first appearance.
func GroupBy(t *Table, keys []string, aggs ...Aggregation) (*Table, error) {
	kidx, err := t.lookupAll(keys)
	if err != nil {
		return nil, err
	}

	columns := make([]Column, 0, len(keys)+len(aggs))
	for _, k := range kidx {
		columns = append(columns, t.columns[k])
	}

	aidx := make([]int, len(aggs))
	for i, a := range aggs {
		c, err := t.lookup(a.Column)
		if err != nil {
			return nil, err
		}
		aidx[i] = c
		switch a.Func {
		case Count:
			columns = append(columns, Column{Name: a.As, Type: Int})
		case Sum:
			typ := t.columns[c].Type
			if typ != Int && typ != Float {
				return nil, fmt.Errorf("dataset %s: cannot sum %s column %q", t.name, typ, a.Column)
			}
			columns = append(columns, Column{Name: a.As, Type: typ})
		default:
			return nil, fmt.Errorf("dataset %s: unknown aggregation %d", t.name, a.Func)
		}
	}
	if _, err := indexColumns(t.name, columns); err != nil {
		return nil, err
	}

	groups := make(map[string][]any)
	var order []string
	for _, row := range t.rows {
		k := keyOf(row, kidx)
		acc, ok := groups[k]
		if !ok {
			acc = make([]any, len(columns))
			for i, c := range kidx {
				acc[i] = row[c]
			}
			for i := range aggs {
				acc[len(kidx)+i] = columns[len(kidx)+i].Zero()
			}
			groups[k] = acc
			order = append(order, k)
		}

		for i, a := range aggs {
			v := row[aidx[i]]
			if v == nil {
				continue
			}
			slot := len(kidx) + i
			switch a.Func {
			case Count:
				acc[slot] = acc[slot].(int64) + 1
			case Sum:
				switch s := acc[slot].(type) {
				case int64:
					n, _ := v.(int64)
					acc[slot] = s + n
				case float64:
					n, _ := v.(float64)
					acc[slot] = s + n
				}
			}
		}
	}

	rows := make([][]any, len(order))
	for i, k := range order {
		rows[i] = groups[k]
	}
	return build(t.name, columns, rows), nil
}
