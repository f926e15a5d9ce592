// Package extract turns raw commerce query results into typed datasets.
package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/de-tools/commerce-atlas/pkg/dataset"
	"github.com/de-tools/commerce-atlas/pkg/models/domain"
	"github.com/shopspring/decimal"
)

// Field maps a raw result field onto a typed output column.
type Field struct {
	Source string
	Name   string
	Type   dataset.ColumnType
}

// Schema is the fixed set of fields an extractor requires in every row.
type Schema struct {
	Dataset string
	Fields  []Field
}

func (s Schema) Columns() []dataset.Column {
	columns := make([]dataset.Column, len(s.Fields))
	for i, f := range s.Fields {
		columns[i] = dataset.Column{Name: f.Name, Type: f.Type}
	}
	return columns
}

// coercion runs in this order; strings cannot fail and go last.
var coercionOrder = []dataset.ColumnType{dataset.Int, dataset.Float, dataset.Date, dataset.Bool, dataset.String}

// Extract projects every schema field across all rows, assembles the rows by
// position and coerces each column to its declared type. It never returns a
// partially filled dataset.
func Extract(rs *domain.RawResultSet, s Schema) (*dataset.Table, error) {
	if rs == nil {
		return nil, fmt.Errorf("%s: no result set", s.Dataset)
	}

	projected := make([][]any, len(s.Fields))
	for f, field := range s.Fields {
		values := make([]any, len(rs.Rows))
		for r, row := range rs.Rows {
			v, ok := row[field.Source]
			if !ok {
				return nil, &SchemaError{Dataset: s.Dataset, Field: field.Source, Row: r}
			}
			values[r] = v
		}
		projected[f] = values
	}

	rows := make([][]any, len(rs.Rows))
	for r := range rows {
		row := make([]any, len(s.Fields))
		for f := range s.Fields {
			row[f] = projected[f][r]
		}
		rows[r] = row
	}

	for _, typ := range coercionOrder {
		for f, field := range s.Fields {
			if field.Type != typ {
				continue
			}
			for r, row := range rows {
				v, err := coerce(row[f], typ)
				if err != nil {
					return nil, &TypeCoercionError{
						Dataset: s.Dataset,
						Field:   field.Source,
						Row:     r,
						Value:   row[f],
						Type:    typ,
						Err:     err,
					}
				}
				row[f] = v
			}
		}
	}

	return dataset.New(s.Dataset, s.Columns(), rows)
}

func coerce(v any, typ dataset.ColumnType) (any, error) {
	switch typ {
	case dataset.Int:
		return parseInt(v)
	case dataset.Float:
		return parseFloat(v)
	case dataset.Date:
		return parseDate(v)
	case dataset.Bool:
		return parseBool(v)
	default:
		return formatString(v), nil
	}
}

func parseInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || x >= math.MaxInt64 || x < math.MinInt64 {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
		return int64(x), nil
	case json.Number:
		return strconv.ParseInt(x.String(), 10, 64)
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	}
	return 0, fmt.Errorf("unsupported value %T", v)
}

func parseFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return 0, err
		}
		return d.InexactFloat64(), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return 0, err
		}
		return d.InexactFloat64(), nil
	}
	return 0, fmt.Errorf("unsupported value %T", v)
}

var dateLayouts = []string{
	dataset.DateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01",
}

// parseDate keeps the calendar date and drops the time of day.
func parseDate(v any) (time.Time, error) {
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case string:
		s := strings.TrimSpace(x)
		var err error
		for _, layout := range dateLayouts {
			if t, err = time.Parse(layout, s); err == nil {
				break
			}
		}
		if err != nil {
			return time.Time{}, fmt.Errorf("%q is not a date", x)
		}
	default:
		return time.Time{}, fmt.Errorf("unsupported value %T", v)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func parseBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(x))
	}
	return false, fmt.Errorf("unsupported value %T", v)
}

func formatString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
