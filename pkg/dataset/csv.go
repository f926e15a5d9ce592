package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

const DateLayout = "2006-01-02"

// WriteCSV writes the rows of t as comma separated values. The header row is
// written when header is true; no index column is ever added.
func WriteCSV(w io.Writer, t *Table, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(t.ColumnNames()); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	record := make([]string, len(t.columns))
	for r, row := range t.rows {
		for i, v := range row {
			record[i] = FormatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", r, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// FormatValue renders a cell the way it is written to flat files.
// Missing values become empty strings.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(DateLayout)
	default:
		return fmt.Sprint(x)
	}
}
