package extract

import (
	"fmt"

	"github.com/de-tools/commerce-atlas/pkg/dataset"
)

// SchemaError reports a required field missing from a raw row.
type SchemaError struct {
	Dataset string
	Field   string
	Row     int
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: required field %q missing from row %d", e.Dataset, e.Field, e.Row)
}

// TypeCoercionError reports a raw value that cannot be converted to the
// column's declared type.
type TypeCoercionError struct {
	Dataset string
	Field   string
	Row     int
	Value   any
	Type    dataset.ColumnType
	Err     error
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf("%s: field %q row %d: cannot convert %v to %s: %v",
		e.Dataset, e.Field, e.Row, e.Value, e.Type, e.Err)
}

func (e *TypeCoercionError) Unwrap() error {
	return e.Err
}
