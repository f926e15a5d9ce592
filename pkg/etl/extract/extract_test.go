package extract

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/de-tools/commerce-atlas/pkg/dataset"
	"github.com/de-tools/commerce-atlas/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weeklyRows(rows ...map[string]any) *domain.RawResultSet {
	return &domain.RawResultSet{
		Columns: []domain.ResultColumn{
			{Name: ColSKU, DataType: "STRING"},
			{Name: ColWeek, DataType: "WEEK_TIMESTAMP"},
			{Name: ColUnitsSold, DataType: "INTEGER"},
			{Name: ColEndingUnits, DataType: "INTEGER"},
		},
		Rows: rows,
	}
}

func TestExtract_WeeklyInventory(t *testing.T) {
	rs := weeklyRows(
		map[string]any{ColSKU: "A", ColWeek: "2025-01-06T00:00:00Z", ColUnitsSold: json.Number("10"), ColEndingUnits: float64(2)},
		map[string]any{ColSKU: "B", ColWeek: "2025-01-06", ColUnitsSold: "0", ColEndingUnits: json.Number("3")},
	)

	tbl, err := WeeklyInventory(rs)
	require.NoError(t, err)

	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{ColSKU, ColWeek, ColUnitsSold, ColEndingUnits}, tbl.ColumnNames())

	first := tbl.Row(0)
	assert.Equal(t, "A", first.String(ColSKU))
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), first.Date(ColWeek))
	assert.Equal(t, int64(10), first.Int(ColUnitsSold))
	assert.Equal(t, int64(2), first.Int(ColEndingUnits))
	assert.Equal(t, int64(3), tbl.Row(1).Int(ColEndingUnits))
}

func TestExtract_RenamesFields(t *testing.T) {
	rs := &domain.RawResultSet{Rows: []map[string]any{
		{ColSKU: "A", ColUnitsSold: "4", ColEndingUnits: "0"},
	}}

	tbl, err := SkuInventory(rs)
	require.NoError(t, err)
	assert.Equal(t, []string{ColSKU, ColInventorySold60d, ColAvailableUnits}, tbl.ColumnNames())
	assert.Equal(t, int64(4), tbl.Row(0).Int(ColInventorySold60d))
}

func TestExtract_MissingFieldIsSchemaError(t *testing.T) {
	// Given a result set whose second row lacks a required field
	rs := weeklyRows(
		map[string]any{ColSKU: "A", ColWeek: "2025-01-06", ColUnitsSold: "1", ColEndingUnits: "1"},
		map[string]any{ColSKU: "B", ColWeek: "2025-01-06", ColUnitsSold: "1"},
	)

	// When extracting
	tbl, err := WeeklyInventory(rs)

	// Then no dataset is returned and the error names the field and row
	assert.Nil(t, tbl)
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, ColEndingUnits, schemaErr.Field)
	assert.Equal(t, 1, schemaErr.Row)
	assert.Equal(t, "weekly_inventory", schemaErr.Dataset)
}

func TestExtract_NullValueIsPresent(t *testing.T) {
	rs := &domain.RawResultSet{Rows: []map[string]any{
		{ColSKU: nil, ColOrders: "1", ColNetSales: "2.5"},
	}}

	tbl, err := SkuChannelSales(rs)
	require.NoError(t, err)
	assert.Equal(t, "", tbl.Row(0).String(ColSKU))
}

func TestExtract_CoercionFailures(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
		typ   dataset.ColumnType
	}{
		{name: "fractional integer", field: ColUnitsSold, value: "12.5", typ: dataset.Int},
		{name: "non numeric integer", field: ColUnitsSold, value: "abc", typ: dataset.Int},
		{name: "fractional json number", field: ColUnitsSold, value: float64(1.5), typ: dataset.Int},
		{name: "integer overflow", field: ColUnitsSold, value: float64(1 << 63), typ: dataset.Int},
		{name: "negative integer overflow", field: ColUnitsSold, value: float64(-1e19), typ: dataset.Int},
		{name: "bad date", field: ColWeek, value: "last week", typ: dataset.Date},
		{name: "bool date", field: ColWeek, value: true, typ: dataset.Date},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := map[string]any{ColSKU: "A", ColWeek: "2025-01-06", ColUnitsSold: "1", ColEndingUnits: "1"}
			row[tt.field] = tt.value

			tbl, err := WeeklyInventory(weeklyRows(row))

			assert.Nil(t, tbl)
			var coercionErr *TypeCoercionError
			require.True(t, errors.As(err, &coercionErr))
			assert.Equal(t, tt.field, coercionErr.Field)
			assert.Equal(t, tt.typ, coercionErr.Type)
			assert.Equal(t, tt.value, coercionErr.Value)
		})
	}
}

func TestExtract_FloatUsesDecimalParse(t *testing.T) {
	rs := &domain.RawResultSet{Rows: []map[string]any{
		{ColSKU: "A", ColOrders: json.Number("3"), ColNetSales: json.Number("1234.10")},
		{ColSKU: "B", ColOrders: int64(1), ColNetSales: "0.1"},
	}}

	tbl, err := SkuChannelSales(rs)
	require.NoError(t, err)
	assert.Equal(t, 1234.1, tbl.Row(0).Float(ColSocialNetSales))
	assert.Equal(t, 0.1, tbl.Row(1).Float(ColSocialNetSales))

	rs.Rows[1][ColNetSales] = "1,5"
	_, err = SkuChannelSales(rs)
	var coercionErr *TypeCoercionError
	assert.ErrorAs(t, err, &coercionErr)
}

func TestExtract_EmptyAndNil(t *testing.T) {
	tbl, err := MonthlySales(&domain.RawResultSet{})
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
	assert.Len(t, tbl.Columns(), len(MonthlySalesSchema.Fields))

	_, err = MonthlySales(nil)
	assert.Error(t, err)
}

func TestExtract_MonthlySalesMonth(t *testing.T) {
	row := map[string]any{
		ColProductTitle: "Shirt", ColVariantTitle: "M", ColSKU: "S-M",
		ColMonth: "2025-03", ColNetItemsSold: "2", ColGrossSales: "40.00",
		ColDiscounts: "-5", "returns": "0", ColOrders: "2",
		ColQuantityReturned: "0", ColNetSales: "35", ColAverageOrderValue: "17.5",
	}

	tbl, err := MonthlySales(&domain.RawResultSet{Rows: []map[string]any{row}})
	require.NoError(t, err)

	rec := tbl.Row(0)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), rec.Date(ColMonth))
	assert.Equal(t, "M", rec.String(ColVariant))
	assert.Equal(t, -5.0, rec.Float(ColDiscounts))
	assert.True(t, tbl.Has(ColNetReturns))
}
