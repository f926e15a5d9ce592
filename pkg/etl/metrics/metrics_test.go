package metrics

import (
	"testing"

	"github.com/de-tools/commerce-atlas/pkg/dataset"
	"github.com/de-tools/commerce-atlas/pkg/etl/extract"
	"github.com/de-tools/commerce-atlas/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlags(t *testing.T) {
	tests := []struct {
		name      string
		unitsSold int64
		ending    int64
		active    bool
		inactive  bool
		atZero    bool
		belowZero bool
	}{
		{name: "selling with stock", unitsSold: 10, ending: 2, active: true},
		{name: "idle with stock", unitsSold: 0, ending: 3, inactive: true},
		{name: "sold out", unitsSold: 5, ending: 0, active: true, atZero: true},
		{name: "oversold", unitsSold: 1, ending: -2, active: true, belowZero: true},
		{name: "nothing at all", unitsSold: 0, ending: 0, atZero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := WeeklyInventory{SKU: "A", UnitsSold: tt.unitsSold, EndingUnits: tt.ending}

			f := w.Flags(OutOfStockAtZero)
			assert.Equal(t, tt.active, f.Active)
			assert.Equal(t, tt.inactive, f.Inactive)
			assert.Equal(t, tt.atZero, f.OutOfStock)

			assert.Equal(t, tt.belowZero, w.Flags(OutOfStockBelowZero).OutOfStock)
		})
	}
}

func TestOutOfStockSKU(t *testing.T) {
	assert.True(t, OutOfStockSKU(0))
	assert.False(t, OutOfStockSKU(4))
	assert.False(t, OutOfStockSKU(-1))
}

func TestParseOutOfStockPolicy(t *testing.T) {
	p, err := ParseOutOfStockPolicy("")
	require.NoError(t, err)
	assert.Equal(t, OutOfStockAtZero, p)

	p, err = ParseOutOfStockPolicy(" Negative ")
	require.NoError(t, err)
	assert.Equal(t, OutOfStockBelowZero, p)

	_, err = ParseOutOfStockPolicy("never")
	assert.Error(t, err)
}

func TestFlagWeekly(t *testing.T) {
	// Given three SKUs in a single week
	rs := &domain.RawResultSet{Rows: []map[string]any{
		{extract.ColSKU: "A", extract.ColWeek: "2025-01-06", extract.ColUnitsSold: "10", extract.ColEndingUnits: "2"},
		{extract.ColSKU: "B", extract.ColWeek: "2025-01-06", extract.ColUnitsSold: "0", extract.ColEndingUnits: "3"},
		{extract.ColSKU: "C", extract.ColWeek: "2025-01-06", extract.ColUnitsSold: "5", extract.ColEndingUnits: "0"},
	}}
	weekly, err := extract.WeeklyInventory(rs)
	require.NoError(t, err)

	// When flagging under the zero policy
	flagged, err := FlagWeekly(weekly, OutOfStockAtZero)
	require.NoError(t, err)

	// Then the flags follow units sold and ending units
	active, err := flagged.ColumnValues(ColActiveWeek)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(0), int64(1)}, active)

	outOfStock, err := flagged.ColumnValues(ColOutOfStockWeek)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(0), int64(0), int64(1)}, outOfStock)

	inactive, err := flagged.ColumnValues(ColInactiveWeek)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(0), int64(1), int64(0)}, inactive)

	assert.False(t, weekly.Has(ColActiveWeek))
}

func TestFlagWeekly_RequiresColumns(t *testing.T) {
	tbl, err := dataset.New("x", []dataset.Column{{Name: extract.ColSKU}}, nil)
	require.NoError(t, err)

	_, err = FlagWeekly(tbl, OutOfStockAtZero)
	assert.ErrorIs(t, err, dataset.ErrColumnNotFound)
}

func TestFlagChannelInventory(t *testing.T) {
	tbl, err := dataset.New("channel_inventory", []dataset.Column{
		{Name: extract.ColSKU},
		{Name: extract.ColEndingUnits, Type: dataset.Int},
	}, [][]any{{"A", int64(0)}, {"B", int64(7)}})
	require.NoError(t, err)

	flagged, err := FlagChannelInventory(tbl)
	require.NoError(t, err)
	assert.Equal(t, int64(1), flagged.Row(0).Int(ColOutOfStockSKU))
	assert.Equal(t, int64(0), flagged.Row(1).Int(ColOutOfStockSKU))
}
