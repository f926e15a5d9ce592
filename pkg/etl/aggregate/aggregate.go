// Package aggregate reduces flagged per-period datasets to one row per entity.
package aggregate

import (
	"fmt"

	"github.com/de-tools/commerce-atlas/pkg/dataset"
	"github.com/de-tools/commerce-atlas/pkg/etl/extract"
	"github.com/de-tools/commerce-atlas/pkg/etl/metrics"
)

const (
	ColWeekCount            = "week_count"
	ColTotalUnitsSold       = "total_units_sold"
	ColTotalActiveWeeks     = "total_active_weeks"
	ColTotalInactiveWeeks   = "total_inactive_weeks"
	ColTotalOutOfStockWeeks = "total_out_of_stock_weeks"
	ColAvgWeeklySales       = "avg_weekly_sales"
	ColActiveSKUCount       = "active_sku_count"
)

// PeriodAggregate summarises one SKU over a multi-week window.
type PeriodAggregate struct {
	SKU                  string
	WeekCount            int64
	TotalUnitsSold       int64
	TotalActiveWeeks     int64
	TotalInactiveWeeks   int64
	TotalOutOfStockWeeks int64
	AvgWeeklySales       float64
}

// AvgWeeklySales is units sold per active week, or 0 when no week was active.
func AvgWeeklySales(unitsSold, activeWeeks int64) float64 {
	if activeWeeks == 0 {
		return 0
	}
	return float64(unitsSold) / float64(activeWeeks)
}

// Weekly groups a table produced by metrics.FlagWeekly by SKU. Groups keep
// the order in which each SKU first appears.
func Weekly(t *dataset.Table) (*dataset.Table, error) {
	grouped, err := dataset.GroupBy(t, []string{extract.ColSKU},
		dataset.CountOf(extract.ColSKU, ColWeekCount),
		dataset.SumOf(extract.ColUnitsSold, ColTotalUnitsSold),
		dataset.SumOf(metrics.ColActiveWeek, ColTotalActiveWeeks),
		dataset.SumOf(metrics.ColInactiveWeek, ColTotalInactiveWeeks),
		dataset.SumOf(metrics.ColOutOfStockWeek, ColTotalOutOfStockWeeks),
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate weekly: %w", err)
	}

	if c, _ := grouped.Column(ColTotalUnitsSold); c.Type != dataset.Int {
		return nil, fmt.Errorf("aggregate weekly: %s must be int, got %s", extract.ColUnitsSold, c.Type)
	}

	return grouped.Extend([]dataset.Column{{Name: ColAvgWeeklySales, Type: dataset.Float}}, func(r dataset.Record) []any {
		return []any{AvgWeeklySales(r.Int(ColTotalUnitsSold), r.Int(ColTotalActiveWeeks))}
	})
}

// Summaries decodes the output of Weekly.
func Summaries(t *dataset.Table) []PeriodAggregate {
	out := make([]PeriodAggregate, t.Len())
	for i := range out {
		r := t.Row(i)
		out[i] = PeriodAggregate{
			SKU:                  r.String(extract.ColSKU),
			WeekCount:            r.Int(ColWeekCount),
			TotalUnitsSold:       r.Int(ColTotalUnitsSold),
			TotalActiveWeeks:     r.Int(ColTotalActiveWeeks),
			TotalInactiveWeeks:   r.Int(ColTotalInactiveWeeks),
			TotalOutOfStockWeeks: r.Int(ColTotalOutOfStockWeeks),
			AvgWeeklySales:       r.Float(ColAvgWeeklySales),
		}
	}
	return out
}

// ChannelInventory groups a table produced by metrics.FlagChannelInventory by
// product title.
func ChannelInventory(t *dataset.Table) (*dataset.Table, error) {
	grouped, err := dataset.GroupBy(t, []string{extract.ColProductTitle},
		dataset.CountOf(extract.ColSKU, ColActiveSKUCount),
		dataset.SumOf(metrics.ColOutOfStockSKU, metrics.ColOutOfStockSKU),
		dataset.SumOf(extract.ColUnitsSold, extract.ColUnitsSold),
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate channel inventory: %w", err)
	}
	return grouped, nil
}
