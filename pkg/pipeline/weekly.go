package pipeline

import (
	"context"

	"github.com/de-tools/commerce-atlas/pkg/dataset"
	"github.com/de-tools/commerce-atlas/pkg/etl/extract"
	"github.com/de-tools/commerce-atlas/pkg/etl/metrics"
	"github.com/de-tools/commerce-atlas/pkg/models/domain"
)

const WeeklyInventoryData = "all_sku_weekly_inventory_data"

// WeeklyInventoryColumns is the column order of all_sku_weekly_inventory_data.
var WeeklyInventoryColumns = []string{
	extract.ColProductTitle,
	extract.ColVariant,
	extract.ColSKU,
	extract.ColWeek,
	extract.ColUnitsSold,
	extract.ColEndingUnits,
	metrics.ColActiveWeek,
	metrics.ColInactiveWeek,
	metrics.ColOutOfStockWeek,
}

func (r *Runner) weekly(ctx context.Context, s Session, p Params) (Window, []Output, error) {
	year := p.Year
	if year == 0 {
		year = p.AsOf.Year() - 1
	}
	window := CalendarYear(year)

	yearly, err := r.fetch(ctx, s, domain.QueryRequest{
		Kind: domain.QueryYearlyInventory, Since: window.Since, Until: window.Until,
	}, extract.YearlyInventorySchema)
	if err != nil {
		return Window{}, nil, err
	}
	products, err := yearly.Distinct(extract.ColProductTitle, extract.ColVariant, extract.ColSKU)
	if err != nil {
		return Window{}, nil, err
	}
	skus, err := yearly.Strings(extract.ColSKU)
	if err != nil {
		return Window{}, nil, err
	}

	weekly, err := r.fetchBatched(ctx, s, skus, domain.QueryRequest{
		Kind: domain.QueryWeeklyInventory, Since: window.Since, Until: window.Until,
	}, extract.WeeklyInventorySchema)
	if err != nil {
		return Window{}, nil, err
	}
	flagged, err := metrics.FlagWeekly(weekly, r.settings.OutOfStockPolicy)
	if err != nil {
		return Window{}, nil, err
	}

	joined, err := dataset.LeftJoin(flagged, products, extract.ColSKU)
	if err != nil {
		return Window{}, nil, err
	}
	out, err := joined.Select(WeeklyInventoryColumns...)
	if err != nil {
		return Window{}, nil, err
	}

	return window, []Output{{Destination: WeeklyInventoryData, Table: out.WithName(WeeklyInventoryData)}}, nil
}
