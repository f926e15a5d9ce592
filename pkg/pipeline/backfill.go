package pipeline

import (
	"context"
	"fmt"

	"github.com/de-tools/commerce-atlas/pkg/dataset"
	"github.com/de-tools/commerce-atlas/pkg/etl/calendar"
	"github.com/de-tools/commerce-atlas/pkg/etl/extract"
	"github.com/de-tools/commerce-atlas/pkg/models/domain"
)

const (
	MonthlySalesData = "all_sku_data"
	backfillSplit    = 4
)

// MonthlySalesColumns is the column order of all_sku_data.
var MonthlySalesColumns = []string{
	extract.ColProductTitle,
	extract.ColVariant,
	extract.ColSKU,
	extract.ColMonth,
	extract.ColNetItemsSold,
	extract.ColOrders,
	extract.ColQuantityReturned,
	extract.ColNetSales,
	extract.ColGrossSales,
	extract.ColDiscounts,
	extract.ColNetReturns,
}

func (r *Runner) backfill(ctx context.Context, s Session, p Params) (Window, []Output, error) {
	year := p.Year
	if year == 0 {
		year = LastCompleteMonthYear(p.AsOf)
	}
	windows := MonthlySplit(year, backfillSplit)

	parts := make([]*dataset.Table, 0, len(windows))
	for _, w := range windows {
		t, err := r.fetch(ctx, s, domain.QueryRequest{
			Kind: domain.QueryMonthlySales, Since: w.Since, Until: w.Until,
		}, extract.MonthlySalesSchema)
		if err != nil {
			return Window{}, nil, fmt.Errorf("window %s..%s: %w",
				w.Since.Format(dataset.DateLayout), w.Until.Format(dataset.DateLayout), err)
		}
		parts = append(parts, t)
	}

	sales, err := dataset.Concat(MonthlySalesData, parts...)
	if err != nil {
		return Window{}, nil, err
	}

	expanded, err := calendar.Expand(sales, calendar.Options{Year: year, Unit: calendar.UnitMonth})
	if err != nil {
		return Window{}, nil, err
	}
	out, err := expanded.Select(MonthlySalesColumns...)
	if err != nil {
		return Window{}, nil, err
	}

	span := Window{Since: windows[0].Since, Until: windows[len(windows)-1].Until}
	return span, []Output{{Destination: MonthlySalesData, Table: out}}, nil
}
