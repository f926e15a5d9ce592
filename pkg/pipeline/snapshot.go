package pipeline

import (
	"context"
	"fmt"

	"github.com/de-tools/commerce-atlas/pkg/dataset"
	"github.com/de-tools/commerce-atlas/pkg/etl/aggregate"
	"github.com/de-tools/commerce-atlas/pkg/etl/consolidate"
	"github.com/de-tools/commerce-atlas/pkg/etl/extract"
	"github.com/de-tools/commerce-atlas/pkg/etl/metrics"
	"github.com/de-tools/commerce-atlas/pkg/models/domain"
)

const (
	TopSKUData       = "top_sku_data"
	ChannelSalesData = "channel_sales_data"
	OutOfStockData   = "out_of_stock_data"
)

const (
	colNetSales14d      = "net_sales_14days"
	colInventorySold6m  = "inventory_sold_last_6months"
	salesWindowDays     = 60
	topSellerWindowDays = 14
)

// ChannelSalesColumns is the column order of channel_sales_data.
var ChannelSalesColumns = []string{
	extract.ColProductTitle,
	extract.ColSalesChannel,
	extract.ColUnitsSold,
	extract.ColOrders,
	extract.ColQuantityReturned,
	extract.ColNetSales,
	extract.ColAverageOrderValue,
	aggregate.ColActiveSKUCount,
	metrics.ColOutOfStockSKU,
}

func (r *Runner) snapshot(ctx context.Context, s Session, p Params) (Window, []Output, error) {
	cfg := r.settings
	recent := Trailing(p.AsOf, salesWindowDays)
	sixMonths := CompleteMonths(p.AsOf, 6)

	sales, err := r.fetch(ctx, s, domain.QueryRequest{
		Kind: domain.QuerySkuSales, Since: recent.Since, Until: recent.Until,
	}, extract.SalesSchema)
	if err != nil {
		return Window{}, nil, err
	}
	skus, err := sales.Strings(extract.ColSKU)
	if err != nil {
		return Window{}, nil, err
	}

	topWindow := Trailing(p.AsOf, topSellerWindowDays)
	top, err := r.fetch(ctx, s, domain.QueryRequest{
		Kind: domain.QueryTopSellers, Since: topWindow.Since, Until: topWindow.Until, Limit: cfg.TopSellersLimit,
	}, extract.TopSellersSchema)
	if err != nil {
		return Window{}, nil, err
	}
	if top, err = topSellerSales(top); err != nil {
		return Window{}, nil, err
	}

	inventory, err := r.fetchFor(ctx, s, skus, domain.QueryRequest{
		Kind: domain.QuerySkuInventory, Since: recent.Since, Until: recent.Until, SKUs: skus,
	}, extract.SkuInventorySchema)
	if err != nil {
		return Window{}, nil, err
	}

	weekly, err := r.fetchBatched(ctx, s, skus, domain.QueryRequest{
		Kind: domain.QueryWeeklyInventory, Since: sixMonths.Since, Until: sixMonths.Until,
	}, extract.WeeklyInventorySchema)
	if err != nil {
		return Window{}, nil, err
	}
	weeklySummary, err := summarizeWeekly(weekly, cfg.OutOfStockPolicy)
	if err != nil {
		return Window{}, nil, err
	}

	social, err := r.fetch(ctx, s, domain.QueryRequest{
		Kind: domain.QuerySkuChannelSales, Since: recent.Since, Until: recent.Until, Channels: cfg.Channels,
	}, extract.SkuChannelSalesSchema)
	if err != nil {
		return Window{}, nil, err
	}

	channelSales, err := r.fetch(ctx, s, domain.QueryRequest{
		Kind: domain.QueryChannelSales, Since: sixMonths.Since, Until: sixMonths.Until,
		Channels: cfg.Channels, Limit: cfg.ChannelSalesLimit,
	}, extract.ChannelSalesSchema)
	if err != nil {
		return Window{}, nil, err
	}
	products, err := channelSales.Strings(extract.ColProductTitle)
	if err != nil {
		return Window{}, nil, err
	}

	if err := r.wait(ctx, cfg.RateLimit, "waiting out the query rate limit"); err != nil {
		return Window{}, nil, err
	}

	lastMonths := CompleteMonths(p.AsOf, 2)
	channelInventory, err := r.fetchFor(ctx, s, products, domain.QueryRequest{
		Kind: domain.QueryChannelInventory, Since: lastMonths.Since, Until: lastMonths.Until, Products: products,
	}, extract.ChannelInventorySchema)
	if err != nil {
		return Window{}, nil, err
	}
	channelInventory, err = metrics.FlagChannelInventory(channelInventory)
	if err != nil {
		return Window{}, nil, err
	}

	outOfStock := channelInventory.Filter(func(rec dataset.Record) bool {
		return rec.Int(metrics.ColOutOfStockSKU) == 1
	})

	channel, err := channelConsolidated(channelSales, channelInventory)
	if err != nil {
		return Window{}, nil, err
	}

	topSKU, err := consolidate.Consolidate(TopSKUData, extract.ColSKU, sales, top, inventory, weeklySummary, social)
	if err != nil {
		return Window{}, nil, err
	}

	return sixMonths, []Output{
		{Destination: TopSKUData, Table: topSKU},
		{Destination: ChannelSalesData, Table: channel.WithName(ChannelSalesData)},
		{Destination: OutOfStockData, Table: outOfStock.WithName(OutOfStockData)},
	}, nil
}

func topSellerSales(top *dataset.Table) (*dataset.Table, error) {
	t, err := top.Select(extract.ColSKU, extract.ColNetSales)
	if err != nil {
		return nil, err
	}
	return t.Rename(map[string]string{extract.ColNetSales: colNetSales14d})
}

// summarizeWeekly flags and aggregates six months of weekly inventory into one
// row per SKU.
func summarizeWeekly(weekly *dataset.Table, policy metrics.OutOfStockPolicy) (*dataset.Table, error) {
	flagged, err := metrics.FlagWeekly(weekly, policy)
	if err != nil {
		return nil, err
	}
	agg, err := aggregate.Weekly(flagged)
	if err != nil {
		return nil, err
	}
	agg, err = agg.Select(
		extract.ColSKU,
		aggregate.ColTotalUnitsSold,
		aggregate.ColTotalActiveWeeks,
		aggregate.ColTotalOutOfStockWeeks,
		aggregate.ColAvgWeeklySales,
	)
	if err != nil {
		return nil, err
	}
	return agg.Rename(map[string]string{
		aggregate.ColTotalUnitsSold:       colInventorySold6m,
		aggregate.ColTotalActiveWeeks:     metrics.ColActiveWeek,
		aggregate.ColTotalOutOfStockWeeks: metrics.ColOutOfStockWeek,
	})
}

// channelConsolidated attaches per-product inventory totals to channel sales.
// Products with no inventory rows keep missing values.
func channelConsolidated(channelSales, flaggedInventory *dataset.Table) (*dataset.Table, error) {
	perProduct, err := aggregate.ChannelInventory(flaggedInventory)
	if err != nil {
		return nil, err
	}
	joined, err := dataset.LeftJoin(channelSales, perProduct, extract.ColProductTitle)
	if err != nil {
		return nil, fmt.Errorf("join channel inventory: %w", err)
	}
	return joined.Select(ChannelSalesColumns...)
}
