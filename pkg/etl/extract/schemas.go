package extract

import (
	"github.com/de-tools/commerce-atlas/pkg/dataset"
	"github.com/de-tools/commerce-atlas/pkg/models/domain"
)

// Column names shared by the extractors and the steps downstream of them.
const (
	ColProductTitle      = "product_title"
	ColVariantTitle      = "product_variant_title"
	ColVariant           = "product_variant"
	ColSKU               = "product_variant_sku"
	ColSalesChannel      = "sales_channel"
	ColOrders            = "orders"
	ColNetSales          = "net_sales"
	ColAverageOrderValue = "average_order_value"
	ColQuantityReturned  = "quantity_returned"
	ColWeek              = "week"
	ColMonth             = "month"
	ColUnitsSold         = "inventory_units_sold"
	ColEndingUnits       = "ending_inventory_units"
	ColDaysOutOfStock    = "days_out_of_stock"
	ColSellThroughRate   = "sell_through_rate"
	ColNetItemsSold      = "net_items_sold"
	ColGrossSales        = "gross_sales"
	ColDiscounts         = "discounts"
	ColNetReturns        = "net_returns"
	ColInventorySold60d  = "inventory_sold_last_60days"
	ColInventorySoldYear = "inventory_sold_last_year"
	ColAvailableUnits    = "current_available_inventory_units"
	ColSocialOrders      = "social_orders"
	ColSocialNetSales    = "social_net_sales"
)

func same(name string, typ dataset.ColumnType) Field {
	return Field{Source: name, Name: name, Type: typ}
}

var (
	SalesSchema = Schema{
		Dataset: "sales",
		Fields: []Field{
			same(ColProductTitle, dataset.String),
			same(ColVariantTitle, dataset.String),
			same(ColSKU, dataset.String),
			same(ColOrders, dataset.Int),
			same(ColNetSales, dataset.Float),
			same(ColAverageOrderValue, dataset.Float),
		},
	}

	TopSellersSchema = Schema{
		Dataset: "top_sellers",
		Fields:  SalesSchema.Fields,
	}

	SkuInventorySchema = Schema{
		Dataset: "sku_inventory",
		Fields: []Field{
			same(ColSKU, dataset.String),
			{Source: ColUnitsSold, Name: ColInventorySold60d, Type: dataset.Int},
			{Source: ColEndingUnits, Name: ColAvailableUnits, Type: dataset.Int},
		},
	}

	WeeklyInventorySchema = Schema{
		Dataset: "weekly_inventory",
		Fields: []Field{
			same(ColSKU, dataset.String),
			same(ColWeek, dataset.Date),
			same(ColUnitsSold, dataset.Int),
			same(ColEndingUnits, dataset.Int),
		},
	}

	SkuChannelSalesSchema = Schema{
		Dataset: "sku_channel_sales",
		Fields: []Field{
			same(ColSKU, dataset.String),
			{Source: ColOrders, Name: ColSocialOrders, Type: dataset.Int},
			{Source: ColNetSales, Name: ColSocialNetSales, Type: dataset.Float},
		},
	}

	ChannelSalesSchema = Schema{
		Dataset: "channel_sales",
		Fields: []Field{
			same(ColProductTitle, dataset.String),
			same(ColSalesChannel, dataset.String),
			same(ColOrders, dataset.Int),
			same(ColQuantityReturned, dataset.Int),
			same(ColNetSales, dataset.Float),
			same(ColAverageOrderValue, dataset.Float),
		},
	}

	ChannelInventorySchema = Schema{
		Dataset: "channel_inventory",
		Fields: []Field{
			same(ColProductTitle, dataset.String),
			same(ColVariantTitle, dataset.String),
			same(ColSKU, dataset.String),
			same(ColUnitsSold, dataset.Int),
			same(ColEndingUnits, dataset.Int),
			same(ColDaysOutOfStock, dataset.Int),
			same(ColSellThroughRate, dataset.Float),
		},
	}

	YearlyInventorySchema = Schema{
		Dataset: "yearly_inventory",
		Fields: []Field{
			same(ColProductTitle, dataset.String),
			{Source: ColVariantTitle, Name: ColVariant, Type: dataset.String},
			same(ColSKU, dataset.String),
			{Source: ColUnitsSold, Name: ColInventorySoldYear, Type: dataset.Int},
			{Source: ColEndingUnits, Name: ColAvailableUnits, Type: dataset.Int},
		},
	}

	MonthlySalesSchema = Schema{
		Dataset: "monthly_sales",
		Fields: []Field{
			same(ColProductTitle, dataset.String),
			{Source: ColVariantTitle, Name: ColVariant, Type: dataset.String},
			same(ColSKU, dataset.String),
			same(ColMonth, dataset.Date),
			same(ColNetItemsSold, dataset.Int),
			same(ColGrossSales, dataset.Float),
			same(ColDiscounts, dataset.Float),
			{Source: "returns", Name: ColNetReturns, Type: dataset.Float},
			same(ColOrders, dataset.Int),
			same(ColQuantityReturned, dataset.Int),
			same(ColNetSales, dataset.Float),
			same(ColAverageOrderValue, dataset.Float),
		},
	}
)

// Sales extracts per-SKU sales.
func Sales(rs *domain.RawResultSet) (*dataset.Table, error) {
	return Extract(rs, SalesSchema)
}

// TopSellers has the sales shape.
func TopSellers(rs *domain.RawResultSet) (*dataset.Table, error) {
	return Extract(rs, TopSellersSchema)
}

func SkuInventory(rs *domain.RawResultSet) (*dataset.Table, error) {
	return Extract(rs, SkuInventorySchema)
}

func WeeklyInventory(rs *domain.RawResultSet) (*dataset.Table, error) {
	return Extract(rs, WeeklyInventorySchema)
}

func SkuChannelSales(rs *domain.RawResultSet) (*dataset.Table, error) {
	return Extract(rs, SkuChannelSalesSchema)
}

func ChannelSales(rs *domain.RawResultSet) (*dataset.Table, error) {
	return Extract(rs, ChannelSalesSchema)
}

func ChannelInventory(rs *domain.RawResultSet) (*dataset.Table, error) {
	return Extract(rs, ChannelInventorySchema)
}

func YearlyInventory(rs *domain.RawResultSet) (*dataset.Table, error) {
	return Extract(rs, YearlyInventorySchema)
}

func MonthlySales(rs *domain.RawResultSet) (*dataset.Table, error) {
	return Extract(rs, MonthlySalesSchema)
}
