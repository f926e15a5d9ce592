package domain

import "time"

// ResultColumn describes one column of a commerce query result.
type ResultColumn struct {
	Name        string `json:"name"`
	DataType    string `json:"dataType"`
	DisplayName string `json:"displayName"`
}

// RawResultSet is a query result as returned by the commerce platform:
// loosely typed rows keyed by field name.
type RawResultSet struct {
	Columns []ResultColumn   `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

type QueryKind string

const (
	QuerySkuSales         QueryKind = "sku_sales"
	QueryTopSellers       QueryKind = "top_sellers"
	QuerySkuInventory     QueryKind = "sku_inventory"
	QueryWeeklyInventory  QueryKind = "weekly_inventory"
	QuerySkuChannelSales  QueryKind = "sku_channel_sales"
	QueryChannelSales     QueryKind = "channel_sales"
	QueryChannelInventory QueryKind = "channel_inventory"
	QueryYearlyInventory  QueryKind = "yearly_inventory"
	QueryMonthlySales     QueryKind = "monthly_sales"
)

// QueryRequest carries the structured parameters of a query. The text sent
// to the platform is rendered by the query collaborator.
type QueryRequest struct {
	Kind     QueryKind
	Since    time.Time
	Until    time.Time
	SKUs     []string
	Products []string
	Channels []string
	Limit    int
}
