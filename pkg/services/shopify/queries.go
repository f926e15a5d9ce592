package shopify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/de-tools/commerce-atlas/pkg/models/domain"
)

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("2006-01-02") },
	"list": quoteList,
}

var queryTemplates = map[domain.QueryKind]string{
	domain.QuerySkuSales: `FROM sales
SHOW orders, net_sales, average_order_value
WHERE cost_is_recorded = true
GROUP BY product_title, product_variant_title, product_variant_sku
HAVING net_sales > 0
SINCE {{date .Since}} UNTIL {{date .Until}}
ORDER BY net_sales DESC{{if .Limit}}
LIMIT {{.Limit}}{{end}}`,

	domain.QueryTopSellers: `FROM sales
SHOW orders, net_sales, average_order_value
WHERE cost_is_recorded = true
GROUP BY product_title, product_variant_title, product_variant_sku
SINCE {{date .Since}} UNTIL {{date .Until}}
ORDER BY net_sales DESC{{if .Limit}}
LIMIT {{.Limit}}{{end}}`,

	domain.QuerySkuInventory: `FROM inventory
SHOW inventory_units_sold, ending_inventory_units
WHERE inventory_is_tracked = true
  AND product_variant_sku IN {{list .SKUs}}
GROUP BY product_variant_sku
HAVING inventory_units_sold > 0
SINCE {{date .Since}} UNTIL {{date .Until}}
ORDER BY product_variant_sku ASC`,

	domain.QueryWeeklyInventory: `FROM inventory
SHOW week, inventory_units_sold, ending_inventory_units
WHERE inventory_is_tracked = true
  AND product_variant_sku IN {{list .SKUs}}
GROUP BY week, product_variant_sku
SINCE {{date .Since}} UNTIL {{date .Until}}
ORDER BY product_variant_sku, week ASC`,

	domain.QuerySkuChannelSales: `FROM sales
SHOW orders, net_sales
WHERE sales_channel IN {{list .Channels}}
GROUP BY product_variant_sku
HAVING net_sales > 0
SINCE {{date .Since}} UNTIL {{date .Until}}
ORDER BY net_sales DESC`,

	domain.QueryChannelSales: `FROM sales
SHOW orders, quantity_returned, net_sales, average_order_value
WHERE sales_channel IN {{list .Channels}}
GROUP BY product_title, sales_channel
SINCE {{date .Since}} UNTIL {{date .Until}}
ORDER BY net_sales DESC{{if .Limit}}
LIMIT {{.Limit}}{{end}}`,

	domain.QueryChannelInventory: `FROM inventory
SHOW inventory_units_sold, ending_inventory_units, days_out_of_stock, sell_through_rate
WHERE inventory_is_tracked = true
  AND product_title IN {{list .Products}}
GROUP BY product_title, product_variant_title, product_variant_sku
HAVING inventory_units_sold > 0
SINCE {{date .Since}} UNTIL {{date .Until}}`,

	domain.QueryYearlyInventory: `FROM inventory
SHOW inventory_units_sold, ending_inventory_units
WHERE inventory_is_tracked = true
  AND product_variant_sku IS NOT NULL
GROUP BY product_title, product_variant_title, product_variant_sku
HAVING inventory_units_sold > 0
SINCE {{date .Since}} UNTIL {{date .Until}}
ORDER BY ending_inventory_units DESC`,

	domain.QueryMonthlySales: `FROM sales
SHOW net_items_sold, orders, net_sales, gross_sales, discounts, returns,
  average_order_value, quantity_returned
WHERE line_type = 'product'
  AND product_variant_sku IS NOT NULL
GROUP BY month, product_title, product_variant_title, product_variant_sku
HAVING net_items_sold > 0
SINCE {{date .Since}} UNTIL {{date .Until}}
ORDER BY product_title, product_variant_sku`,
}

var templates = func() map[domain.QueryKind]*template.Template {
	out := make(map[domain.QueryKind]*template.Template, len(queryTemplates))
	for kind, text := range queryTemplates {
		out[kind] = template.Must(template.New(string(kind)).Funcs(funcs).Parse(text))
	}
	return out
}()

// Render produces the ShopifyQL text for a query request.
func Render(req domain.QueryRequest) (string, error) {
	tmpl, ok := templates[req.Kind]
	if !ok {
		return "", fmt.Errorf("no query template for %q", req.Kind)
	}
	if req.Since.IsZero() || req.Until.IsZero() {
		return "", fmt.Errorf("query %s: date range is required", req.Kind)
	}
	if req.Until.Before(req.Since) {
		return "", fmt.Errorf("query %s: range ends before it starts", req.Kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("render %s: %w", req.Kind, err)
	}
	return buf.String(), nil
}

func quoteList(values []string) (string, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("empty value list")
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		v = strings.ReplaceAll(v, `\`, `\\`)
		quoted[i] = "'" + strings.ReplaceAll(v, "'", `\'`) + "'"
	}
	return "(" + strings.Join(quoted, ", ") + ")", nil
}
