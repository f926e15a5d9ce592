// Package metrics derives per-row activity and stock indicators.
package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/commerce-atlas/pkg/dataset"
	"github.com/de-tools/commerce-atlas/pkg/etl/extract"
)

const (
	ColActiveWeek     = "active_weeks"
	ColInactiveWeek   = "inactive_weeks"
	ColOutOfStockWeek = "out_of_stock_weeks"
	ColOutOfStockSKU  = "out_of_stock_sku"
)

// OutOfStockPolicy decides when a week counts as out of stock.
type OutOfStockPolicy string

const (
	// OutOfStockAtZero flags weeks that ended with no units on hand.
	OutOfStockAtZero OutOfStockPolicy = "zero"
	// OutOfStockBelowZero flags weeks that ended oversold. Older backfills used it.
	OutOfStockBelowZero OutOfStockPolicy = "negative"
)

func ParseOutOfStockPolicy(s string) (OutOfStockPolicy, error) {
	switch p := OutOfStockPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", OutOfStockAtZero:
		return OutOfStockAtZero, nil
	case OutOfStockBelowZero:
		return p, nil
	}
	return "", fmt.Errorf("unknown out of stock policy %q", s)
}

// WeeklyInventory is one SKU's inventory movement for one week.
type WeeklyInventory struct {
	SKU         string
	Week        time.Time
	UnitsSold   int64
	EndingUnits int64
}

// WeeklyFlags holds the indicators derived from a WeeklyInventory row.
type WeeklyFlags struct {
	Active     bool
	Inactive   bool
	OutOfStock bool
}

func ActiveWeek(unitsSold int64) bool {
	return unitsSold > 0
}

func InactiveWeek(endingUnits, unitsSold int64) bool {
	return endingUnits > 0 && unitsSold == 0
}

func OutOfStockWeek(endingUnits int64, policy OutOfStockPolicy) bool {
	if policy == OutOfStockBelowZero {
		return endingUnits < 0
	}
	return endingUnits == 0
}

func OutOfStockSKU(endingInventoryUnits int64) bool {
	return endingInventoryUnits == 0
}

func (w WeeklyInventory) Flags(policy OutOfStockPolicy) WeeklyFlags {
	return WeeklyFlags{
		Active:     ActiveWeek(w.UnitsSold),
		Inactive:   InactiveWeek(w.EndingUnits, w.UnitsSold),
		OutOfStock: OutOfStockWeek(w.EndingUnits, policy),
	}
}

func weeklyFromRecord(r dataset.Record) WeeklyInventory {
	return WeeklyInventory{
		SKU:         r.String(extract.ColSKU),
		Week:        r.Date(extract.ColWeek),
		UnitsSold:   r.Int(extract.ColUnitsSold),
		EndingUnits: r.Int(extract.ColEndingUnits),
	}
}

func indicator(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func checkColumns(t *dataset.Table, names ...string) error {
	for _, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return fmt.Errorf("dataset %s: %w: %q", t.Name(), dataset.ErrColumnNotFound, n)
		}
		if n != extract.ColSKU && n != extract.ColWeek && c.Type != dataset.Int {
			return fmt.Errorf("dataset %s: column %q is %s, want int", t.Name(), n, c.Type)
		}
	}
	return nil
}

// FlagWeekly appends active_weeks, inactive_weeks and out_of_stock_weeks as
// 0/1 columns to a weekly inventory table.
func FlagWeekly(t *dataset.Table, policy OutOfStockPolicy) (*dataset.Table, error) {
	if err := checkColumns(t, extract.ColSKU, extract.ColUnitsSold, extract.ColEndingUnits); err != nil {
		return nil, err
	}
	columns := []dataset.Column{
		{Name: ColActiveWeek, Type: dataset.Int},
		{Name: ColInactiveWeek, Type: dataset.Int},
		{Name: ColOutOfStockWeek, Type: dataset.Int},
	}
	return t.Extend(columns, func(r dataset.Record) []any {
		f := weeklyFromRecord(r).Flags(policy)
		return []any{indicator(f.Active), indicator(f.Inactive), indicator(f.OutOfStock)}
	})
}

// FlagChannelInventory appends out_of_stock_sku to a channel inventory table.
func FlagChannelInventory(t *dataset.Table) (*dataset.Table, error) {
	if err := checkColumns(t, extract.ColEndingUnits); err != nil {
		return nil, err
	}
	columns := []dataset.Column{{Name: ColOutOfStockSKU, Type: dataset.Int}}
	return t.Extend(columns, func(r dataset.Record) []any {
		return []any{indicator(OutOfStockSKU(r.Int(extract.ColEndingUnits)))}
	})
}
