// Package calendar densifies sparse per-period data against a full date
// dimension.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/commerce-atlas/pkg/dataset"
	"github.com/de-tools/commerce-atlas/pkg/etl/extract"
)

type Unit string

const (
	UnitMonth Unit = "month"
	UnitDay   Unit = "day"
)

func ParseUnit(s string) (Unit, error) {
	switch u := Unit(strings.ToLower(strings.TrimSpace(s))); u {
	case "", UnitMonth:
		return UnitMonth, nil
	case UnitDay:
		return u, nil
	}
	return "", fmt.Errorf("unknown calendar unit %q", s)
}

// Dimension returns every period of year as a single Date column named after
// the unit.
func Dimension(year int, unit Unit) (*dataset.Table, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	var rows [][]any
	switch unit {
	case UnitMonth:
		for d := start; d.Before(end); d = d.AddDate(0, 1, 0) {
			rows = append(rows, []any{d})
		}
	case UnitDay:
		for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
			rows = append(rows, []any{d})
		}
	default:
		return nil, fmt.Errorf("unknown calendar unit %q", unit)
	}

	return dataset.New(fmt.Sprintf("calendar_%d", year), []dataset.Column{{Name: string(unit), Type: dataset.Date}}, rows)
}

type Options struct {
	Year    int
	Unit    Unit
	Entity  []string
	OrderBy []string
}

func (o Options) withDefaults() Options {
	if o.Unit == "" {
		o.Unit = UnitMonth
	}
	if len(o.Entity) == 0 {
		o.Entity = []string{extract.ColProductTitle, extract.ColVariant, extract.ColSKU}
	}
	if len(o.OrderBy) == 0 {
		o.OrderBy = []string{extract.ColProductTitle, extract.ColSKU, string(o.Unit)}
	}
	return o
}

// Expand returns one row per entity observed in t for every period of the
// target year. Rows of t that fall outside the year are dropped; periods with
// no activity are manufactured with every metric at zero.
func Expand(t *dataset.Table, opts Options) (*dataset.Table, error) {
	opts = opts.withDefaults()
	period := string(opts.Unit)

	if c, ok := t.Column(period); !ok || c.Type != dataset.Date {
		return nil, fmt.Errorf("calendar expand %s: %q must be a date column", t.Name(), period)
	}

	dim, err := Dimension(opts.Year, opts.Unit)
	if err != nil {
		return nil, err
	}

	entities, err := t.Distinct(opts.Entity...)
	if err != nil {
		return nil, fmt.Errorf("calendar expand %s: %w", t.Name(), err)
	}
	grid, err := dataset.CrossJoin(entities, dim)
	if err != nil {
		return nil, fmt.Errorf("calendar expand %s: %w", t.Name(), err)
	}

	aligned, err := truncate(t, opts.Unit)
	if err != nil {
		return nil, fmt.Errorf("calendar expand %s: %w", t.Name(), err)
	}
	inYear := aligned.Filter(func(r dataset.Record) bool {
		return r.Date(period).Year() == opts.Year
	})

	keys := append(append([]string{}, opts.Entity...), period)
	joined, err := dataset.OuterJoin(grid, inYear, keys...)
	if err != nil {
		return nil, fmt.Errorf("calendar expand %s: %w", t.Name(), err)
	}

	out, err := dataset.FillMissing(joined).SortBy(opts.OrderBy...)
	if err != nil {
		return nil, fmt.Errorf("calendar expand %s: %w", t.Name(), err)
	}
	return out.WithName(t.Name()), nil
}

// truncate moves every value of the period column to the start of its period
// so that it lines up with the dimension.
func truncate(t *dataset.Table, unit Unit) (*dataset.Table, error) {
	period := string(unit)
	raw := period + "_raw"
	renamed, err := t.Rename(map[string]string{period: raw})
	if err != nil {
		return nil, err
	}
	extended, err := renamed.Extend([]dataset.Column{{Name: period, Type: dataset.Date}}, func(r dataset.Record) []any {
		v, ok := r.Value(raw).(time.Time)
		if !ok {
			return []any{nil}
		}
		return []any{periodStart(v, unit)}
	})
	if err != nil {
		return nil, err
	}
	return extended.Select(t.ColumnNames()...)
}

func periodStart(d time.Time, unit Unit) time.Time {
	if unit == UnitMonth {
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
