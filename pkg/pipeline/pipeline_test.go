package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/de-tools/commerce-atlas/pkg/dataset"
	"github.com/de-tools/commerce-atlas/pkg/etl/extract"
	"github.com/de-tools/commerce-atlas/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	results  map[domain.QueryKind][]*domain.RawResultSet
	errs     map[domain.QueryKind]error
	requests []domain.QueryRequest
	closed   int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		results: make(map[domain.QueryKind][]*domain.RawResultSet),
		errs:    make(map[domain.QueryKind]error),
	}
}

func (s *fakeSession) add(kind domain.QueryKind, rows ...map[string]any) {
	s.results[kind] = append(s.results[kind], &domain.RawResultSet{Rows: rows})
}

func (s *fakeSession) Query(_ context.Context, req domain.QueryRequest) (*domain.RawResultSet, error) {
	s.requests = append(s.requests, req)
	if err := s.errs[req.Kind]; err != nil {
		return nil, err
	}
	queue := s.results[req.Kind]
	if len(queue) == 0 {
		return &domain.RawResultSet{}, nil
	}
	s.results[req.Kind] = queue[1:]
	return queue[0], nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

func (s *fakeSession) requested(kind domain.QueryKind) []domain.QueryRequest {
	var out []domain.QueryRequest
	for _, r := range s.requests {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

type fakeOpener struct {
	session Session
	err     error
}

func (o *fakeOpener) Open(context.Context) (Session, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.session, nil
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Write(ctx context.Context, t *dataset.Table, destination string, mode domain.WriteMode) error {
	args := m.Called(ctx, t, destination, mode)
	return args.Error(0)
}

func (m *MockSink) table(destination string) *dataset.Table {
	for _, call := range m.Calls {
		if call.Arguments.String(2) == destination {
			return call.Arguments.Get(1).(*dataset.Table)
		}
	}
	return nil
}

type recordedSleep struct {
	calls []time.Duration
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	return nil
}

func salesRow(product, variant, sku, orders, netSales string) map[string]any {
	return map[string]any{
		extract.ColProductTitle: product, extract.ColVariantTitle: variant, extract.ColSKU: sku,
		extract.ColOrders: orders, extract.ColNetSales: netSales, extract.ColAverageOrderValue: "0",
	}
}

func weekRow(sku, week, sold, ending string) map[string]any {
	return map[string]any{
		extract.ColSKU: sku, extract.ColWeek: week, extract.ColUnitsSold: sold, extract.ColEndingUnits: ending,
	}
}

func snapshotSession() *fakeSession {
	s := newFakeSession()
	s.add(domain.QuerySkuSales,
		salesRow("Shirt", "S", "A", "2", "100"),
		salesRow("Hat", "One", "B", "1", "200"),
	)
	s.add(domain.QueryTopSellers, salesRow("Shirt", "S", "A", "1", "80"))
	s.add(domain.QuerySkuInventory, map[string]any{
		extract.ColSKU: "A", extract.ColUnitsSold: "5", extract.ColEndingUnits: "0",
	})
	s.add(domain.QueryWeeklyInventory,
		weekRow("A", "2025-01-06", "3", "2"),
		weekRow("A", "2025-01-13", "0", "0"),
		weekRow("B", "2025-01-06", "0", "4"),
	)
	s.add(domain.QuerySkuChannelSales, map[string]any{
		extract.ColSKU: "B", extract.ColOrders: "1", extract.ColNetSales: "20",
	})
	s.add(domain.QueryChannelSales,
		map[string]any{
			extract.ColProductTitle: "Shirt", extract.ColSalesChannel: "TikTok", extract.ColOrders: "3",
			extract.ColQuantityReturned: "0", extract.ColNetSales: "150", extract.ColAverageOrderValue: "50",
		},
		map[string]any{
			extract.ColProductTitle: "Scarf", extract.ColSalesChannel: "TikTok", extract.ColOrders: "1",
			extract.ColQuantityReturned: "1", extract.ColNetSales: "10", extract.ColAverageOrderValue: "10",
		},
	)
	inventoryRow := func(sku, sold, ending string) map[string]any {
		return map[string]any{
			extract.ColProductTitle: "Shirt", extract.ColVariantTitle: sku, extract.ColSKU: sku,
			extract.ColUnitsSold: sold, extract.ColEndingUnits: ending,
			extract.ColDaysOutOfStock: "0", extract.ColSellThroughRate: "0.5",
		}
	}
	s.add(domain.QueryChannelInventory, inventoryRow("S-S", "2", "0"), inventoryRow("S-M", "4", "3"))
	return s
}

func TestRunner_Snapshot(t *testing.T) {
	// Given a session answering every snapshot query
	ctx := context.Background()
	session := snapshotSession()
	sink := new(MockSink)
	sink.On("Write", mock.Anything, mock.Anything, mock.Anything, domain.WriteReplace).Return(nil)
	sleeper := &recordedSleep{}

	runner := NewRunner(&fakeOpener{session: session}, sink, DefaultSettings(), WithSleep(sleeper.sleep))

	// When running the snapshot
	res, err := runner.Run(ctx, Snapshot, Params{RunID: "run-1", AsOf: date(2025, 3, 10)})
	require.NoError(t, err)

	// Then three datasets are written and the session is released
	assert.Equal(t, 1, session.closed)
	require.Len(t, res.Outputs, 3)
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, []time.Duration{10 * time.Minute}, sleeper.calls)
	sink.AssertNumberOfCalls(t, "Write", 3)

	top := sink.table(TopSKUData)
	require.NotNil(t, top)
	require.Equal(t, 2, top.Len())
	a, b := top.Row(0), top.Row(1)
	assert.Equal(t, "A", a.String(extract.ColSKU))
	assert.Equal(t, 80.0, a.Float("net_sales_14days"))
	assert.Equal(t, int64(5), a.Int(extract.ColInventorySold60d))
	assert.Equal(t, int64(1), a.Int("active_weeks"))
	assert.Equal(t, int64(1), a.Int("out_of_stock_weeks"))
	assert.Equal(t, 3.0, a.Float("avg_weekly_sales"))
	assert.Equal(t, "B", b.String(extract.ColSKU))
	assert.Equal(t, int64(0), b.Value(extract.ColInventorySold60d))
	assert.Equal(t, 0.0, b.Value("avg_weekly_sales"))
	assert.Equal(t, 20.0, b.Float(extract.ColSocialNetSales))

	channel := sink.table(ChannelSalesData)
	require.NotNil(t, channel)
	assert.Equal(t, ChannelSalesColumns, channel.ColumnNames())
	shirt := channel.Row(0)
	assert.Equal(t, int64(2), shirt.Int("active_sku_count"))
	assert.Equal(t, int64(1), shirt.Int("out_of_stock_sku"))
	assert.Equal(t, int64(6), shirt.Int(extract.ColUnitsSold))
	assert.Nil(t, channel.Row(1).Value("active_sku_count"))

	outOfStock := sink.table(OutOfStockData)
	require.NotNil(t, outOfStock)
	require.Equal(t, 1, outOfStock.Len())
	assert.Equal(t, "S-S", outOfStock.Row(0).String(extract.ColSKU))

	inventoryReq := session.requested(domain.QuerySkuInventory)
	require.Len(t, inventoryReq, 1)
	assert.Equal(t, []string{"A", "B"}, inventoryReq[0].SKUs)
	assert.Equal(t, date(2025, 1, 9), inventoryReq[0].Since)

	channelReq := session.requested(domain.QueryChannelInventory)
	require.Len(t, channelReq, 1)
	assert.Equal(t, []string{"Scarf", "Shirt"}, channelReq[0].Products)
	assert.Equal(t, date(2025, 1, 1), channelReq[0].Since)
	assert.Equal(t, date(2025, 2, 28), channelReq[0].Until)

	top10 := session.requested(domain.QueryTopSellers)
	require.Len(t, top10, 1)
	assert.Equal(t, 10, top10[0].Limit)
}

func TestRunner_SnapshotBatchesWeeklyInventory(t *testing.T) {
	// Given two SKUs and a batch size of one
	session := snapshotSession()
	sink := new(MockSink)
	sink.On("Write", mock.Anything, mock.Anything, mock.Anything, domain.WriteReplace).Return(nil)
	sleeper := &recordedSleep{}

	settings := DefaultSettings()
	settings.SKUBatchSize = 1
	runner := NewRunner(&fakeOpener{session: session}, sink, settings, WithSleep(sleeper.sleep))

	// When running the snapshot
	_, err := runner.Run(context.Background(), Snapshot, Params{AsOf: date(2025, 3, 10)})
	require.NoError(t, err)

	// Then weekly inventory is queried per batch with a pause before the second one
	batches := session.requested(domain.QueryWeeklyInventory)
	require.Len(t, batches, 2)
	assert.Equal(t, []string{"A"}, batches[0].SKUs)
	assert.Equal(t, []string{"B"}, batches[1].SKUs)
	assert.Equal(t, batches[0].Since, batches[1].Since)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Minute}, sleeper.calls)

	inventory := session.requested(domain.QuerySkuInventory)
	require.Len(t, inventory, 1)
	assert.Equal(t, []string{"A", "B"}, inventory[0].SKUs)
}

func TestRunner_SnapshotSkipsKeyedQueriesWithoutKeys(t *testing.T) {
	session := newFakeSession()
	sink := new(MockSink)
	sink.On("Write", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	settings := DefaultSettings()
	settings.RateLimit.Enabled = false
	runner := NewRunner(&fakeOpener{session: session}, sink, settings)

	_, err := runner.Run(context.Background(), Snapshot, Params{AsOf: date(2025, 3, 10)})
	require.NoError(t, err)

	assert.Empty(t, session.requested(domain.QuerySkuInventory))
	assert.Empty(t, session.requested(domain.QueryWeeklyInventory))
	assert.Empty(t, session.requested(domain.QueryChannelInventory))
	assert.Equal(t, 0, sink.table(TopSKUData).Len())
}

func TestRunner_FailureReleasesSessionAndWritesNothing(t *testing.T) {
	// Given an inventory result missing a required field
	session := snapshotSession()
	session.results[domain.QuerySkuInventory] = []*domain.RawResultSet{{
		Rows: []map[string]any{{extract.ColSKU: "A", extract.ColUnitsSold: "5"}},
	}}
	sink := new(MockSink)
	runner := NewRunner(&fakeOpener{session: session}, sink, DefaultSettings(), WithSleep((&recordedSleep{}).sleep))

	// When running
	res, err := runner.Run(context.Background(), Snapshot, Params{AsOf: date(2025, 3, 10)})

	// Then the schema error surfaces, the session is closed and nothing is written
	assert.Nil(t, res)
	var schemaErr *extract.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, extract.ColEndingUnits, schemaErr.Field)
	assert.Equal(t, 1, session.closed)
	sink.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunner_QueryErrorPropagates(t *testing.T) {
	session := newFakeSession()
	boom := errors.New("throttled")
	session.errs[domain.QueryMonthlySales] = boom
	sink := new(MockSink)

	runner := NewRunner(&fakeOpener{session: session}, sink, DefaultSettings())
	_, err := runner.Run(context.Background(), Backfill, Params{AsOf: date(2025, 11, 15)})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, session.closed)
	assert.Len(t, session.requests, 1)
}

func TestRunner_Weekly(t *testing.T) {
	// Given three SKUs sold last year and a batch size of two
	session := newFakeSession()
	yearlyRow := func(product, variant, sku string) map[string]any {
		return map[string]any{
			extract.ColProductTitle: product, extract.ColVariantTitle: variant, extract.ColSKU: sku,
			extract.ColUnitsSold: "1", extract.ColEndingUnits: "1",
		}
	}
	session.add(domain.QueryYearlyInventory,
		yearlyRow("Shirt", "M", "C"),
		yearlyRow("Hat", "One", "A"),
		yearlyRow("Shirt", "S", "B"),
	)
	session.add(domain.QueryWeeklyInventory,
		weekRow("A", "2024-01-01", "2", "5"),
		weekRow("B", "2024-01-01", "0", "-1"),
	)
	session.add(domain.QueryWeeklyInventory, weekRow("C", "2024-01-01", "0", "0"))

	sink := new(MockSink)
	sink.On("Write", mock.Anything, mock.Anything, WeeklyInventoryData, domain.WriteReplace).Return(nil)
	sleeper := &recordedSleep{}

	settings := DefaultSettings()
	settings.SKUBatchSize = 2
	runner := NewRunner(&fakeOpener{session: session}, sink, settings, WithSleep(sleeper.sleep))

	// When running the weekly load
	res, err := runner.Run(context.Background(), Weekly, Params{AsOf: date(2025, 6, 1)})
	require.NoError(t, err)

	// Then SKUs are queried in sorted batches with one pause between them
	batches := session.requested(domain.QueryWeeklyInventory)
	require.Len(t, batches, 2)
	assert.Equal(t, []string{"A", "B"}, batches[0].SKUs)
	assert.Equal(t, []string{"C"}, batches[1].SKUs)
	assert.Equal(t, date(2024, 1, 1), batches[0].Since)
	assert.Equal(t, date(2024, 12, 31), batches[0].Until)
	assert.Equal(t, []time.Duration{10 * time.Second}, sleeper.calls)

	out := sink.table(WeeklyInventoryData)
	require.NotNil(t, out)
	assert.Equal(t, WeeklyInventoryColumns, out.ColumnNames())
	require.Equal(t, 3, out.Len())
	assert.Equal(t, "Hat", out.Row(0).String(extract.ColProductTitle))
	assert.Equal(t, int64(1), out.Row(0).Int("active_weeks"))
	assert.Equal(t, int64(0), out.Row(1).Int("out_of_stock_weeks"))
	assert.Equal(t, int64(1), out.Row(2).Int("out_of_stock_weeks"))
	assert.Equal(t, CalendarYear(2024), res.Window)
}

func TestRunner_WeeklyLegacyPolicy(t *testing.T) {
	session := newFakeSession()
	session.add(domain.QueryYearlyInventory, map[string]any{
		extract.ColProductTitle: "Hat", extract.ColVariantTitle: "One", extract.ColSKU: "A",
		extract.ColUnitsSold: "1", extract.ColEndingUnits: "1",
	})
	session.add(domain.QueryWeeklyInventory,
		weekRow("A", "2024-01-01", "0", "0"),
		weekRow("A", "2024-01-08", "0", "-2"),
	)
	sink := new(MockSink)
	sink.On("Write", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	settings := DefaultSettings()
	settings.OutOfStockPolicy = "negative"
	runner := NewRunner(&fakeOpener{session: session}, sink, settings)

	_, err := runner.Run(context.Background(), Weekly, Params{AsOf: date(2025, 6, 1), Year: 2024})
	require.NoError(t, err)

	out := sink.table(WeeklyInventoryData)
	values, err := out.ColumnValues("out_of_stock_weeks")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(0), int64(1)}, values)
}

func monthRow(sku, month, items, netSales string) map[string]any {
	return map[string]any{
		extract.ColProductTitle: "Shirt", extract.ColVariantTitle: "M", extract.ColSKU: sku,
		extract.ColMonth: month, extract.ColNetItemsSold: items, extract.ColGrossSales: netSales,
		extract.ColDiscounts: "0", "returns": "0", extract.ColOrders: items,
		extract.ColQuantityReturned: "0", extract.ColNetSales: netSales, extract.ColAverageOrderValue: "10",
	}
}

// windowedSales answers monthly sales queries from a fixed pool, keeping the
// rows whose month falls inside the requested window.
type windowedSales struct {
	fakeSession
	pool []map[string]any
}

func (s *windowedSales) Query(_ context.Context, req domain.QueryRequest) (*domain.RawResultSet, error) {
	s.requests = append(s.requests, req)
	var rows []map[string]any
	for _, row := range s.pool {
		month, err := time.Parse(dataset.DateLayout, row[extract.ColMonth].(string))
		if err != nil {
			return nil, err
		}
		if !month.Before(req.Since) && !month.After(req.Until) {
			rows = append(rows, row)
		}
	}
	return &domain.RawResultSet{Rows: rows}, nil
}

func TestRunner_Backfill(t *testing.T) {
	// Given monthly sales spread over the three windows of the year
	session := newFakeSession()
	session.add(domain.QueryMonthlySales, monthRow("S-M", "2025-02-01", "2", "20"))
	session.add(domain.QueryMonthlySales)
	session.add(domain.QueryMonthlySales, monthRow("S-M", "2025-10-01", "1", "10"))

	sink := new(MockSink)
	sink.On("Write", mock.Anything, mock.Anything, MonthlySalesData, domain.WriteReplace).Return(nil)
	runner := NewRunner(&fakeOpener{session: session}, sink, DefaultSettings())

	// When backfilling from mid November
	res, err := runner.Run(context.Background(), Backfill, Params{AsOf: date(2025, 11, 15)})
	require.NoError(t, err)

	// Then the year is queried in three windows and fully expanded
	windows := session.requested(domain.QueryMonthlySales)
	require.Len(t, windows, 3)
	assert.Equal(t, date(2025, 1, 1), windows[0].Since)
	assert.Equal(t, date(2025, 4, 30), windows[0].Until)
	assert.Equal(t, date(2025, 5, 1), windows[1].Since)
	assert.Equal(t, date(2025, 12, 31), windows[2].Until)
	assert.Equal(t, CalendarYear(2025), res.Window)

	out := sink.table(MonthlySalesData)
	require.NotNil(t, out)
	assert.Equal(t, MonthlySalesColumns, out.ColumnNames())
	require.Equal(t, 12, out.Len())
	assert.Equal(t, date(2025, 1, 1), out.Row(0).Date(extract.ColMonth))
	assert.Equal(t, int64(0), out.Row(0).Int(extract.ColNetItemsSold))
	assert.Equal(t, int64(2), out.Row(1).Int(extract.ColNetItemsSold))
	assert.Equal(t, 10.0, out.Row(9).Float(extract.ColNetSales))
}

func TestRunner_BackfillExplicitYear(t *testing.T) {
	// Given sales in the requested year and in the as-of year
	session := &windowedSales{fakeSession: *newFakeSession(), pool: []map[string]any{
		monthRow("S-M", "2024-03-01", "4", "40"),
		monthRow("S-M", "2024-12-01", "9", "90"),
		monthRow("S-M", "2025-06-01", "7", "70"),
	}}
	sink := new(MockSink)
	sink.On("Write", mock.Anything, mock.Anything, MonthlySalesData, domain.WriteReplace).Return(nil)
	runner := NewRunner(&fakeOpener{session: session}, sink, DefaultSettings())

	// When backfilling 2024 with an as-of date in 2025
	res, err := runner.Run(context.Background(), Backfill, Params{AsOf: date(2025, 11, 15), Year: 2024})
	require.NoError(t, err)

	// Then only 2024 is queried and both of its months keep their values
	windows := session.requested(domain.QueryMonthlySales)
	require.Len(t, windows, 3)
	assert.Equal(t, date(2024, 1, 1), windows[0].Since)
	assert.Equal(t, date(2024, 12, 31), windows[2].Until)
	assert.Equal(t, CalendarYear(2024), res.Window)

	out := sink.table(MonthlySalesData)
	require.NotNil(t, out)
	require.Equal(t, 12, out.Len())
	assert.Equal(t, date(2024, 1, 1), out.Row(0).Date(extract.ColMonth))
	assert.Equal(t, int64(4), out.Row(2).Int(extract.ColNetItemsSold))
	assert.Equal(t, int64(9), out.Row(11).Int(extract.ColNetItemsSold))
}

func TestRunner_BackfillKeepsQueriedTotals(t *testing.T) {
	pool := []map[string]any{
		monthRow("S-M", "2023-12-01", "5", "50"),
		monthRow("S-M", "2024-01-01", "1", "10"),
		monthRow("S-M", "2024-05-01", "2", "20"),
		monthRow("S-L", "2024-09-01", "3", "30"),
		monthRow("S-M", "2024-12-01", "4", "40"),
		monthRow("S-L", "2025-01-01", "6", "60"),
		monthRow("S-M", "2025-04-01", "8", "80"),
		monthRow("S-L", "2025-12-01", "16", "160"),
	}
	tests := []struct {
		name string
		asOf time.Time
		year int
	}{
		{name: "as-of year", asOf: date(2025, 11, 15)},
		{name: "january as-of falls back a year", asOf: date(2025, 1, 10)},
		{name: "explicit earlier year", asOf: date(2025, 11, 15), year: 2024},
		{name: "explicit later year", asOf: date(2024, 6, 1), year: 2025},
		{name: "year without sales", asOf: date(2025, 11, 15), year: 2022},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given a session that answers every window from the pool
			session := &windowedSales{fakeSession: *newFakeSession(), pool: pool}
			sink := new(MockSink)
			sink.On("Write", mock.Anything, mock.Anything, MonthlySalesData, domain.WriteReplace).Return(nil)
			runner := NewRunner(&fakeOpener{session: session}, sink, DefaultSettings())

			// When backfilling
			_, err := runner.Run(context.Background(), Backfill, Params{AsOf: tt.asOf, Year: tt.year})
			require.NoError(t, err)

			// Then the output total equals the total of the rows inside the queried windows
			windows := session.requested(domain.QueryMonthlySales)
			inside := func(month time.Time) bool {
				for _, w := range windows {
					if !month.Before(w.Since) && !month.After(w.Until) {
						return true
					}
				}
				return false
			}
			var want int64
			for _, row := range pool {
				month, err := time.Parse(dataset.DateLayout, row[extract.ColMonth].(string))
				require.NoError(t, err)
				if inside(month) {
					var items int64
					_, err := fmt.Sscan(row[extract.ColNetItemsSold].(string), &items)
					require.NoError(t, err)
					want += items
				}
			}

			out := sink.table(MonthlySalesData)
			require.NotNil(t, out)
			var got int64
			for i := 0; i < out.Len(); i++ {
				row := out.Row(i)
				got += row.Int(extract.ColNetItemsSold)
				// And no output month lies outside the queried windows
				assert.True(t, inside(row.Date(extract.ColMonth)), "month %s outside queried windows",
					row.Date(extract.ColMonth).Format(dataset.DateLayout))
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestRunner_Errors(t *testing.T) {
	sink := new(MockSink)

	t.Run("unknown pipeline", func(t *testing.T) {
		runner := NewRunner(&fakeOpener{session: newFakeSession()}, sink, DefaultSettings())
		_, err := runner.Run(context.Background(), "hourly", Params{AsOf: date(2025, 1, 1)})
		assert.Error(t, err)
	})

	t.Run("missing as-of", func(t *testing.T) {
		session := newFakeSession()
		runner := NewRunner(&fakeOpener{session: session}, sink, DefaultSettings())
		_, err := runner.Run(context.Background(), Backfill, Params{})
		assert.Error(t, err)
		assert.Zero(t, session.closed)
	})

	t.Run("open fails", func(t *testing.T) {
		runner := NewRunner(&fakeOpener{err: errors.New("bad credentials")}, sink, DefaultSettings())
		_, err := runner.Run(context.Background(), Backfill, Params{AsOf: date(2025, 1, 1)})
		assert.ErrorContains(t, err, "bad credentials")
	})

	t.Run("write fails", func(t *testing.T) {
		session := newFakeSession()
		failing := new(MockSink)
		failing.On("Write", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("quota"))
		runner := NewRunner(&fakeOpener{session: session}, failing, DefaultSettings())

		_, err := runner.Run(context.Background(), Backfill, Params{AsOf: date(2025, 11, 15)})
		assert.ErrorContains(t, err, "quota")
		assert.Equal(t, 1, session.closed)
	})

	t.Run("cancelled during delay", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		session := snapshotSession()
		runner := NewRunner(&fakeOpener{session: session}, sink, DefaultSettings())

		_, err := runner.Run(ctx, Snapshot, Params{AsOf: date(2025, 3, 10)})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, session.closed)
	})
}
