// Package pipeline sequences commerce queries through extraction,
// aggregation and consolidation and hands the results to a sink.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/de-tools/commerce-atlas/pkg/dataset"
	"github.com/de-tools/commerce-atlas/pkg/etl/extract"
	"github.com/de-tools/commerce-atlas/pkg/etl/metrics"
	"github.com/de-tools/commerce-atlas/pkg/models/domain"
	"github.com/rs/zerolog"
)

const (
	Snapshot = "snapshot"
	Weekly   = "weekly"
	Backfill = "backfill"
)

// Names lists the pipelines a Runner can run.
var Names = []string{Snapshot, Weekly, Backfill}

// Session answers commerce queries for the duration of one run.
type Session interface {
	Query(ctx context.Context, req domain.QueryRequest) (*domain.RawResultSet, error)
	Close() error
}

type SessionOpener interface {
	Open(ctx context.Context) (Session, error)
}

// Sink persists a finished dataset under a destination name.
type Sink interface {
	Write(ctx context.Context, t *dataset.Table, destination string, mode domain.WriteMode) error
}

// Delay is a pause between query stages.
type Delay struct {
	Enabled  bool          `mapstructure:"enabled"`
	Duration time.Duration `mapstructure:"duration"`
}

type Settings struct {
	Channels          []string
	TopSellersLimit   int
	ChannelSalesLimit int
	RateLimit         Delay
	SKUBatchSize      int
	BatchDelay        Delay
	OutOfStockPolicy  metrics.OutOfStockPolicy
	WriteMode         domain.WriteMode
}

func DefaultSettings() Settings {
	return Settings{
		Channels:          []string{"TikTok", "Facebook & Instagram"},
		TopSellersLimit:   10,
		ChannelSalesLimit: 5,
		RateLimit:         Delay{Enabled: true, Duration: 10 * time.Minute},
		SKUBatchSize:      18,
		BatchDelay:        Delay{Enabled: true, Duration: 10 * time.Second},
		OutOfStockPolicy:  metrics.OutOfStockAtZero,
		WriteMode:         domain.WriteReplace,
	}
}

// Params are the per-invocation inputs of a run.
type Params struct {
	RunID string
	AsOf  time.Time
	// Year overrides the calendar year of the weekly and backfill pipelines.
	Year int
}

type Output struct {
	Destination string
	Table       *dataset.Table
}

type Result struct {
	Pipeline string
	RunID    string
	AsOf     time.Time
	Window   Window
	Outputs  []Output
	Elapsed  time.Duration
}

type Option func(*Runner)

// WithSleep replaces the function used to wait between query stages.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(r *Runner) { r.sleep = sleep }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

type Runner struct {
	opener   SessionOpener
	sink     Sink
	settings Settings
	sleep    func(context.Context, time.Duration) error
	now      func() time.Time
}

func NewRunner(opener SessionOpener, sink Sink, settings Settings, opts ...Option) *Runner {
	r := &Runner{
		opener:   opener,
		sink:     sink,
		settings: settings,
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type stage func(ctx context.Context, s Session, p Params) (Window, []Output, error)

// Run executes the named pipeline.
func (r *Runner) Run(ctx context.Context, name string, p Params) (*Result, error) {
	switch name {
	case Snapshot:
		return r.run(ctx, name, p, r.snapshot)
	case Weekly:
		return r.run(ctx, name, p, r.weekly)
	case Backfill:
		return r.run(ctx, name, p, r.backfill)
	}
	return nil, fmt.Errorf("unknown pipeline %q", name)
}

func (r *Runner) run(ctx context.Context, name string, p Params, build stage) (*Result, error) {
	if p.AsOf.IsZero() {
		return nil, fmt.Errorf("%s: as-of date is required", name)
	}
	p.AsOf = civil(p.AsOf)

	logger := zerolog.Ctx(ctx).With().Str("pipeline", name).Logger()
	ctx = logger.WithContext(ctx)
	started := r.now()

	logger.Info().Time("as_of", p.AsOf).Msg("pipeline started")

	window, outputs, err := r.collect(ctx, p, build)
	if err != nil {
		logger.Error().Err(err).Msg("pipeline failed")
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	mode := r.settings.WriteMode
	if mode == "" {
		mode = domain.WriteReplace
	}
	for _, o := range outputs {
		if err := r.sink.Write(ctx, o.Table, o.Destination, mode); err != nil {
			logger.Error().Err(err).Str("destination", o.Destination).Msg("write failed")
			return nil, fmt.Errorf("%s: write %s: %w", name, o.Destination, err)
		}
		logger.Info().
			Str("destination", o.Destination).
			Int("rows", o.Table.Len()).
			Str("mode", string(mode)).
			Msg("dataset written")
	}

	res := &Result{
		Pipeline: name,
		RunID:    p.RunID,
		AsOf:     p.AsOf,
		Window:   window,
		Outputs:  outputs,
		Elapsed:  r.now().Sub(started),
	}
	logger.Info().Dur("elapsed", res.Elapsed).Msg("pipeline finished")
	return res, nil
}

// collect computes every output while the session is open. Nothing is
// written until the session has been released.
func (r *Runner) collect(ctx context.Context, p Params, build stage) (Window, []Output, error) {
	session, err := r.opener.Open(ctx)
	if err != nil {
		return Window{}, nil, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to close session")
		}
	}()

	return build(ctx, session, p)
}

func (r *Runner) fetch(ctx context.Context, s Session, req domain.QueryRequest, schema extract.Schema) (*dataset.Table, error) {
	rs, err := s.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", req.Kind, err)
	}
	t, err := extract.Extract(rs, schema)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", req.Kind, err)
	}
	zerolog.Ctx(ctx).Info().
		Str("query", string(req.Kind)).
		Int("rows", t.Len()).
		Msg("query completed")
	return t, nil
}

// fetchFor skips the query when there is nothing to filter on.
func (r *Runner) fetchFor(ctx context.Context, s Session, keys []string, req domain.QueryRequest, schema extract.Schema) (*dataset.Table, error) {
	if len(keys) == 0 {
		zerolog.Ctx(ctx).Info().Str("query", string(req.Kind)).Msg("no keys to query, skipping")
		return dataset.Empty(schema.Dataset, schema.Columns())
	}
	return r.fetch(ctx, s, req, schema)
}

// fetchBatched issues req once per SKU batch, pausing between batches, and
// concatenates the results.
func (r *Runner) fetchBatched(ctx context.Context, s Session, skus []string, req domain.QueryRequest, schema extract.Schema) (*dataset.Table, error) {
	if len(skus) == 0 {
		return r.fetchFor(ctx, s, skus, req, schema)
	}
	size := r.settings.SKUBatchSize
	if size <= 0 {
		size = len(skus)
	}

	var parts []*dataset.Table
	for start := 0; start < len(skus); start += size {
		if start > 0 {
			if err := r.wait(ctx, r.settings.BatchDelay, "pausing between SKU batches"); err != nil {
				return nil, err
			}
		}
		batch := skus[start:min(start+size, len(skus))]
		req.SKUs = batch

		t, err := r.fetch(ctx, s, req, schema)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", start/size, err)
		}
		parts = append(parts, t)

		zerolog.Ctx(ctx).Debug().
			Str("query", string(req.Kind)).
			Int("batch", start/size).
			Int("skus", len(batch)).
			Int("rows", t.Len()).
			Msg("sku batch loaded")
	}
	return dataset.Concat(schema.Dataset, parts...)
}

func (r *Runner) wait(ctx context.Context, d Delay, reason string) error {
	if !d.Enabled || d.Duration <= 0 {
		return nil
	}
	zerolog.Ctx(ctx).Info().Dur("delay", d.Duration).Msg(reason)
	if err := r.sleep(ctx, d.Duration); err != nil {
		return fmt.Errorf("%s: %w", reason, err)
	}
	return nil
}
