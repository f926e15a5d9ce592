// Package telemetry records batch run metrics and pushes them to a
// Prometheus Pushgateway at the end of a run.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/de-tools/commerce-atlas/pkg/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog"
)

type Config struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

const DefaultJob = "commerce_atlas"

// Recorder holds the metrics of one pipeline run.
type Recorder struct {
	cfg      Config
	pipeline string
	runID    string
	reg      *prometheus.Registry

	duration    prometheus.Gauge
	rows        *prometheus.GaugeVec
	lastSuccess prometheus.Gauge
	failures    prometheus.Counter
}

func NewRecorder(cfg Config, pipelineName, runID string) *Recorder {
	if cfg.Job == "" {
		cfg.Job = DefaultJob
	}

	r := &Recorder{
		cfg:      cfg,
		pipeline: pipelineName,
		runID:    runID,
		reg:      prometheus.NewRegistry(),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "atlas_run_duration_seconds",
			Help: "Wall time of the last pipeline run.",
		}),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "atlas_rows_written",
			Help: "Rows written per destination by the last run.",
		}, []string{"destination"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "atlas_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_run_failures_total",
			Help: "Failed pipeline runs.",
		}),
	}
	r.reg.MustRegister(r.duration, r.rows, r.lastSuccess, r.failures)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Succeeded records a finished run.
func (r *Recorder) Succeeded(res *pipeline.Result, at time.Time) {
	r.duration.Set(res.Elapsed.Seconds())
	for _, out := range res.Outputs {
		r.rows.WithLabelValues(out.Destination).Set(float64(out.Table.Len()))
	}
	r.lastSuccess.Set(float64(at.Unix()))
}

func (r *Recorder) Failed(elapsed time.Duration) {
	r.duration.Set(elapsed.Seconds())
	r.failures.Inc()
}

// Push sends the registry to the configured gateway. Without a gateway URL
// it does nothing.
func (r *Recorder) Push(ctx context.Context) error {
	if r.cfg.PushgatewayURL == "" {
		return nil
	}

	err := push.New(r.cfg.PushgatewayURL, r.cfg.Job).
		Gatherer(r.reg).
		Grouping("pipeline", r.pipeline).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", r.cfg.PushgatewayURL, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("gateway", r.cfg.PushgatewayURL).
		Str("run_id", r.runID).
		Msg("metrics pushed")
	return nil
}
