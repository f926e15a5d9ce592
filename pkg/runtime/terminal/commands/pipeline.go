package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/de-tools/commerce-atlas/pkg/adapters"
	"github.com/de-tools/commerce-atlas/pkg/dataset"
	"github.com/de-tools/commerce-atlas/pkg/models/domain"
	"github.com/de-tools/commerce-atlas/pkg/pipeline"
	"github.com/de-tools/commerce-atlas/pkg/services/config"
	"github.com/de-tools/commerce-atlas/pkg/services/telemetry"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type sink interface {
	pipeline.Sink
	Close() error
}

type PipelineCmd struct {
	name       string
	configPath *string
	output     string
	outputDir  string
	asOf       string
	year       int
	deps       *Deps
}

func NewPipelineCmd(name, short string, configPath *string, deps *Deps) *cobra.Command {
	pc := &PipelineCmd{name: name, configPath: configPath, deps: deps}
	cmd := &cobra.Command{
		Use:          name,
		Short:        short,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         pc.run,
	}

	cmd.Flags().StringVar(&pc.output, "output", string(domain.OutputWarehouse), "Where to write results (warehouse or csv)")
	cmd.Flags().StringVar(&pc.outputDir, "output-dir", "", "Directory or s3://bucket/prefix for csv output")
	cmd.Flags().StringVar(&pc.asOf, "as-of", "", "Run date as YYYY-MM-DD (default today)")
	if name != pipeline.Snapshot {
		cmd.Flags().IntVar(&pc.year, "year", 0, "Calendar year to cover")
	}

	return cmd
}

func (pc *PipelineCmd) run(cmd *cobra.Command, _ []string) error {
	envErr := godotenv.Load()
	if errors.Is(envErr, os.ErrNotExist) {
		envErr = nil
	}

	cfg, err := pc.deps.LoadConfig(*pc.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.Mode = pc.output
	}
	if pc.outputDir != "" {
		cfg.Output.Dir = pc.outputDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	settings, err := cfg.Pipeline.Settings()
	if err != nil {
		return err
	}
	asOf, err := pc.runDate()
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg.Log, pc.name, pc.deps.Console)
	if err != nil {
		return err
	}
	defer closeLog()
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("failed to load .env file")
	}

	runID := uuid.NewString()
	logger = logger.With().Str("run_id", runID).Logger()
	ctx := logger.WithContext(cmd.Context())

	if err := pc.execute(ctx, cfg, settings, runID, asOf); err != nil {
		logger.Error().Err(err).Str("pipeline", pc.name).Msg("run failed")
		return err
	}
	return nil
}

func (pc *PipelineCmd) runDate() (time.Time, error) {
	if pc.asOf == "" {
		y, m, d := pc.deps.Now().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(dataset.DateLayout, pc.asOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: %w", pc.asOf, err)
	}
	return t, nil
}

func (pc *PipelineCmd) execute(ctx context.Context, cfg *config.Config, settings pipeline.Settings, runID string, asOf time.Time) error {
	logger := zerolog.Ctx(ctx)
	recorder := telemetry.NewRecorder(cfg.Metrics, pc.name, runID)
	start := pc.deps.Now()

	res, err := pc.runPipeline(ctx, cfg, settings, pipeline.Params{RunID: runID, AsOf: asOf, Year: pc.year})
	if err != nil {
		recorder.Failed(pc.deps.Now().Sub(start))
		if perr := recorder.Push(ctx); perr != nil {
			logger.Warn().Err(perr).Msg("failed to push metrics")
		}
		return err
	}

	recorder.Succeeded(res.result, pc.deps.Now())
	if err := recorder.Push(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to push metrics")
	}

	report := adapters.MapResultToReport(res.result, res.mode, res.locate)
	return pc.deps.Reporter.Handle(report)
}

type runOutcome struct {
	result *pipeline.Result
	mode   domain.OutputMode
	locate func(string) string
}

func (pc *PipelineCmd) runPipeline(ctx context.Context, cfg *config.Config, settings pipeline.Settings, p pipeline.Params) (*runOutcome, error) {
	opener, err := pc.deps.Sessions(cfg.Shop, *zerolog.Ctx(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create shop client: %w", err)
	}

	mode, err := domain.ParseOutputMode(cfg.Output.Mode)
	if err != nil {
		return nil, err
	}
	out, locate, err := pc.openSink(ctx, cfg, mode)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := out.Close(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to close output")
		}
	}()

	runner := pipeline.NewRunner(opener, out, settings, pc.deps.RunnerOptions...)
	res, err := runner.Run(ctx, pc.name, p)
	if err != nil {
		return nil, err
	}
	return &runOutcome{result: res, mode: mode, locate: locate}, nil
}

func (pc *PipelineCmd) openSink(ctx context.Context, cfg *config.Config, mode domain.OutputMode) (sink, func(string) string, error) {
	if mode == domain.OutputCSV {
		w, err := pc.deps.Files(ctx, cfg.Output.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open csv output: %w", err)
		}
		return w, w.Location, nil
	}

	wc, err := cfg.WarehouseConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	w, err := pc.deps.Registry.Create(ctx, wc.Platform, wc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s warehouse: %w", wc.Platform, err)
	}

	prefix := wc.Schema
	if wc.Platform == "bigquery" {
		prefix = wc.BigQuery.ProjectID + "." + wc.BigQuery.DatasetID
	}
	locate := func(table string) string {
		if prefix == "" {
			return table
		}
		return prefix + "." + table
	}
	return w, locate, nil
}
