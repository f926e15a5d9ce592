package warehouse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/de-tools/commerce-atlas/pkg/dataset"
	"github.com/de-tools/commerce-atlas/pkg/models/domain"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type BigQueryConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	DatasetID       string `mapstructure:"dataset_id"`
	Location        string `mapstructure:"location"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// BigQueryWriter loads tables with CSV load jobs and creates the dataset on
// first use.
type BigQueryWriter struct {
	client   *bigquery.Client
	dataset  string
	location string
}

func OpenBigQuery(ctx context.Context, cfg Config) (Writer, error) {
	bq := cfg.BigQuery
	if bq.ProjectID == "" || bq.DatasetID == "" {
		return nil, fmt.Errorf("bigquery: project_id and dataset_id are required")
	}
	var opts []option.ClientOption
	if bq.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(bq.CredentialsFile))
	}
	client, err := bigquery.NewClient(ctx, bq.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	location := bq.Location
	if location == "" {
		location = "US"
	}
	return &BigQueryWriter{client: client, dataset: bq.DatasetID, location: location}, nil
}

func (w *BigQueryWriter) Close() error {
	return w.client.Close()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

var bigQueryTypes = map[dataset.ColumnType]bigquery.FieldType{
	dataset.Int:    bigquery.IntegerFieldType,
	dataset.Float:  bigquery.FloatFieldType,
	dataset.Date:   bigquery.DateFieldType,
	dataset.String: bigquery.StringFieldType,
	dataset.Bool:   bigquery.BooleanFieldType,
}

func bigQuerySchema(t *dataset.Table) bigquery.Schema {
	schema := make(bigquery.Schema, 0, len(t.Columns()))
	for _, c := range t.Columns() {
		schema = append(schema, &bigquery.FieldSchema{Name: c.Name, Type: bigQueryTypes[c.Type]})
	}
	return schema
}

func (w *BigQueryWriter) ensureDataset(ctx context.Context) (*bigquery.Dataset, error) {
	ds := w.client.Dataset(w.dataset)
	_, err := ds.Metadata(ctx)
	if err == nil {
		return ds, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("dataset %s: %w", w.dataset, err)
	}
	if err := ds.Create(ctx, &bigquery.DatasetMetadata{Location: w.location}); err != nil {
		return nil, fmt.Errorf("create dataset %s: %w", w.dataset, err)
	}
	zerolog.Ctx(ctx).Info().Str("dataset", w.dataset).Str("location", w.location).Msg("created bigquery dataset")
	return ds, nil
}

func (w *BigQueryWriter) Write(ctx context.Context, t *dataset.Table, table string, mode domain.WriteMode) error {
	logger := zerolog.Ctx(ctx).With().Str("warehouse", "bigquery").Str("table", table).Logger()

	ds, err := w.ensureDataset(ctx)
	if err != nil {
		return err
	}
	tbl := ds.Table(table)

	exists := true
	if _, err := tbl.Metadata(ctx); err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("table %s: %w", table, err)
		}
		exists = false
	}

	switch mode {
	case domain.WriteFail:
		if exists {
			return fmt.Errorf("%s: %w", table, ErrTableExists)
		}
	case domain.WriteReplace:
		if exists {
			if err := tbl.Delete(ctx); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
			exists = false
		}
	case domain.WriteAppend:
	default:
		return fmt.Errorf("unsupported write mode %q", mode)
	}

	var buf bytes.Buffer
	if err := dataset.WriteCSV(&buf, t, true); err != nil {
		return err
	}
	src := bigquery.NewReaderSource(&buf)
	src.SourceFormat = bigquery.CSV
	src.SkipLeadingRows = 1
	if !exists {
		src.Schema = bigQuerySchema(t)
	}

	loader := tbl.LoaderFrom(src)
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.WriteDisposition = bigquery.WriteAppend
	if !exists {
		loader.WriteDisposition = bigquery.WriteTruncate
	}

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", table, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", table, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("load %s: %w", table, err)
	}

	meta, err := tbl.Metadata(ctx)
	if err != nil {
		return fmt.Errorf("table %s: %w", table, err)
	}
	logger.Info().Int("rows", t.Len()).Uint64("table_rows", meta.NumRows).Msg("table loaded")
	return nil
}
