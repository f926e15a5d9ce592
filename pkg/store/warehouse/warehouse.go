// Package warehouse loads finished datasets into warehouse tables.
package warehouse

import (
	"context"
	"errors"

	"github.com/de-tools/commerce-atlas/pkg/dataset"
	"github.com/de-tools/commerce-atlas/pkg/models/domain"
)

// ErrTableExists is returned by fail-mode writes to an existing table.
var ErrTableExists = errors.New("destination table already exists")

type Writer interface {
	Write(ctx context.Context, t *dataset.Table, table string, mode domain.WriteMode) error
	Close() error
}

type Config struct {
	Platform   string           `mapstructure:"platform"`
	DSN        string           `mapstructure:"dsn"`
	Schema     string           `mapstructure:"schema"`
	BatchSize  int              `mapstructure:"batch_size"`
	Snowflake  SnowflakeConfig  `mapstructure:"snowflake"`
	Databricks DatabricksConfig `mapstructure:"databricks"`
	BigQuery   BigQueryConfig   `mapstructure:"bigquery"`
}

const DefaultBatchSize = 500
