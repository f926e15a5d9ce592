package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/databricks/databricks-sdk-go"
	dbsql "github.com/databricks/databricks-sql-go"
)

type DatabricksConfig struct {
	Host        string `mapstructure:"host"`
	Token       string `mapstructure:"token"`
	HTTPPath    string `mapstructure:"http_path"`
	WarehouseID string `mapstructure:"warehouse_id"`
	Catalog     string `mapstructure:"catalog"`
}

func hostname(host string) string {
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimRight(host, "/")
}

// resolveHTTPPath looks up the SQL warehouse endpoint when only its id is
// configured.
func resolveHTTPPath(ctx context.Context, cfg DatabricksConfig) (string, error) {
	if cfg.HTTPPath != "" {
		return cfg.HTTPPath, nil
	}
	if cfg.WarehouseID == "" {
		return "", fmt.Errorf("databricks: http_path or warehouse_id is required")
	}

	w, err := databricks.NewWorkspaceClient(&databricks.Config{
		Host:  cfg.Host,
		Token: cfg.Token,
	})
	if err != nil {
		return "", fmt.Errorf("databricks client: %w", err)
	}
	warehouse, err := w.Warehouses.GetById(ctx, cfg.WarehouseID)
	if err != nil {
		return "", fmt.Errorf("failed to get warehouse %s: %w", cfg.WarehouseID, err)
	}
	if warehouse.OdbcParams == nil || warehouse.OdbcParams.Path == "" {
		return "", fmt.Errorf("warehouse %s has no connection path", cfg.WarehouseID)
	}
	return warehouse.OdbcParams.Path, nil
}

func OpenDatabricks(ctx context.Context, cfg Config) (Writer, error) {
	d := cfg.Databricks
	if d.Host == "" || d.Token == "" {
		return nil, fmt.Errorf("databricks: host and token are required")
	}
	path, err := resolveHTTPPath(ctx, d)
	if err != nil {
		return nil, err
	}

	opts := []dbsql.ConnOption{
		dbsql.WithServerHostname(hostname(d.Host)),
		dbsql.WithPort(443),
		dbsql.WithHTTPPath(path),
		dbsql.WithAccessToken(d.Token),
	}
	if d.Catalog != "" || cfg.Schema != "" {
		opts = append(opts, dbsql.WithInitialNamespace(d.Catalog, cfg.Schema))
	}
	connector, err := dbsql.NewConnector(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Databricks: %w", err)
	}

	return NewSQLWriter(sql.OpenDB(connector), DatabricksDialect, cfg.Schema, cfg.BatchSize), nil
}
