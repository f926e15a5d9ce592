package warehouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

// OpenDuckDB writes into a local DuckDB file; DSN is the file path.
func OpenDuckDB(_ context.Context, cfg Config) (Writer, error) {
	path := cfg.DSN
	if path == "" {
		path = "atlas.duckdb"
	}

	c, err := duckdb.NewConnector(path, func(exec driver.ExecerContext) error {
		if cfg.Schema == "" {
			return nil
		}
		_, err := exec.ExecContext(context.Background(), "CREATE SCHEMA IF NOT EXISTS "+doubleQuoted(cfg.Schema), nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", path, err)
	}

	return NewSQLWriter(sql.OpenDB(c), DuckDBDialect, cfg.Schema, cfg.BatchSize), nil
}
