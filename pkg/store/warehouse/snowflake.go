package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	sf "github.com/snowflakedb/gosnowflake"
)

type SnowflakeConfig struct {
	Account   string `mapstructure:"account"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	Database  string `mapstructure:"database"`
	Warehouse string `mapstructure:"warehouse"`
	Role      string `mapstructure:"role"`
}

func snowflakeDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	s := cfg.Snowflake
	if s.Account == "" || s.User == "" {
		return "", fmt.Errorf("snowflake: account and user are required")
	}
	return sf.DSN(&sf.Config{
		Account:   s.Account,
		User:      s.User,
		Password:  s.Password,
		Database:  s.Database,
		Schema:    cfg.Schema,
		Warehouse: s.Warehouse,
		Role:      s.Role,
	})
}

func OpenSnowflake(ctx context.Context, cfg Config) (Writer, error) {
	dsn, err := snowflakeDSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create DSN: %w", err)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to snowflake: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to snowflake: %w", err)
	}
	return NewSQLWriter(db, SnowflakeDialect, cfg.Schema, cfg.BatchSize), nil
}
