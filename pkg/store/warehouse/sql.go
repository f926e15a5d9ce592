package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/de-tools/commerce-atlas/pkg/dataset"
	"github.com/de-tools/commerce-atlas/pkg/models/domain"
	"github.com/rs/zerolog"
)

// Dialect captures what differs between SQL warehouses.
type Dialect struct {
	Name        string
	Types       map[dataset.ColumnType]string
	Placeholder func(n int) string
	Quote       func(ident string) string
}

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

func doubleQuoted(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func backticked(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func bare(ident string) string { return ident }

var (
	SnowflakeDialect = Dialect{
		Name: "snowflake",
		Types: map[dataset.ColumnType]string{
			dataset.Int: "NUMBER(38,0)", dataset.Float: "FLOAT", dataset.Date: "DATE",
			dataset.String: "VARCHAR", dataset.Bool: "BOOLEAN",
		},
		Placeholder: questionMark,
		Quote:       bare,
	}

	DatabricksDialect = Dialect{
		Name: "databricks",
		Types: map[dataset.ColumnType]string{
			dataset.Int: "BIGINT", dataset.Float: "DOUBLE", dataset.Date: "DATE",
			dataset.String: "STRING", dataset.Bool: "BOOLEAN",
		},
		Placeholder: questionMark,
		Quote:       backticked,
	}

	DuckDBDialect = Dialect{
		Name: "duckdb",
		Types: map[dataset.ColumnType]string{
			dataset.Int: "BIGINT", dataset.Float: "DOUBLE", dataset.Date: "DATE",
			dataset.String: "VARCHAR", dataset.Bool: "BOOLEAN",
		},
		Placeholder: questionMark,
		Quote:       doubleQuoted,
	}

	PostgresDialect = Dialect{
		Name: "postgres",
		Types: map[dataset.ColumnType]string{
			dataset.Int: "BIGINT", dataset.Float: "DOUBLE PRECISION", dataset.Date: "DATE",
			dataset.String: "TEXT", dataset.Bool: "BOOLEAN",
		},
		Placeholder: dollar,
		Quote:       doubleQuoted,
	}
)

// SQLWriter loads datasets through database/sql using plain DDL and batched
// multi-row INSERTs.
type SQLWriter struct {
	db        *sql.DB
	dialect   Dialect
	schema    string
	batchSize int
}

func NewSQLWriter(db *sql.DB, dialect Dialect, schema string, batchSize int) *SQLWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &SQLWriter{db: db, dialect: dialect, schema: schema, batchSize: batchSize}
}

func (w *SQLWriter) Close() error {
	return w.db.Close()
}

func (w *SQLWriter) qualified(table string) string {
	if w.schema == "" {
		return w.dialect.Quote(table)
	}
	return w.dialect.Quote(w.schema) + "." + w.dialect.Quote(table)
}

func (w *SQLWriter) Write(ctx context.Context, t *dataset.Table, table string, mode domain.WriteMode) error {
	logger := zerolog.Ctx(ctx).With().
		Str("warehouse", w.dialect.Name).
		Str("table", table).
		Str("mode", string(mode)).
		Logger()

	exists, err := w.exists(ctx, table)
	if err != nil {
		return err
	}

	switch mode {
	case domain.WriteFail:
		if exists {
			return fmt.Errorf("%s: %w", table, ErrTableExists)
		}
		if err := w.create(ctx, t, table); err != nil {
			return err
		}
	case domain.WriteReplace:
		if exists {
			if err := w.exec(ctx, "DROP TABLE IF EXISTS "+w.qualified(table)); err != nil {
				return fmt.Errorf("drop %s: %w", table, err)
			}
		}
		if err := w.create(ctx, t, table); err != nil {
			return err
		}
	case domain.WriteAppend:
		if !exists {
			if err := w.create(ctx, t, table); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported write mode %q", mode)
	}

	if err := w.insert(ctx, t, table); err != nil {
		return err
	}

	logger.Info().Int("rows", t.Len()).Bool("existed", exists).Msg("table loaded")
	return nil
}

func (w *SQLWriter) exists(ctx context.Context, table string) (bool, error) {
	query := "SELECT COUNT(*) FROM information_schema.tables WHERE LOWER(table_name) = LOWER(" + w.dialect.Placeholder(1) + ")"
	args := []any{table}
	if w.schema != "" {
		query += " AND LOWER(table_schema) = LOWER(" + w.dialect.Placeholder(2) + ")"
		args = append(args, w.schema)
	}

	var n int
	if err := w.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("check %s exists: %w", table, err)
	}
	return n > 0, nil
}

func (w *SQLWriter) create(ctx context.Context, t *dataset.Table, table string) error {
	defs := make([]string, 0, len(t.Columns()))
	for _, c := range t.Columns() {
		typ, ok := w.dialect.Types[c.Type]
		if !ok {
			return fmt.Errorf("%s: no %s type for column %q", w.dialect.Name, c.Type, c.Name)
		}
		defs = append(defs, w.dialect.Quote(c.Name)+" "+typ)
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", w.qualified(table), strings.Join(defs, ", "))
	if err := w.exec(ctx, stmt); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}

func (w *SQLWriter) insert(ctx context.Context, t *dataset.Table, table string) error {
	names := t.ColumnNames()
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = w.dialect.Quote(n)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", w.qualified(table), strings.Join(quoted, ", "))

	for start := 0; start < t.Len(); start += w.batchSize {
		end := min(start+w.batchSize, t.Len())

		var sb strings.Builder
		sb.WriteString(prefix)
		args := make([]any, 0, (end-start)*len(names))
		for r := start; r < end; r++ {
			if r > start {
				sb.WriteString(", ")
			}
			sb.WriteByte('(')
			for c := range names {
				if c > 0 {
					sb.WriteString(", ")
				}
				args = append(args, nil)
				sb.WriteString(w.dialect.Placeholder(len(args)))
			}
			sb.WriteByte(')')
			copy(args[len(args)-len(names):], t.Values(r))
		}

		if err := w.exec(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("insert into %s rows %d-%d: %w", table, start, end-1, err)
		}
	}
	return nil
}

func (w *SQLWriter) exec(ctx context.Context, query string, args ...any) error {
	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}
