// Package postgres copies observation tables into a PostgreSQL table using
// the COPY protocol.
package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/frapercan/IECA2SDMX/pkg/errors"
	"github.com/frapercan/IECA2SDMX/pkg/sdmx"
)

// conn is the subset of *pgxpool.Pool the sink uses.
type conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Sink writes observation tables into one PostgreSQL table. The table is
// created on first use with text columns, and double precision for columns
// holding only numbers.
type Sink struct {
	db     conn
	pool   *pgxpool.Pool
	table  pgx.Identifier
	logger *zap.Logger
}

// New connects to dsn and returns a sink for table, which may be qualified
// as "schema.table".
func New(ctx context.Context, dsn, table string, maxConns int, log *zap.Logger) (*Sink, error) {
	if dsn == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "connection string is required")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse PostgreSQL connection string")
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns) //nolint:gosec // bounded by worker count
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create PostgreSQL connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "PostgreSQL health check failed")
	}

	s, err := newSink(pool, table, log)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.pool = pool

	s.logger.Info("PostgreSQL sink connected",
		zap.String("table", s.table.Sanitize()),
		zap.Int32("max_connections", cfg.MaxConns))
	return s, nil
}

func newSink(db conn, table string, log *zap.Logger) (*Sink, error) {
	ident, err := parseIdentifier(table)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{db: db, table: ident, logger: log}, nil
}

func parseIdentifier(table string) (pgx.Identifier, error) {
	parts := strings.Split(table, ".")
	if table == "" || len(parts) > 2 {
		return nil, errors.New(errors.ErrorTypeConfig, "invalid PostgreSQL table name").
			WithDetail("table", table)
	}
	for _, p := range parts {
		if p == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "invalid PostgreSQL table name").
				WithDetail("table", table)
		}
	}
	return pgx.Identifier(parts), nil
}

// Copy creates the table if needed and copies every row of t into it.
func (s *Sink) Copy(ctx context.Context, t *sdmx.Table) (int64, error) {
	columns := t.Columns()
	if _, err := s.db.Exec(ctx, createTableSQL(s.table, columns, numericColumns(t))); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create PostgreSQL table").
			WithDetail("table", s.table.Sanitize())
	}

	start := time.Now()
	n, err := s.db.CopyFrom(ctx, s.table, columns, pgx.CopyFromSlice(t.NumRows(), func(i int) ([]any, error) {
		return t.Row(i), nil
	}))
	if err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeConnection, "failed to copy rows into PostgreSQL").
			WithDetail("table", s.table.Sanitize()).
			WithDetail("copied", n)
	}

	s.logger.Debug("rows copied",
		zap.String("table", s.table.Sanitize()),
		zap.Int64("rows", n),
		zap.Duration("duration", time.Since(start)))
	return n, nil
}

// Close releases the connection pool.
func (s *Sink) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func createTableSQL(table pgx.Identifier, columns []string, numeric []bool) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(table.Sanitize())
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{c}.Sanitize())
		if numeric[i] {
			b.WriteString(" DOUBLE PRECISION")
		} else {
			b.WriteString(" TEXT")
		}
	}
	b.WriteString(")")
	return b.String()
}

func numericColumns(t *sdmx.Table) []bool {
	numeric := make([]bool, t.NumColumns())
	seen := make([]bool, t.NumColumns())
	for j := range numeric {
		numeric[j] = true
	}
	_ = t.Each(func(_ int, row []interface{}) error {
		for j, v := range row {
			if v == nil {
				continue
			}
			seen[j] = true
			if _, ok := v.(float64); !ok {
				numeric[j] = false
			}
		}
		return nil
	})
	for j := range numeric {
		numeric[j] = numeric[j] && seen[j]
	}
	return numeric
}
