// Package store is the minimal relational surface the transcoder runs
// against: raw row queries, scalar lookups, and record load/persist over
// database/sql with a pluggable dialect (PostgreSQL or SQLite).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	_ "modernc.org/sqlite"             // register sqlite as database/sql driver

	"xmlport/internal/config"
	"xmlport/internal/record"
	"xmlport/internal/schema"
)

var ErrNotFound = errors.New("not found")
var ErrUniqueViolation = errors.New("unique constraint violation")

// Querier is implemented by both *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store wraps a database connection and dialect.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
}

// New opens a connection from config.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}

	dialect := NewDialect(driver)
	db, err := sql.Open(dialect.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.IsSQLite() {
		// SQLite: single writer, WAL mode for concurrent reads
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	} else if cfg.PoolSize > 0 {
		db.SetMaxOpenConns(cfg.PoolSize)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Store{DB: db, Dialect: dialect}, nil
}

// NewWithDB wraps an existing connection. Used by tests driving a mocked
// *sql.DB through the same code paths.
func NewWithDB(db *sql.DB, dialect Dialect) *Store {
	return &Store{DB: db, Dialect: dialect}
}

// Close closes the database connection.
func (s *Store) Close() {
	s.DB.Close()
}

// QueryRows executes a query and returns results as []map[string]any.
func (s *Store) QueryRows(ctx context.Context, sqlStr string, args ...any) ([]map[string]any, error) {
	rows, err := s.DB.QueryContext(ctx, s.Dialect.Rebind(sqlStr), args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return results, nil
}

// QueryValue executes a query and returns the first column of the first
// row, or ErrNotFound.
func (s *Store) QueryValue(ctx context.Context, sqlStr string, args ...any) (any, error) {
	rows, err := s.DB.QueryContext(ctx, s.Dialect.Rebind(sqlStr), args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("rows iteration: %w", err)
		}
		return nil, ErrNotFound
	}
	var v any
	if err := rows.Scan(&v); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return normalizeValue(v), nil
}

// QueryID is QueryValue coerced to an int64 id.
func (s *Store) QueryID(ctx context.Context, sqlStr string, args ...any) (int64, error) {
	v, err := s.QueryValue(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return ToID(v), nil
}

// QueryColumn executes a query and returns the first column of every row
// in order.
func (s *Store) QueryColumn(ctx context.Context, sqlStr string, args ...any) ([]any, error) {
	rows, err := s.DB.QueryContext(ctx, s.Dialect.Rebind(sqlStr), args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, normalizeValue(v))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// Exec executes a statement and returns the number of rows affected.
func (s *Store) Exec(ctx context.Context, sqlStr string, args ...any) (int64, error) {
	result, err := s.DB.ExecContext(ctx, s.Dialect.Rebind(sqlStr), args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", s.Dialect.MapError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// InsertRow inserts one row and returns the generated id from keyCol.
func (s *Store) InsertRow(ctx context.Context, table, keyCol string, cols []string, vals []any) (int64, error) {
	phs := make([]string, len(cols))
	for i := range cols {
		phs[i] = fmt.Sprintf("$%d", i+1)
	}
	sqlStr := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(phs, ", "))

	if s.Dialect.SupportsReturning() {
		sqlStr += " RETURNING " + keyCol
		id, err := s.QueryID(ctx, sqlStr, vals...)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", table, s.Dialect.MapError(err))
		}
		return id, nil
	}

	result, err := s.DB.ExecContext(ctx, s.Dialect.Rebind(sqlStr), vals...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, s.Dialect.MapError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// LoadRecord fetches one row by primary key into an ordered record. The
// field order follows the result set's column order so serialization is
// stable.
func (s *Store) LoadRecord(ctx context.Context, ent *schema.Entity, id int64) (*record.Record, error) {
	sqlStr := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		strings.Join(ent.ColumnNames(), ", "), ent.Table, ent.Key)

	rows, err := s.DB.QueryContext(ctx, s.Dialect.Rebind(sqlStr), id)
	if err != nil {
		return nil, fmt.Errorf("load %s/%d: %w", ent.Kind, id, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("rows iteration: %w", err)
		}
		return nil, ErrNotFound
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	rec := record.New()
	for i, col := range columns {
		rec.Set(col, normalizeValue(values[i]))
	}
	return rec, nil
}

// ToID coerces a scalar query result to an int64 id.
func ToID(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		var id int64
		fmt.Sscanf(n, "%d", &id)
		return id
	}
	return 0
}

// normalizeValue converts driver-specific types into the small value set
// records carry: string, int64, float64, bool, nil. Timestamps come back
// in the canonical datetime format.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(schema.DateFormat)
	default:
		return val
	}
}
