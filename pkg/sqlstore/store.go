// Package sqlstore writes migrated topics, log entries and archive samples to
// a Postgres database.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// ErrTargetExists reports that the target already holds a ps table.
var ErrTargetExists = errors.New("sqlstore: target already exists")

// duplicateTableCode is the Postgres SQLSTATE for duplicate_table.
const duplicateTableCode = "42P07"

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var schema = []string{
	`CREATE TABLE ps (
		id SERIAL PRIMARY KEY,
		p TEXT NOT NULL,
		m TEXT,
		s TEXT
	)`,
	`CREATE TABLE logs (
		id SERIAL PRIMARY KEY,
		dt TIMESTAMPTZ(3) NOT NULL,
		l SMALLINT NOT NULL,
		m TEXT NOT NULL
	)`,
	`CREATE INDEX logs_dt_idx ON logs (dt)`,
	`CREATE TABLE arch (
		id SERIAL PRIMARY KEY,
		p INTEGER NOT NULL REFERENCES ps (id) ON DELETE CASCADE,
		dt TIMESTAMPTZ(3) NOT NULL,
		v DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX arch_p_idx ON arch (p)`,
	`CREATE INDEX arch_dt_idx ON arch (dt)`,
	`CREATE TABLE arch_w (
		p INTEGER PRIMARY KEY REFERENCES ps (id) ON DELETE CASCADE,
		dt1 TIMESTAMPTZ(3)
	)`,
}

// Conn is what the store executes statements on. squirrel.WrapStdSqlCtx
// adapts a *sql.DB to it.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) squirrel.RowScanner
}

// Store writes migrated records.
type Store struct {
	conn Conn
}

// New returns a Store over conn.
func New(conn Conn) *Store {
	return &Store{conn: conn}
}

// Open connects to the Postgres database named by dsn.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	return db, nil
}

// CreateSchema creates the target tables. It fails with ErrTargetExists when
// the ps table is already present.
func (s *Store) CreateSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			if isDuplicateTable(err) {
				return fmt.Errorf("sqlstore: create schema: %w", ErrTargetExists)
			}
			return fmt.Errorf("sqlstore: create schema: %w", err)
		}
	}
	return nil
}

func isDuplicateTable(err error) bool {
	var perr *pq.Error
	return errors.As(err, &perr) && perr.Code == duplicateTableCode
}

// WriteTopic inserts a topic and returns its row id. The state column is left
// NULL when state is nil.
func (s *Store) WriteTopic(ctx context.Context, path string, manifest, state []byte) (int64, error) {
	q, args, err := topicInsert(path, manifest, state).ToSql()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: write topic %s: %w", path, err)
	}
	var id int64
	if err := s.conn.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("sqlstore: write topic %s: %w", path, err)
	}
	return id, nil
}

func topicInsert(path string, manifest, state []byte) squirrel.InsertBuilder {
	if state == nil {
		return psql.Insert("ps").
			Columns("p", "m").
			Values(path, textArg(manifest)).
			Suffix("RETURNING id")
	}
	return psql.Insert("ps").
		Columns("p", "m", "s").
		Values(path, textArg(manifest), string(state)).
		Suffix("RETURNING id")
}

func textArg(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

// WriteLog inserts one log entry.
func (s *Store) WriteLog(ctx context.Context, dt time.Time, level int32, message string) error {
	q, args, err := psql.Insert("logs").
		Columns("dt", "l", "m").
		Values(dt, level, message).
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlstore: write log: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("sqlstore: write log: %w", err)
	}
	return nil
}

// WriteArch inserts one archive sample for the topic row id.
func (s *Store) WriteArch(ctx context.Context, id int64, dt time.Time, value float64) error {
	q, args, err := psql.Insert("arch").
		Columns("p", "dt", "v").
		Values(id, dt, value).
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlstore: write arch %d: %w", id, err)
	}
	if _, err := s.conn.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("sqlstore: write arch %d: %w", id, err)
	}
	return nil
}
