package kv

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

// PostgresStore keeps settings in a shared Postgres table, for deployments
// where several server instances serve the same user.
type PostgresStore struct {
	sqlStore
}

const defaultPostgresTable = "writedesk_kv"

// NewPostgres connects using dsn and migrates the kv table.
func NewPostgres(dsn string) (*PostgresStore, error) {
	return NewPostgresTable(dsn, defaultPostgresTable)
}

// NewPostgresTable is NewPostgres with an explicit table name.
func NewPostgresTable(dsn, table string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}

	s := &PostgresStore{sqlStore{
		db:    db,
		table: pq.QuoteIdentifier(table),
		bind:  func(n int) string { return "$" + strconv.Itoa(n) },
	}}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Advisory lock keeps concurrent instances from racing on CREATE TABLE.
	const lockID = 720431

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquire conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, lockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		k TEXT PRIMARY KEY,
		v TEXT NOT NULL,
		updated_at TIMESTAMPTZ DEFAULT now()
	)`, s.table)
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}
