package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// sqlStore implements Store over a two-column table. The SQLite and
// Postgres backends differ only in placeholder syntax and setup.
type sqlStore struct {
	db    *sql.DB
	table string
	bind  func(n int) string
}

func (s *sqlStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	q := fmt.Sprintf(`SELECT v FROM %s WHERE k = %s`, s.table, s.bind(1))
	err := s.db.QueryRowContext(ctx, q, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %q: %w", key, err)
	}
	return v, true, nil
}

func (s *sqlStore) Set(ctx context.Context, key, value string) error {
	q := fmt.Sprintf(
		`INSERT INTO %s (k, v) VALUES (%s, %s) ON CONFLICT (k) DO UPDATE SET v = excluded.v`,
		s.table, s.bind(1), s.bind(2),
	)
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("kv delete: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := fmt.Sprintf(`DELETE FROM %s WHERE k = %s`, s.table, s.bind(1))
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, q, k); err != nil {
			return fmt.Errorf("kv delete %q: %w", k, err)
		}
	}
	return tx.Commit()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
