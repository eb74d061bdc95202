package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var _ Store = &SQL{}

const tableName = "wunderground_state"

// SQL is a Store backed by a single key/value table. It supports the sqlite and postgres drivers.
type SQL struct {
	db     *sql.DB
	driver string
}

// NewSQL connects to the database and creates the state table if needed.
func NewSQL(driver, dsn string) (*SQL, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	s := SQL{db: db, driver: driver}
	if err = s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &s, nil
}

func (s *SQL) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+tableName+` (
	id  TEXT PRIMARY KEY,
	val TEXT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("create %s: %w", tableName, err)
	}
	return nil
}

func (s *SQL) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT val FROM `+tableName+` WHERE id = `+s.arg(1), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (s *SQL) Set(ctx context.Context, key string, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+tableName+` (id, val) VALUES (`+s.arg(1)+`, `+s.arg(2)+`) ON CONFLICT (id) DO UPDATE SET val = excluded.val`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}

// arg returns the n'th positional placeholder for the driver.
func (s *SQL) arg(n int) string {
	if s.driver == DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
