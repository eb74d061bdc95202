// Package store persists string values under fixed identifiers. It holds the acquired credentials across runs
// and can serve as the output state tree.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key has never been set.
var ErrNotFound = errors.New("not found")

// A Store gets and sets string values. Set creates the key if it does not exist yet.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
}

// Drivers supported by New.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// New returns the Store for the driver. The meaning of dsn depends on the driver: a file path for file and sqlite,
// a connection string for postgres, a host:port address for redis.
func New(driver, dsn string) (Store, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverFile:
		return NewFile(dsn)
	case DriverSQLite, DriverPostgres:
		return NewSQL(driver, dsn)
	case DriverRedis:
		return NewRedis(dsn, "wunderground"), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
}

// GetString returns the value of key, or an empty string if it doesn't exist.
func GetString(ctx context.Context, s Store, key string) (string, error) {
	value, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	return value, err
}
