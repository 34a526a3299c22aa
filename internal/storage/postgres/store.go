// Package postgres implements the storage ports on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/okarlsen/splitbook/internal/port"
)

// Store is the PostgreSQL-backed implementation of all storage ports.
type Store struct {
	db *sql.DB
}

var (
	_ port.LedgerStore = (*Store)(nil)
	_ port.SplitStore  = (*Store)(nil)
	_ port.AuthStore   = (*Store)(nil)
	_ port.Pinger      = (*Store)(nil)
)

// New opens a connection pool and verifies it.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying pool for migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping probes the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close shuts the pool down.
func (s *Store) Close() error {
	return s.db.Close()
}
