// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/littleci/littleci/lib/clock"
	"github.com/littleci/littleci/lib/sqlitepool"
)

// Store is the SQLite-backed state of a LittleCI installation.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the database file. The parent directory must exist.
	Path string

	// PoolSize is the number of connections. Defaults to 4.
	PoolSize int

	// Clock stamps every row. Required.
	Clock clock.Clock

	// Logger receives operational messages. Required.
	Logger *slog.Logger
}

// Open opens (creating if necessary) the database at cfg.Path and
// applies the schema.
func Open(cfg Config) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("store: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("store: Logger is required")
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Schema:   schema,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	return &Store{
		pool:   pool,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// read runs fn on a pooled connection without a transaction.
func (s *Store) read(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

// write runs fn inside an IMMEDIATE transaction. The transaction
// commits if fn returns nil and rolls back otherwise.
func (s *Store) write(ctx context.Context, fn func(conn *sqlite.Conn) error) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = fn(conn)
	return err
}

// newID returns a time-ordered identifier. UUIDv7 values generated by
// one process sort in creation order, which the claim query relies on
// to break created_at ties.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// newSecret returns 32 random bytes, hex-encoded.
func newSecret() string {
	buffer := make([]byte, 32)
	if _, err := rand.Read(buffer); err != nil {
		panic("store: reading random bytes: " + err.Error())
	}
	return hex.EncodeToString(buffer)
}

func toNanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

// nullableInt converts an optional exit code to a bind argument.
func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return int64(*value)
}

// columnNullableInt reads an optional integer column.
func columnNullableInt(stmt *sqlite.Stmt, column int) *int {
	if stmt.ColumnIsNull(column) {
		return nil
	}
	value := stmt.ColumnInt(column)
	return &value
}

func encodeJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("store: encoding column: %w", err)
	}
	return string(data), nil
}

func decodeJSON(text string, destination any) error {
	if text == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(text), destination); err != nil {
		return fmt.Errorf("store: decoding column: %w", err)
	}
	return nil
}

// intPointer returns a pointer to a copy of value.
func intPointer(value int) *int { return &value }
