// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sqlite persists shared cells in a SQLite database.
//
// All keys live in one cells table. Every save bumps the row version;
// watchers poll versions to notice writes made through other connections
// or processes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"code.hybscloud.com/flux"
	"code.hybscloud.com/flux/persist"
)

// Option configures a [DB].
type Option func(*DB)

// WithPollInterval sets how often watchers check for external writes.
func WithPollInterval(d time.Duration) Option {
	return func(db *DB) { db.poll = d }
}

// WithLogger sets the logger for watcher failures.
func WithLogger(logger *slog.Logger) Option {
	return func(db *DB) { db.logger = logger }
}

// DB is a SQLite database holding cells.
type DB struct {
	sqlDB  *sql.DB
	path   string
	poll   time.Duration
	logger *slog.Logger
}

// Open opens the database at path and applies embedded migrations.
// The special path ":memory:" opens a private in-memory database.
func Open(path string, opts ...Option) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path
	if path != ":memory:" {
		path = filepath.Clean(path)
		dsn = path + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
		path = fmt.Sprintf(":memory:%p", sqlDB)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(context.Background(), sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	db := &DB{sqlDB: sqlDB, path: path, poll: time.Second, logger: slog.Default()}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Close closes the database handle.
func (db *DB) Close() error {
	if db == nil || db.sqlDB == nil {
		return nil
	}
	return db.sqlDB.Close()
}

// Keys lists the stored keys in order.
func (db *DB) Keys(ctx context.Context) ([]string, error) {
	rows, err := db.sqlDB.QueryContext(ctx, "SELECT key FROM cells ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Delete removes key. Watching cells reset to their initial value.
func (db *DB) Delete(ctx context.Context, key string) error {
	if _, err := db.sqlDB.ExecContext(ctx, "DELETE FROM cells WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// version reads the row version of key; 0 means absent.
func (db *DB) version(ctx context.Context, key string) (int64, error) {
	var v int64
	err := db.sqlDB.QueryRowContext(ctx, "SELECT version FROM cells WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

// Key is a [flux.Persistence] for one row of a [DB].
type Key[T any] struct {
	db    *DB
	name  string
	codec persist.Codec[T]

	mu   sync.Mutex
	seen int64
}

// NewKey returns the row called name, encoded with codec.
func NewKey[T any](db *DB, name string, codec persist.Codec[T]) *Key[T] {
	return &Key[T]{db: db, name: name, codec: codec}
}

// Key implements [flux.Persistence].
func (k *Key[T]) Key() string {
	return "sqlite:" + k.db.path + "#" + k.name
}

// Load implements [flux.Persistence].
func (k *Key[T]) Load(ctx context.Context) (T, bool, error) {
	var zero T
	var data []byte
	var version int64
	err := k.db.sqlDB.QueryRowContext(ctx,
		"SELECT value, version FROM cells WHERE key = ?", k.name,
	).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("load %q: %w", k.name, err)
	}
	v, err := k.codec.Unmarshal(data)
	if err != nil {
		return zero, false, fmt.Errorf("load %q: %w", k.name, err)
	}
	k.observe(version)
	return v, true, nil
}

// Save implements [flux.Persistence]. A busy database is retried a few
// times before giving up.
func (k *Key[T]) Save(ctx context.Context, v T) error {
	data, err := k.codec.Marshal(v)
	if err != nil {
		return err
	}
	var version int64
	for attempt := 0; ; attempt++ {
		err = k.db.sqlDB.QueryRowContext(ctx, `
INSERT INTO cells (key, value, codec, version, updated_at) VALUES (?, ?, ?, 1, ?)
ON CONFLICT(key) DO UPDATE SET
    value = excluded.value,
    codec = excluded.codec,
    version = cells.version + 1,
    updated_at = excluded.updated_at
RETURNING version`,
			k.name, data, k.codec.Name(), time.Now().UTC().UnixMilli(),
		).Scan(&version)
		if err == nil || !isBusy(err) || attempt == 2 {
			break
		}
		select {
		case <-time.After(time.Duration(attempt+1) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return fmt.Errorf("save %q: %w", k.name, err)
	}
	k.observe(version)
	return nil
}

func (k *Key[T]) observe(version int64) {
	k.mu.Lock()
	if version > k.seen {
		k.seen = version
	}
	k.mu.Unlock()
}

// Updates implements [flux.Persistence]. It polls the row version and
// emits when it moves past the last version this key read or wrote, or
// when the row disappears.
func (k *Key[T]) Updates(ctx context.Context) <-chan flux.Update[T] {
	ch := make(chan flux.Update[T])
	go func() {
		defer close(ch)
		ticker := time.NewTicker(k.db.poll)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			u, ok := k.check(ctx)
			if !ok {
				continue
			}
			select {
			case ch <- u:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (k *Key[T]) check(ctx context.Context) (flux.Update[T], bool) {
	version, err := k.db.version(ctx, k.name)
	if err != nil {
		if ctx.Err() == nil {
			k.db.logger.Warn("sqlite: poll failed", "key", k.name, "error", err)
		}
		return flux.Update[T]{}, false
	}
	k.mu.Lock()
	seen := k.seen
	k.mu.Unlock()
	switch {
	case version == 0 && seen != 0:
		k.mu.Lock()
		k.seen = 0
		k.mu.Unlock()
		return flux.Update[T]{}, true
	case version <= seen:
		return flux.Update[T]{}, false
	}
	v, ok, err := k.Load(ctx)
	if err != nil {
		k.db.logger.Warn("sqlite: reload failed", "key", k.name, "error", err)
		return flux.Update[T]{}, false
	}
	return flux.Update[T]{Value: v, Present: ok}, true
}

func isBusy(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
	}
	return false
}
