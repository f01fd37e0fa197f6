package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	embedsql "github.com/nick-dorsch/agenda/embed/sql"
	_ "modernc.org/sqlite"
)

// DB is the SQLite task repository.
type DB struct {
	*sql.DB
	now func() time.Time

	onChangeMu       sync.RWMutex
	listeners        map[int]changeListener
	nextListener     int
	onChangeDisabled bool
}

type changeListener struct {
	ownerID string
	fn      func(ctx context.Context)
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OnChange registers fn to run after every successful write touching
// ownerID's tasks. An empty ownerID listens to every owner.
func (db *DB) OnChange(ownerID string, fn func(ctx context.Context)) func() {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()

	id := db.nextListener
	db.nextListener++
	db.listeners[id] = changeListener{ownerID: ownerID, fn: fn}

	return func() {
		db.onChangeMu.Lock()
		defer db.onChangeMu.Unlock()
		delete(db.listeners, id)
	}
}

func (db *DB) DisableOnChange() {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChangeDisabled = true
}

func (db *DB) EnableOnChange() {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChangeDisabled = false
}

// triggerChange notifies listeners of ownerID. An empty ownerID notifies
// every listener.
func (db *DB) triggerChange(ctx context.Context, ownerID string) {
	db.onChangeMu.RLock()
	if db.onChangeDisabled {
		db.onChangeMu.RUnlock()
		return
	}
	fns := make([]func(ctx context.Context), 0, len(db.listeners))
	for _, l := range db.listeners {
		if ownerID == "" || l.ownerID == "" || l.ownerID == ownerID {
			fns = append(fns, l.fn)
		}
	}
	db.onChangeMu.RUnlock()

	for _, fn := range fns {
		fn(ctx)
	}
}

// SetClock overrides the clock used for created_at/updated_at.
func (db *DB) SetClock(now func() time.Time) {
	db.now = now
}

// Open opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	return &DB{
		DB:        db,
		now:       time.Now,
		listeners: make(map[int]changeListener),
	}, nil
}

func (db *DB) Migrate(ctx context.Context, schema string) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	db.triggerChange(ctx, "")
	return nil
}

func (db *DB) Init(ctx context.Context) error {
	return db.Migrate(ctx, embedsql.Schema)
}
