package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err, "open database")
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Init(context.Background()), "init database")
	db.SetClock(func() time.Time { return testNow })
	return db
}

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk, "foreign keys should be enabled")
}

func TestMigrate(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	schema := `
	CREATE TABLE test (
		id INTEGER PRIMARY KEY,
		name TEXT
	);
	`
	require.NoError(t, db.Migrate(context.Background(), schema))

	_, err = db.Exec("INSERT INTO test (name) VALUES (?)", "foo")
	require.NoError(t, err)

	var name string
	require.NoError(t, db.QueryRow("SELECT name FROM test WHERE id = 1").Scan(&name))
	assert.Equal(t, "foo", name)
}

func TestInitIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Init(context.Background()), "second init")

	for _, table := range []string{"tasks", "reconciliations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, "table %s should exist", table)
	}
}

func TestOnChangeFiltersByOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var alice, bob, all int
	db.OnChange("alice", func(ctx context.Context) { alice++ })
	cancelBob := db.OnChange("bob", func(ctx context.Context) { bob++ })
	db.OnChange("", func(ctx context.Context) { all++ })

	_, err := db.Insert(ctx, newTask("t1", "alice", "2024-03-15"))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1}, []int{alice, bob, all})

	cancelBob()
	_, err = db.Insert(ctx, newTask("t2", "bob", "2024-03-15"))
	require.NoError(t, err)
	assert.Zero(t, bob, "cancelled listener should not fire")
	assert.Equal(t, 2, all)
}

func TestDisableOnChange(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	calls := 0
	db.OnChange("", func(ctx context.Context) { calls++ })

	db.DisableOnChange()
	_, err := db.Insert(ctx, newTask("t1", "alice", "2024-03-15"))
	require.NoError(t, err)
	assert.Zero(t, calls, "no calls while disabled")

	db.EnableOnChange()
	require.NoError(t, db.Delete(ctx, "t1"))
	assert.Equal(t, 1, calls)
}
