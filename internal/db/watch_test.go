package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchDetectsExternalWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()

	watcher, err := Open(path)
	require.NoError(t, err)
	defer watcher.Close()
	require.NoError(t, watcher.Init(ctx))

	writer, err := Open(path)
	require.NoError(t, err, "open second connection")
	defer writer.Close()

	changed := make(chan struct{}, 1)
	watcher.OnChange("alice", func(ctx context.Context) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- watcher.Watch(watchCtx, 10*time.Millisecond, nil) }()

	// Give Watch time to record the initial data version.
	time.Sleep(50 * time.Millisecond)
	_, err = writer.Insert(ctx, newTask("t1", "alice", "2024-03-15"))
	require.NoError(t, err)

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not observe the external write")
	}

	cancel()
	assert.NoError(t, <-done)
}
