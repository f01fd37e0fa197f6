package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultWatchInterval is how often Watch polls for writes made by other
// connections.
const DefaultWatchInterval = 2 * time.Second

// DataVersion returns SQLite's data_version counter, which changes whenever
// another connection commits to the database file.
func (db *DB) DataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read data version: %w", err)
	}
	return v, nil
}

// Watch polls DataVersion until ctx is done and fires every change listener
// when another process has written to the database.
func (db *DB) Watch(ctx context.Context, interval time.Duration, log *slog.Logger) error {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	if log == nil {
		log = slog.Default()
	}

	last, err := db.DataVersion(ctx)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			v, err := db.DataVersion(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error("watch poll failed", "error", err)
				continue
			}
			if v != last {
				last = v
				log.Debug("external change detected", "data_version", v)
				db.triggerChange(ctx, "")
			}
		}
	}
}
