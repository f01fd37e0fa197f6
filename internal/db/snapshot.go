package db

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nick-dorsch/agenda/pkg/models"
)

const snapshotVersion = 1

type snapshotMeta struct {
	RecordType string    `json:"record_type"`
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
}

type snapshotTask struct {
	RecordType string `json:"record_type"`
	models.Task
}

// EnableAutoSnapshot sets up a hook that exports a snapshot to the given
// path after every successful write. It returns the func that removes the
// hook.
func (db *DB) EnableAutoSnapshot(path string, log *slog.Logger) func() {
	if log == nil {
		log = slog.Default()
	}
	return db.OnChange("", func(ctx context.Context) {
		// Best effort: a failed export must not fail the write that fired it.
		if err := db.ExportSnapshot(ctx, path); err != nil {
			log.Warn("auto snapshot failed", "path", path, "error", err)
		}
	})
}

// ExportSnapshot writes every task as one JSON line to path atomically
// using a temporary file.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tasks, err := db.Fetch(ctx, models.Filter{})
	if err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	w := bufio.NewWriter(tempFile)
	enc := json.NewEncoder(w)
	if err := enc.Encode(snapshotMeta{RecordType: "meta", Version: snapshotVersion, ExportedAt: db.now().UTC()}); err != nil {
		return fmt.Errorf("failed to write snapshot meta: %w", err)
	}
	for _, t := range tasks {
		if err := enc.Encode(snapshotTask{RecordType: "task", Task: t}); err != nil {
			return fmt.Errorf("failed to write snapshot task %s: %w", t.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ImportSnapshot reads a JSONL snapshot and upserts its tasks by ID in one
// transaction. Imported rows keep their stored version and timestamps.
// Change listeners stay muted for the whole import, so an auto snapshot
// never writes back over the file being read.
func (db *DB) ImportSnapshot(ctx context.Context, path string) (int, error) {
	db.DisableOnChange()
	defer db.EnableOnChange()

	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	count := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var base struct {
			RecordType string `json:"record_type"`
		}
		if err := json.Unmarshal(line, &base); err != nil {
			return 0, fmt.Errorf("failed to unmarshal base record: %w", err)
		}

		switch base.RecordType {
		case "meta":
			var m snapshotMeta
			if err := json.Unmarshal(line, &m); err != nil {
				return 0, fmt.Errorf("failed to unmarshal meta: %w", err)
			}
			if m.Version > snapshotVersion {
				return 0, fmt.Errorf("unsupported snapshot version %d", m.Version)
			}
		case "task":
			var rec snapshotTask
			if err := json.Unmarshal(line, &rec); err != nil {
				return 0, fmt.Errorf("failed to unmarshal task: %w", err)
			}
			if err := upsertTask(ctx, tx, rec.Task); err != nil {
				return 0, err
			}
			count++
		}
	}

	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scanner error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return count, nil
}

func upsertTask(ctx context.Context, exec executor, t models.Task) error {
	if t.ID == "" {
		return fmt.Errorf("failed to sync task %q: missing id", t.Title)
	}
	if t.Version == 0 {
		t.Version = 1
	}
	r, err := EncodeTask(t)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id, title = excluded.title, description = excluded.description,
			scheduled_date = excluded.scheduled_date, delivery_dates = excluded.delivery_dates,
			sort_order = excluded.sort_order, status = excluded.status, is_concluded = excluded.is_concluded,
			concluded_at = excluded.concluded_at, sub_items = excluded.sub_items,
			completion_history = excluded.completion_history, forward_history = excluded.forward_history,
			forward_count = excluded.forward_count, type = excluded.type, priority = excluded.priority,
			category = excluded.category, time_investment = excluded.time_investment,
			assigned_person_id = excluded.assigned_person_id, created_at = excluded.created_at,
			updated_at = excluded.updated_at, version = excluded.version
	`
	if _, err := exec.ExecContext(ctx, query, r.values()...); err != nil {
		return fmt.Errorf("failed to sync task %s: %w", t.ID, err)
	}
	return nil
}
