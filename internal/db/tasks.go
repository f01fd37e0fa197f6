package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nick-dorsch/agenda/internal/store"
	"github.com/nick-dorsch/agenda/pkg/models"
)

// Fetch returns the tasks matching filter, in display order.
func (db *DB) Fetch(ctx context.Context, filter models.Filter) ([]models.Task, error) {
	return db.fetch(ctx, db.DB, filter)
}

func (db *DB) fetch(ctx context.Context, exec executor, filter models.Filter) ([]models.Task, error) {
	var where []string
	var args []any

	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Date != nil {
		where = append(where, `(scheduled_date = ? OR EXISTS (
			SELECT 1 FROM json_each(tasks.delivery_dates) WHERE json_each.value = ?))`)
		args = append(args, filter.Date.String(), filter.Date.String())
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.ExcludeConcluded {
		where = append(where, "is_concluded = 0")
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var r TaskRow
		if err := rows.Scan(r.scanTargets()...); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t, err := DecodeTask(r)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	store.SortTasks(tasks)
	return tasks, nil
}

// Get retrieves a task by its ID.
func (db *DB) Get(ctx context.Context, id string) (models.Task, error) {
	return db.get(ctx, db.DB, id)
}

func (db *DB) get(ctx context.Context, exec executor, id string) (models.Task, error) {
	var r TaskRow
	err := exec.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id).Scan(r.scanTargets()...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to get task: %w", err)
	}
	return DecodeTask(r)
}

// Insert stores a new task at version 1.
func (db *DB) Insert(ctx context.Context, t models.Task) (models.Task, error) {
	created, err := db.insert(ctx, db.DB, t)
	if err != nil {
		return models.Task{}, err
	}

	db.triggerChange(ctx, created.OwnerID)
	return created, nil
}

func (db *DB) insert(ctx context.Context, exec executor, t models.Task) (models.Task, error) {
	if t.ID == "" {
		return models.Task{}, fmt.Errorf("failed to create task: missing id")
	}

	now := db.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	t.Version = 1

	r, err := EncodeTask(t)
	if err != nil {
		return models.Task{}, err
	}

	query := "INSERT INTO tasks (" + taskColumns + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(r.values())), ", ") + ")"
	if _, err := exec.ExecContext(ctx, query, r.values()...); err != nil {
		return models.Task{}, fmt.Errorf("failed to create task: %w", err)
	}
	return t, nil
}

// Update applies patch to the task with the given ID and returns the stored
// result. A set IfVersion must match the stored version.
func (db *DB) Update(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	updated, err := db.update(ctx, tx, id, patch)
	if err != nil {
		return models.Task{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Task{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.triggerChange(ctx, updated.OwnerID)
	return updated, nil
}

func (db *DB) update(ctx context.Context, exec executor, id string, patch models.TaskPatch) (models.Task, error) {
	cols, args, err := encodePatch(patch)
	if err != nil {
		return models.Task{}, err
	}
	cols = append(cols, "updated_at = ?", "version = version + 1")
	args = append(args, encodeTime(db.now()))

	query := "UPDATE tasks SET " + strings.Join(cols, ", ") + " WHERE id = ?"
	args = append(args, id)
	if patch.IfVersion != nil {
		query += " AND version = ?"
		args = append(args, *patch.IfVersion)
	}

	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		current, err := db.get(ctx, exec, id)
		if err != nil {
			return models.Task{}, err
		}
		return models.Task{}, fmt.Errorf("%w: %s at version %d, expected %d", store.ErrVersionConflict, id, current.Version, *patch.IfVersion)
	}

	return db.get(ctx, exec, id)
}

// Delete removes a task by its ID.
func (db *DB) Delete(ctx context.Context, id string) error {
	var ownerID string
	err := db.QueryRowContext(ctx, "DELETE FROM tasks WHERE id = ? RETURNING owner_id", id).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	db.triggerChange(ctx, ownerID)
	return nil
}
