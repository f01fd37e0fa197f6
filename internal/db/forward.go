package db

import (
	"context"
	"fmt"

	"github.com/nick-dorsch/agenda/pkg/models"
)

// ForwardAtomic seals the predecessor with seal and inserts successor in a
// single transaction. Either both writes land or neither does.
func (db *DB) ForwardAtomic(ctx context.Context, predecessorID string, seal models.TaskPatch, successor models.Task) (models.Task, models.Task, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return models.Task{}, models.Task{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sealed, err := db.update(ctx, tx, predecessorID, seal)
	if err != nil {
		return models.Task{}, models.Task{}, fmt.Errorf("failed to seal task %s: %w", predecessorID, err)
	}

	created, err := db.insert(ctx, tx, successor)
	if err != nil {
		return models.Task{}, models.Task{}, fmt.Errorf("failed to create successor of %s: %w", predecessorID, err)
	}

	if err := tx.Commit(); err != nil {
		return models.Task{}, models.Task{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.triggerChange(ctx, sealed.OwnerID)
	if created.OwnerID != sealed.OwnerID {
		db.triggerChange(ctx, created.OwnerID)
	}
	return sealed, created, nil
}
