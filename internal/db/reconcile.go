package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nick-dorsch/agenda/pkg/models"
)

// RecordDiscrepancy stores d unless an unresolved row of the same kind for
// the same pair already exists.
func (db *DB) RecordDiscrepancy(ctx context.Context, d models.Discrepancy) error {
	detectedAt := d.DetectedAt
	if detectedAt.IsZero() {
		detectedAt = db.now()
	}

	query := `
		INSERT INTO reconciliations (kind, task_id, linked_task_id, detail, detected_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`
	if _, err := db.ExecContext(ctx, query, string(d.Kind), d.TaskID, d.LinkedTaskID, d.Detail, encodeTime(detectedAt)); err != nil {
		return fmt.Errorf("failed to record discrepancy: %w", err)
	}
	return nil
}

// ListDiscrepancies returns the unresolved discrepancies, oldest first.
func (db *DB) ListDiscrepancies(ctx context.Context) ([]models.Discrepancy, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, kind, task_id, linked_task_id, detail, detected_at
		FROM reconciliations
		WHERE resolved_at IS NULL
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list discrepancies: %w", err)
	}
	defer rows.Close()

	var out []models.Discrepancy
	for rows.Next() {
		var d models.Discrepancy
		var kind, detectedAt string
		if err := rows.Scan(&d.ID, &kind, &d.TaskID, &d.LinkedTaskID, &d.Detail, &detectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan discrepancy: %w", err)
		}
		d.Kind = models.DiscrepancyKind(kind)
		if d.DetectedAt, err = decodeTime(detectedAt); err != nil {
			return nil, fmt.Errorf("failed to decode detected_at: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// ResolveDiscrepancy marks a discrepancy as handled.
func (db *DB) ResolveDiscrepancy(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, "UPDATE reconciliations SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL",
		encodeTime(db.now()), id)
	if err != nil {
		return fmt.Errorf("failed to resolve discrepancy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("discrepancy %d not found: %w", id, sql.ErrNoRows)
	}
	return nil
}
