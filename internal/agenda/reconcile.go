package agenda

import (
	"context"
	"fmt"

	"github.com/nick-dorsch/agenda/internal/reschedule"
	"github.com/nick-dorsch/agenda/pkg/models"
)

// Reconcile scans the owner's tasks for half-applied reschedules and records
// what it finds when a discrepancy store is configured.
func (a *App) Reconcile(ctx context.Context) ([]models.Discrepancy, error) {
	tasks, err := a.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	found := reschedule.Scan(tasks, a.now())
	if a.discrepancies == nil {
		return found, nil
	}
	for _, d := range found {
		if err := a.discrepancies.RecordDiscrepancy(ctx, d); err != nil {
			return found, fmt.Errorf("failed to record discrepancy for %s: %w", d.TaskID, err)
		}
	}
	return found, nil
}

// OpenDiscrepancies lists the recorded discrepancies not yet resolved.
func (a *App) OpenDiscrepancies(ctx context.Context) ([]models.Discrepancy, error) {
	if a.discrepancies == nil {
		return nil, nil
	}
	return a.discrepancies.ListDiscrepancies(ctx)
}
