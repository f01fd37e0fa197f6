package agenda

import (
	"context"
	"fmt"

	"github.com/nick-dorsch/agenda/internal/bulk"
	"github.com/nick-dorsch/agenda/internal/reschedule"
	"github.com/nick-dorsch/agenda/pkg/models"
)

// BulkAction names a bulk operation.
type BulkAction string

const (
	BulkComplete   BulkAction = "complete"
	BulkNotDone    BulkAction = "not-done"
	BulkReschedule BulkAction = "reschedule"
	BulkDelegate   BulkAction = "delegate"
	BulkDelete     BulkAction = "delete"
	BulkConclude   BulkAction = "conclude"
)

// BulkRequest carries the action-specific arguments of a bulk operation.
type BulkRequest struct {
	Action   BulkAction          `json:"action"`
	IDs      []string            `json:"ids"`
	Date     models.Date         `json:"date,omitempty"`
	PersonID string              `json:"person_id,omitempty"`
	Options  *reschedule.Options `json:"options,omitempty"`
}

var bulkVerbs = map[BulkAction]string{
	BulkComplete:   "completed",
	BulkNotDone:    "marked not done",
	BulkReschedule: "rescheduled",
	BulkDelegate:   "delegated",
	BulkDelete:     "deleted",
	BulkConclude:   "concluded",
}

// ParseBulkAction validates a bulk action name.
func ParseBulkAction(s string) (BulkAction, error) {
	a := BulkAction(s)
	if _, ok := bulkVerbs[a]; !ok {
		return "", fmt.Errorf("unknown bulk action: %q", s)
	}
	return a, nil
}

// Bulk runs req over every id, never stopping at a failure, and reports the
// outcome as one success notification plus at most one failure notification.
func (a *App) Bulk(ctx context.Context, req BulkRequest) (bulk.Result, error) {
	verb, ok := bulkVerbs[req.Action]
	if !ok {
		err := fmt.Errorf("unknown bulk action: %q", req.Action)
		a.sink.Error(err.Error())
		return bulk.Result{}, err
	}

	op, err := a.bulkOp(req)
	if err != nil {
		a.sink.Error(fmt.Sprintf("Failed to run bulk %s: %v", req.Action, err))
		return bulk.Result{}, err
	}

	tasks, missing := a.resolve(ctx, req.IDs)
	res := bulk.RunWithLogger(ctx, a.log, tasks, func(ctx context.Context, t models.Task) error {
		if err, ok := missing[t.ID]; ok {
			return err
		}
		return op(ctx, t)
	})

	a.log.Info("bulk operation finished", "action", req.Action, "succeeded", res.SuccessCount, "failed", len(res.Failed))
	bulk.Report(a.sink, verb, res)
	return res, nil
}

func (a *App) bulkOp(req BulkRequest) (bulk.Op, error) {
	switch req.Action {
	case BulkComplete, BulkNotDone:
		outcome := models.OutcomeCompleted
		if req.Action == BulkNotDone {
			outcome = models.OutcomeNotDone
		}
		return func(ctx context.Context, t models.Task) error {
			_, _, err := a.rules.RecordCompletion(ctx, t.ID, outcome)
			return err
		}, nil
	case BulkReschedule:
		if req.Date.IsZero() {
			return nil, reschedule.ErrNoDate
		}
		opts := a.options(req.Options)
		return func(ctx context.Context, t models.Task) error {
			_, err := a.reschedule(ctx, t, req.Date, opts)
			if isRefusal(err) {
				a.log.Info("reschedule skipped", "task_id", t.ID, "date", req.Date, "reason", err)
				return nil
			}
			return err
		}, nil
	case BulkDelegate:
		if req.PersonID == "" {
			return nil, fmt.Errorf("person id is required")
		}
		return func(ctx context.Context, t models.Task) error {
			_, _, err := a.rules.Delegate(ctx, t.ID, req.PersonID)
			return err
		}, nil
	case BulkDelete:
		return func(ctx context.Context, t models.Task) error {
			return a.store.Remove(ctx, t.ID)
		}, nil
	case BulkConclude:
		return func(ctx context.Context, t models.Task) error {
			_, _, err := a.rules.Conclude(ctx, t.ID)
			return err
		}, nil
	}
	return nil, fmt.Errorf("unknown bulk action: %q", req.Action)
}

// resolve looks up ids in order. An id that cannot be loaded keeps its place
// as a bare task and its load error is returned by id, so the batch reports
// it where the caller listed it.
func (a *App) resolve(ctx context.Context, ids []string) ([]models.Task, map[string]error) {
	tasks := make([]models.Task, 0, len(ids))
	missing := make(map[string]error)
	for _, id := range ids {
		t, err := a.store.Get(ctx, id)
		if err != nil {
			missing[id] = err
			t = models.Task{ID: id}
		}
		tasks = append(tasks, t)
	}
	return tasks, missing
}
