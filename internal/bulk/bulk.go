// Package bulk applies a single-task operation across a selection, isolating
// per-item failures.
package bulk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nick-dorsch/agenda/internal/notify"
	"github.com/nick-dorsch/agenda/pkg/models"
)

// maxListedTitles caps the titles named in a failure summary.
const maxListedTitles = 3

type Failure struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

type Result struct {
	SuccessCount int       `json:"success_count"`
	Failed       []Failure `json:"failed"`
}

// Attempts is the number of tasks the batch covered.
func (r Result) Attempts() int { return r.SuccessCount + len(r.Failed) }

// Op is a single-task operation.
type Op func(ctx context.Context, t models.Task) error

// Run applies op to every task sequentially. A failing item never aborts the
// batch. Once ctx is done the remaining items are recorded as failed without
// being attempted.
func Run(ctx context.Context, tasks []models.Task, op Op) Result {
	return RunWithLogger(ctx, slog.Default(), tasks, op)
}

func RunWithLogger(ctx context.Context, log *slog.Logger, tasks []models.Task, op Op) Result {
	res := Result{Failed: []Failure{}}
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			res.Failed = append(res.Failed, Failure{ID: t.ID, Title: t.Title, Reason: err.Error()})
			continue
		}

		if err := op(ctx, t); err != nil {
			log.Warn("bulk item failed", "task_id", t.ID, "error", err)
			res.Failed = append(res.Failed, Failure{ID: t.ID, Title: t.Title, Reason: err.Error()})
			continue
		}
		res.SuccessCount++
	}
	return res
}

// Report emits one success notification and, when anything failed, one
// failure notification naming up to three tasks. done is the past-tense verb
// of the operation, e.g. "rescheduled".
func Report(sink notify.Sink, done string, r Result) {
	if r.SuccessCount > 0 || len(r.Failed) == 0 {
		sink.Success(fmt.Sprintf("%d %s %s", r.SuccessCount, plural(r.SuccessCount), done))
	}
	if len(r.Failed) == 0 {
		return
	}
	sink.Error(FailureSummary(r))
}

// FailureSummary renders the failed items of r for a single notification.
func FailureSummary(r Result) string {
	titles := make([]string, 0, maxListedTitles)
	for i, f := range r.Failed {
		if i == maxListedTitles {
			break
		}
		title := f.Title
		if title == "" {
			title = f.ID
		}
		titles = append(titles, title)
	}

	msg := fmt.Sprintf("%d %s failed: %s", len(r.Failed), plural(len(r.Failed)), strings.Join(titles, ", "))
	if extra := len(r.Failed) - len(titles); extra > 0 {
		msg += fmt.Sprintf(" (+%d more)", extra)
	}
	return msg
}

func plural(n int) string {
	if n == 1 {
		return "task"
	}
	return "tasks"
}
