// Package lifecycle holds the task transition rules, the history ledger
// queries built on top of them, and a Service that applies the rules through
// a task store.
package lifecycle

import (
	"time"

	"github.com/nick-dorsch/agenda/pkg/models"
)

// RecordCompletion appends a decisive outcome to the completion log.
// It is a no-op when the latest entry already records the same outcome on the
// same calendar day as now and no reschedule has sealed the task since.
func RecordCompletion(t models.Task, outcome models.Outcome, now time.Time) (models.TaskPatch, bool) {
	if !outcome.Valid() {
		return models.TaskPatch{}, false
	}

	if last := LastCompletion(t); last != nil &&
		last.Status == models.CompletionStatus(outcome) &&
		models.SameDay(last.CompletedAt, now, now.Location()) &&
		DeriveStatus(t) == outcome.Status() {
		return models.TaskPatch{}, false
	}

	history := appendCompletion(t.CompletionHistory, entry(t, models.CompletionStatus(outcome), now))
	patch := models.TaskPatch{CompletionHistory: &history}
	return withStatus(t, patch), true
}

// SetPending undoes the last decision. The undo is itself appended to the
// log as a reverted entry; nothing is ever removed.
func SetPending(t models.Task, now time.Time) (models.TaskPatch, bool) {
	last := LastCompletion(t)
	if last == nil || last.Implies() == models.StatusPending {
		return models.TaskPatch{}, false
	}

	history := appendCompletion(t.CompletionHistory, entry(t, models.CompletionReverted, now))
	patch := models.TaskPatch{CompletionHistory: &history}
	return withStatus(t, patch), true
}

// Conclude seals the task. Status is left alone.
func Conclude(t models.Task, now time.Time) (models.TaskPatch, bool) {
	if t.IsConcluded {
		return models.TaskPatch{}, false
	}

	concluded := true
	at := now
	patch := models.TaskPatch{IsConcluded: &concluded, ConcludedAt: &at}
	return withStatus(t, patch), true
}

// Unconclude is a soft reopen: the seal is lifted and the task goes back to
// pending through a reopened entry in the completion log.
func Unconclude(t models.Task, now time.Time) (models.TaskPatch, bool) {
	if !t.IsConcluded {
		return models.TaskPatch{}, false
	}

	concluded := false
	var cleared time.Time
	history := appendCompletion(t.CompletionHistory, entry(t, models.CompletionReopened, now))
	patch := models.TaskPatch{
		IsConcluded:       &concluded,
		ConcludedAt:       &cleared,
		CompletionHistory: &history,
	}
	return withStatus(t, patch), true
}

// Delegate assigns the task to personID. An empty personID clears the
// assignment.
func Delegate(t models.Task, personID string) (models.TaskPatch, bool) {
	current := ""
	if t.AssignedPersonID != nil {
		current = *t.AssignedPersonID
	}
	if current == personID {
		return models.TaskPatch{}, false
	}

	id := personID
	return models.TaskPatch{AssignedPersonID: &id}, true
}

// DeriveStatus computes the status implied by the task's logs and seal.
// A task sealed after being rescheduled away from its own date is forwarded
// unless a decision was recorded after the seal; otherwise the latest
// completion entry decides, defaulting to pending.
func DeriveStatus(t models.Task) models.Status {
	last := LastCompletion(t)
	if rec, i := sealingForward(t); i >= 0 && (last == nil || last.ForwardsSeen <= i) {
		if rec.ForwardedTo != nil && *rec.ForwardedTo != "" {
			return models.StatusForwardedPerson
		}
		return models.StatusForwardedDate
	}
	if last != nil {
		return last.Implies()
	}
	return models.StatusPending
}

// Normalize rebuilds the denormalized status of before+patch into patch.
func Normalize(before models.Task, patch models.TaskPatch) models.TaskPatch {
	return withStatus(before, patch)
}

func withStatus(t models.Task, patch models.TaskPatch) models.TaskPatch {
	status := DeriveStatus(t.Apply(patch))
	if status != t.Status || patch.Status != nil {
		patch.Status = &status
	}
	return patch
}

func entry(t models.Task, status models.CompletionStatus, now time.Time) models.CompletionRecord {
	return models.CompletionRecord{
		CompletedAt:  now,
		Status:       status,
		Date:         t.ScheduledDate,
		WasForwarded: len(t.ForwardHistory) > 0,
		ForwardsSeen: len(t.ForwardHistory),
	}
}

func appendCompletion(history []models.CompletionRecord, rec models.CompletionRecord) []models.CompletionRecord {
	out := make([]models.CompletionRecord, 0, len(history)+1)
	out = append(out, history...)
	return append(out, rec)
}
