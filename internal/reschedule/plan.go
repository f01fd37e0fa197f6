// Package reschedule moves tasks to a new date by sealing the original and
// creating a linked successor.
package reschedule

import (
	"fmt"
	"time"

	"github.com/nick-dorsch/agenda/pkg/models"
)

// ReceivedReasonFormat is the reason seeded on a successor's forward log.
const ReceivedReasonFormat = "received from %s"

type Options struct {
	Reason string
	// KeepOrder carries the manual rank over to the successor.
	KeepOrder bool
	// KeepChecklist preserves sub-item completion on the successor.
	KeepChecklist bool
	// ForwardedTo hands the successor to another person.
	ForwardedTo string
}

// SealPatch builds the update that seals t after moving it to date.
func SealPatch(t models.Task, date models.Date, successorID string, opts Options, now time.Time) models.TaskPatch {
	var to *string
	if opts.ForwardedTo != "" {
		person := opts.ForwardedTo
		to = &person
	}

	history := make([]models.ForwardRecord, 0, len(t.ForwardHistory)+1)
	history = append(history, t.ForwardHistory...)
	history = append(history, models.ForwardRecord{
		ForwardedAt:     now,
		ForwardedTo:     to,
		OriginalDate:    t.ScheduledDate,
		NewDate:         date,
		StatusAtForward: t.Status,
		Reason:          opts.Reason,
		LinkedTaskID:    successorID,
	})

	concluded := true
	at := now
	return models.TaskPatch{
		ForwardHistory: &history,
		IsConcluded:    &concluded,
		ConcludedAt:    &at,
	}
}

// RestorePatch undoes SealPatch on a predecessor that was sealed from
// original, guarded by the sealed row's version.
func RestorePatch(original models.Task, sealedVersion int64) models.TaskPatch {
	var history []models.ForwardRecord
	if original.ForwardHistory != nil {
		history = append([]models.ForwardRecord{}, original.ForwardHistory...)
	}
	concluded := original.IsConcluded
	var at time.Time
	if original.ConcludedAt != nil {
		at = *original.ConcludedAt
	}
	version := sealedVersion
	return models.TaskPatch{
		ForwardHistory: &history,
		IsConcluded:    &concluded,
		ConcludedAt:    &at,
		IfVersion:      &version,
	}
}

// Successor clones t onto date under a new id.
func Successor(t models.Task, date models.Date, id string, opts Options, now time.Time) models.Task {
	s := t.Clone()
	s.ID = id
	s.ScheduledDate = date
	s.Status = models.StatusPending
	s.ForwardCount = t.ForwardCount + 1
	s.IsConcluded = false
	s.ConcludedAt = nil
	s.CompletionHistory = []models.CompletionRecord{}
	s.CreatedAt = time.Time{}
	s.UpdatedAt = time.Time{}
	s.Version = 0

	if !opts.KeepOrder {
		s.Order = 0
	}
	if !opts.KeepChecklist {
		for i := range s.SubItems {
			s.SubItems[i].Completed = false
			s.SubItems[i].NotDone = false
		}
	}
	if opts.ForwardedTo != "" {
		person := opts.ForwardedTo
		s.AssignedPersonID = &person
	}

	s.ForwardHistory = []models.ForwardRecord{{
		ForwardedAt:     now,
		ForwardedTo:     nil,
		OriginalDate:    t.ScheduledDate,
		NewDate:         date,
		StatusAtForward: models.StatusPending,
		Reason:          fmt.Sprintf(ReceivedReasonFormat, t.ScheduledDate),
		LinkedTaskID:    t.ID,
	}}
	return s
}
