package lifecycle

import "github.com/nick-dorsch/agenda/pkg/models"

// LastCompletion returns the latest completion entry, or nil.
func LastCompletion(t models.Task) *models.CompletionRecord {
	if len(t.CompletionHistory) == 0 {
		return nil
	}
	rec := t.CompletionHistory[len(t.CompletionHistory)-1]
	return &rec
}

// WasRescheduledFromDate reports whether any forward entry moved the task
// away from date.
func WasRescheduledFromDate(t models.Task, date models.Date) bool {
	for _, r := range t.ForwardHistory {
		if r.OriginalDate == date {
			return true
		}
	}
	return false
}

// IsDefinitive reports whether the task is completed and was never
// rescheduled away from its scheduled date.
func IsDefinitive(t models.Task) bool {
	return t.Status == models.StatusCompleted && !WasRescheduledFromDate(t, t.ScheduledDate)
}

// SealingForward returns the forward entry that sealed the task, if the task
// is concluded because it was rescheduled away from its scheduled date.
func SealingForward(t models.Task) (models.ForwardRecord, bool) {
	rec, i := sealingForward(t)
	return rec, i >= 0
}

// sealingForward also returns the entry's position in the forward log, or
// -1. A successor's seed entry never seals it.
func sealingForward(t models.Task) (models.ForwardRecord, int) {
	if !t.IsConcluded {
		return models.ForwardRecord{}, -1
	}
	first := 0
	if _, ok := t.Received(); ok {
		first = 1
	}
	for i := len(t.ForwardHistory) - 1; i >= first; i-- {
		if t.ForwardHistory[i].OriginalDate == t.ScheduledDate {
			return t.ForwardHistory[i], i
		}
	}
	return models.ForwardRecord{}, -1
}

// DayStats aggregates the tasks that fall on a date.
type DayStats struct {
	Date           models.Date `json:"date"`
	Total          int         `json:"total"`
	Completed      int         `json:"completed"`
	Definitive     int         `json:"definitive"`
	Forwarded      int         `json:"forwarded"`
	NotDone        int         `json:"not_done"`
	Pending        int         `json:"pending"`
	CompletionRate float64     `json:"completion_rate"`
}

// ComputeDayStats counts the tasks scheduled or delivered on date.
func ComputeDayStats(tasks []models.Task, date models.Date) DayStats {
	stats := DayStats{Date: date}
	for _, t := range tasks {
		if !t.OnDate(date) {
			continue
		}
		stats.Total++
		switch t.Status {
		case models.StatusCompleted:
			stats.Completed++
			if !WasRescheduledFromDate(t, date) {
				stats.Definitive++
			}
		case models.StatusNotDone:
			stats.NotDone++
		case models.StatusForwardedDate, models.StatusForwardedPerson:
			stats.Forwarded++
		case models.StatusPending:
			stats.Pending++
		}
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total)
	}
	return stats
}
