package lifecycle

import (
	"testing"
	"time"

	"github.com/nick-dorsch/agenda/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	morning = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	evening = time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)
	nextDay = time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC)
)

func pendingTask() models.Task {
	return models.Task{ID: "t1", ScheduledDate: "2024-03-15", Status: models.StatusPending}
}

func TestRecordCompletion(t *testing.T) {
	task := pendingTask()

	patch, changed := RecordCompletion(task, models.OutcomeCompleted, morning)
	require.True(t, changed)
	require.NotNil(t, patch.Status)
	assert.Equal(t, models.StatusCompleted, *patch.Status)

	task = task.Apply(patch)
	require.Len(t, task.CompletionHistory, 1)
	rec := task.CompletionHistory[0]
	assert.Equal(t, models.CompletionCompleted, rec.Status)
	assert.Equal(t, models.Date("2024-03-15"), rec.Date)
	assert.False(t, rec.WasForwarded)
	assert.Equal(t, morning, rec.CompletedAt)
}

func TestRecordCompletionSameDayDuplicate(t *testing.T) {
	task := pendingTask()
	patch, _ := RecordCompletion(task, models.OutcomeCompleted, morning)
	task = task.Apply(patch)

	_, changed := RecordCompletion(task, models.OutcomeCompleted, evening)
	assert.False(t, changed, "same outcome on the same day is a no-op")

	patch, changed = RecordCompletion(task, models.OutcomeCompleted, nextDay)
	assert.True(t, changed, "same outcome on another day is recorded")
	assert.Len(t, *patch.CompletionHistory, 2)

	patch, changed = RecordCompletion(task, models.OutcomeNotDone, evening)
	require.True(t, changed)
	assert.Equal(t, models.StatusNotDone, *patch.Status)
}

func TestRecordCompletionInvalidOutcome(t *testing.T) {
	_, changed := RecordCompletion(pendingTask(), models.Outcome("maybe"), morning)
	assert.False(t, changed)
}

func TestRecordCompletionMarksForwarded(t *testing.T) {
	task := pendingTask()
	task.ForwardHistory = []models.ForwardRecord{{OriginalDate: "2024-03-14", NewDate: "2024-03-15"}}

	patch, changed := RecordCompletion(task, models.OutcomeNotDone, morning)
	require.True(t, changed)
	assert.True(t, (*patch.CompletionHistory)[0].WasForwarded)
}

func TestSetPendingAppendsReverted(t *testing.T) {
	task := pendingTask()

	_, changed := SetPending(task, morning)
	assert.False(t, changed, "nothing to undo")

	patch, _ := RecordCompletion(task, models.OutcomeCompleted, morning)
	task = task.Apply(patch)

	patch, changed = SetPending(task, evening)
	require.True(t, changed)
	task = task.Apply(patch)

	require.Len(t, task.CompletionHistory, 2, "undo never removes entries")
	assert.Equal(t, models.CompletionReverted, task.CompletionHistory[1].Status)
	assert.Equal(t, models.StatusPending, task.Status)

	_, changed = SetPending(task, evening)
	assert.False(t, changed, "already pending")
}

func TestConcludeAndUnconclude(t *testing.T) {
	task := pendingTask()
	patch, _ := RecordCompletion(task, models.OutcomeNotDone, morning)
	task = task.Apply(patch)

	patch, changed := Conclude(task, evening)
	require.True(t, changed)
	task = task.Apply(patch)
	assert.True(t, task.IsConcluded)
	require.NotNil(t, task.ConcludedAt)
	assert.Equal(t, evening, *task.ConcludedAt)
	assert.Equal(t, models.StatusNotDone, task.Status, "conclude leaves status alone")

	_, changed = Conclude(task, evening)
	assert.False(t, changed)

	patch, changed = Unconclude(task, nextDay)
	require.True(t, changed)
	task = task.Apply(patch)
	assert.False(t, task.IsConcluded)
	assert.Nil(t, task.ConcludedAt)
	assert.Equal(t, models.StatusPending, task.Status)
	assert.Equal(t, models.CompletionReopened, LastCompletion(task).Status)

	_, changed = Unconclude(task, nextDay)
	assert.False(t, changed)
}

func TestDelegate(t *testing.T) {
	task := pendingTask()

	patch, changed := Delegate(task, "bob")
	require.True(t, changed)
	task = task.Apply(patch)
	require.NotNil(t, task.AssignedPersonID)
	assert.Equal(t, "bob", *task.AssignedPersonID)

	_, changed = Delegate(task, "bob")
	assert.False(t, changed)

	patch, changed = Delegate(task, "")
	require.True(t, changed)
	assert.Nil(t, task.Apply(patch).AssignedPersonID)
}

// sealedTask is a task rescheduled away from 2024-03-15 at evening.
func sealedTask() models.Task {
	return models.Task{
		ID:            "t1",
		ScheduledDate: "2024-03-15",
		Status:        models.StatusForwardedDate,
		IsConcluded:   true,
		ConcludedAt:   &evening,
		ForwardHistory: []models.ForwardRecord{
			{ForwardedAt: evening, OriginalDate: "2024-03-15", NewDate: "2024-03-16", LinkedTaskID: "t2"},
		},
	}
}

func TestDecisionAfterSealWins(t *testing.T) {
	task := sealedTask()

	patch, changed := RecordCompletion(task, models.OutcomeCompleted, evening)
	require.True(t, changed)
	task = task.Apply(patch)
	assert.Equal(t, models.StatusCompleted, task.Status)
	assert.Equal(t, 1, task.CompletionHistory[0].ForwardsSeen)
	assert.Equal(t, models.StatusCompleted, DeriveStatus(task), "status survives a rebuild")

	patch, changed = SetPending(task, evening)
	require.True(t, changed)
	task = task.Apply(patch)
	assert.Equal(t, models.StatusPending, task.Status)
	assert.True(t, task.IsConcluded, "the seal itself stays")
}

func TestDecisionBeforeSealIsOverridden(t *testing.T) {
	task := pendingTask()
	patch, _ := RecordCompletion(task, models.OutcomeNotDone, evening)
	task = task.Apply(patch)
	require.Zero(t, task.CompletionHistory[0].ForwardsSeen)

	concluded := true
	history := []models.ForwardRecord{{ForwardedAt: evening, OriginalDate: "2024-03-15", NewDate: "2024-03-16"}}
	task = task.Apply(Normalize(task, models.TaskPatch{IsConcluded: &concluded, ForwardHistory: &history}))
	assert.Equal(t, models.StatusForwardedDate, task.Status)

	// Clicking the same outcome again the same day is recorded, since the
	// reschedule came in between.
	patch, changed := RecordCompletion(task, models.OutcomeNotDone, evening)
	require.True(t, changed)
	assert.Equal(t, models.StatusNotDone, *patch.Status)
}

func TestDeriveStatus(t *testing.T) {
	to := "bob"
	empty := ""
	tests := []struct {
		name string
		task models.Task
		want models.Status
	}{
		{"no history", models.Task{ScheduledDate: "2024-03-15"}, models.StatusPending},
		{
			"latest completion wins",
			models.Task{CompletionHistory: []models.CompletionRecord{
				{Status: models.CompletionCompleted},
				{Status: models.CompletionNotDone},
			}},
			models.StatusNotDone,
		},
		{
			"sealed by forward",
			models.Task{
				ScheduledDate:     "2024-03-15",
				IsConcluded:       true,
				CompletionHistory: []models.CompletionRecord{{Status: models.CompletionCompleted}},
				ForwardHistory:    []models.ForwardRecord{{OriginalDate: "2024-03-15", NewDate: "2024-03-16"}},
			},
			models.StatusForwardedDate,
		},
		{
			"sealed by forward to person",
			models.Task{
				ScheduledDate:  "2024-03-15",
				IsConcluded:    true,
				ForwardHistory: []models.ForwardRecord{{OriginalDate: "2024-03-15", ForwardedTo: &to}},
			},
			models.StatusForwardedPerson,
		},
		{
			"empty forwarded-to is a date forward",
			models.Task{
				ScheduledDate:  "2024-03-15",
				IsConcluded:    true,
				ForwardHistory: []models.ForwardRecord{{OriginalDate: "2024-03-15", ForwardedTo: &empty}},
			},
			models.StatusForwardedDate,
		},
		{
			"successor seed is not a seal",
			models.Task{
				ScheduledDate:  "2024-03-16",
				ForwardHistory: []models.ForwardRecord{{OriginalDate: "2024-03-15", NewDate: "2024-03-16"}},
			},
			models.StatusPending,
		},
		{
			"same-date successor is not sealed by its seed",
			models.Task{
				ScheduledDate:  "2024-03-15",
				IsConcluded:    true,
				ForwardCount:   1,
				ForwardHistory: []models.ForwardRecord{{OriginalDate: "2024-03-15", NewDate: "2024-03-15"}},
			},
			models.StatusPending,
		},
		{
			"decision after the seal wins",
			models.Task{
				ScheduledDate:     "2024-03-15",
				IsConcluded:       true,
				CompletionHistory: []models.CompletionRecord{{Status: models.CompletionCompleted, ForwardsSeen: 1}},
				ForwardHistory:    []models.ForwardRecord{{OriginalDate: "2024-03-15", NewDate: "2024-03-16"}},
			},
			models.StatusCompleted,
		},
		{
			"concluded without forward keeps completion status",
			models.Task{
				ScheduledDate:     "2024-03-15",
				IsConcluded:       true,
				CompletionHistory: []models.CompletionRecord{{Status: models.CompletionCompleted}},
			},
			models.StatusCompleted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.task))
		})
	}
}

func TestNormalizeRepairsStatus(t *testing.T) {
	task := pendingTask()
	history := []models.CompletionRecord{{Status: models.CompletionCompleted, CompletedAt: morning}}
	bogus := models.StatusNotDone

	patch := Normalize(task, models.TaskPatch{CompletionHistory: &history, Status: &bogus})
	require.NotNil(t, patch.Status)
	assert.Equal(t, models.StatusCompleted, *patch.Status)

	title := "renamed"
	patch = Normalize(task, models.TaskPatch{Title: &title})
	assert.Nil(t, patch.Status, "unchanged status is not written")
}
