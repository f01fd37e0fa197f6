package db

import (
	"context"
	"testing"
	"time"

	"github.com/nick-dorsch/agenda/internal/store"
	"github.com/nick-dorsch/agenda/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTask(id, owner, date string) models.Task {
	return models.Task{
		ID:            id,
		OwnerID:       owner,
		Title:         "Task " + id,
		ScheduledDate: models.Date(date),
		Status:        models.StatusPending,
	}
}

func ptr[T any](v T) *T { return &v }

func TestInsertGetRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	concluded := time.Date(2024, 3, 14, 18, 0, 0, 123, time.UTC)
	completedAt := time.Date(2024, 3, 14, 17, 0, 0, 0, time.UTC)
	task := models.Task{
		ID:            "t1",
		OwnerID:       "alice",
		Title:         "Write report",
		Description:   "Quarterly",
		ScheduledDate: "2024-03-14",
		DeliveryDates: []models.Date{"2024-03-20"},
		Order:         3,
		Status:        models.StatusCompleted,
		IsConcluded:   true,
		ConcludedAt:   &concluded,
		SubItems: []models.SubItem{
			{ID: "s1", Text: "Outline", Completed: true, Order: 1, Subject: ptr("finance"), CreatedAt: completedAt},
		},
		CompletionHistory: []models.CompletionRecord{
			{CompletedAt: completedAt, Status: models.CompletionCompleted, Date: "2024-03-14"},
		},
		ForwardHistory:   []models.ForwardRecord{},
		ForwardCount:     2,
		Type:             "work",
		Priority:         "high",
		Category:         "reports",
		TimeInvestment:   "2h",
		AssignedPersonID: ptr("bob"),
		CreatedAt:        time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}

	created, err := db.Insert(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)
	assert.True(t, created.UpdatedAt.Equal(testNow), "updated_at %v", created.UpdatedAt)

	got, err := db.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.NotNil(t, got.ForwardHistory, "empty forward history stays non-nil")
}

func TestNilListsStayNil(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.Insert(ctx, newTask("t1", "alice", "2024-03-15"))
	require.NoError(t, err)
	got, err := db.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got.DeliveryDates)
	assert.Nil(t, got.SubItems)
	assert.Nil(t, got.CompletionHistory)
	assert.Nil(t, got.ForwardHistory)
	assert.Nil(t, got.ConcludedAt)
	assert.Nil(t, got.AssignedPersonID)
}

func TestGetNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFetchFilters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	delivered := newTask("delivery", "alice", "2024-03-10")
	delivered.DeliveryDates = []models.Date{"2024-03-15"}
	concluded := newTask("sealed", "alice", "2024-03-15")
	concluded.IsConcluded = true
	done := newTask("done", "alice", "2024-03-15")
	done.Status = models.StatusCompleted
	done.Order = 1

	for _, task := range []models.Task{
		newTask("today", "alice", "2024-03-15"),
		newTask("tomorrow", "alice", "2024-03-16"),
		newTask("other-owner", "bob", "2024-03-15"),
		delivered, concluded, done,
	} {
		_, err := db.Insert(ctx, task)
		require.NoError(t, err, "insert %s", task.ID)
	}

	date := models.Date("2024-03-15")
	tests := []struct {
		name   string
		filter models.Filter
		want   []string
	}{
		{"owner and date", models.Filter{OwnerID: "alice", Date: &date}, []string{"delivery", "done", "sealed", "today"}},
		{"exclude concluded", models.Filter{OwnerID: "alice", Date: &date, ExcludeConcluded: true}, []string{"delivery", "done", "today"}},
		{"status", models.Filter{OwnerID: "alice", Status: ptr(models.StatusCompleted)}, []string{"done"}},
		{"other owner", models.Filter{OwnerID: "bob"}, []string{"other-owner"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := db.Fetch(ctx, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, task := range tasks {
				ids = append(ids, task.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task := newTask("t1", "alice", "2024-03-15")
	task.AssignedPersonID = ptr("bob")
	_, err := db.Insert(ctx, task)
	require.NoError(t, err)

	concludedAt := time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)
	updated, err := db.Update(ctx, "t1", models.TaskPatch{
		Title:       ptr("Renamed"),
		IsConcluded: ptr(true),
		ConcludedAt: &concludedAt,
		CompletionHistory: &[]models.CompletionRecord{
			{CompletedAt: concludedAt, Status: models.CompletionCompleted, Date: "2024-03-15"},
		},
		Status:    ptr(models.StatusCompleted),
		IfVersion: ptr(int64(1)),
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.True(t, updated.IsConcluded)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.Equal(t, int64(2), updated.Version)
	require.NotNil(t, updated.ConcludedAt)
	assert.True(t, updated.ConcludedAt.Equal(concludedAt))

	cleared, err := db.Update(ctx, "t1", models.TaskPatch{
		ConcludedAt:      &time.Time{},
		AssignedPersonID: ptr(""),
	})
	require.NoError(t, err)
	assert.Nil(t, cleared.ConcludedAt)
	assert.Nil(t, cleared.AssignedPersonID)
	assert.Equal(t, "Renamed", cleared.Title, "untouched title survives")
}

func TestUpdateVersionConflict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.Insert(ctx, newTask("t1", "alice", "2024-03-15"))
	require.NoError(t, err)

	_, err = db.Update(ctx, "t1", models.TaskPatch{Title: ptr("x"), IfVersion: ptr(int64(7))})
	require.ErrorIs(t, err, store.ErrVersionConflict)

	got, err := db.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Task t1", got.Title)
	assert.Equal(t, int64(1), got.Version)

	_, err = db.Update(ctx, "missing", models.TaskPatch{Title: ptr("x")})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.Insert(ctx, newTask("t1", "alice", "2024-03-15"))
	require.NoError(t, err)
	require.NoError(t, db.Delete(ctx, "t1"))

	_, err = db.Get(ctx, "t1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, db.Delete(ctx, "t1"), store.ErrNotFound, "second delete")
}

func TestInsertDuplicateID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.Insert(ctx, newTask("t1", "alice", "2024-03-15"))
	require.NoError(t, err)
	_, err = db.Insert(ctx, newTask("t1", "alice", "2024-03-16"))
	assert.Error(t, err, "duplicate insert")
}
