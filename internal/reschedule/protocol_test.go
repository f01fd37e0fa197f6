package reschedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nick-dorsch/agenda/internal/db"
	"github.com/nick-dorsch/agenda/internal/store"
	"github.com/nick-dorsch/agenda/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	got []models.Discrepancy
}

func (r *recorder) RecordDiscrepancy(ctx context.Context, d models.Discrepancy) error {
	r.got = append(r.got, d)
	return nil
}

func sequentialIDs(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

func newMemoryProtocol(t *testing.T, opts ...Option) (*store.Store, *store.MemoryRepository, *Protocol) {
	t.Helper()
	repo := store.NewMemoryRepository()
	st := store.New(repo, "alice")
	t.Cleanup(st.Close)

	opts = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(sequentialIDs("succ-1", "succ-2", "succ-3")),
	}, opts...)
	return st, repo, NewProtocol(st, opts...)
}

func insertTask(t *testing.T, st *store.Store, id string, date models.Date) models.Task {
	t.Helper()
	task, err := st.Insert(context.Background(), models.Task{ID: id, Title: "task " + id, ScheduledDate: date})
	require.NoError(t, err)
	return task
}

func TestForwardSaga(t *testing.T) {
	ctx := context.Background()
	st, _, p := newMemoryProtocol(t)
	require.False(t, st.SupportsAtomicForward())

	task := insertTask(t, st, "t1", "2024-03-15")
	res, err := p.Forward(ctx, task, "2024-03-18", Options{Reason: "waiting on review"})
	require.NoError(t, err)

	pred := res.Predecessor
	assert.True(t, pred.IsConcluded)
	assert.Equal(t, models.StatusForwardedDate, pred.Status)
	require.Len(t, pred.ForwardHistory, 1)
	assert.Equal(t, "succ-1", pred.ForwardHistory[0].LinkedTaskID)
	assert.Equal(t, "waiting on review", pred.ForwardHistory[0].Reason)

	succ := res.Successor
	assert.Equal(t, "succ-1", succ.ID)
	assert.Equal(t, models.Date("2024-03-18"), succ.ScheduledDate)
	assert.Equal(t, models.StatusPending, succ.Status)
	assert.Equal(t, 1, succ.ForwardCount)
	require.Len(t, succ.ForwardHistory, 1)
	assert.Equal(t, "t1", succ.ForwardHistory[0].LinkedTaskID)

	all, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Empty(t, Scan(all, testNow))
}

func TestForwardToPerson(t *testing.T) {
	ctx := context.Background()
	st, _, p := newMemoryProtocol(t)

	task := insertTask(t, st, "t1", "2024-03-15")
	res, err := p.Forward(ctx, task, "2024-03-16", Options{ForwardedTo: "bob"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusForwardedPerson, res.Predecessor.Status)
	require.NotNil(t, res.Successor.AssignedPersonID)
	assert.Equal(t, "bob", *res.Successor.AssignedPersonID)
}

func TestForwardRefusesForwardedTask(t *testing.T) {
	ctx := context.Background()
	st, _, p := newMemoryProtocol(t)

	task := insertTask(t, st, "t1", "2024-03-15")
	res, err := p.Forward(ctx, task, "2024-03-18", Options{})
	require.NoError(t, err)

	_, err = p.Forward(ctx, res.Predecessor, "2024-03-19", Options{})
	assert.ErrorIs(t, err, ErrAlreadyForwarded)

	all, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "a refusal writes nothing")
}

func TestForwardAlwaysYieldsSuccessor(t *testing.T) {
	ctx := context.Background()
	st, _, p := newMemoryProtocol(t)

	concluded := insertTask(t, st, "concluded", "2024-03-15")
	sealed := true
	concluded, err := st.Update(ctx, concluded.ID, models.TaskPatch{IsConcluded: &sealed})
	require.NoError(t, err)
	same := insertTask(t, st, "same", "2024-03-15")

	tests := []struct {
		name string
		task models.Task
		date models.Date
	}{
		{"concluded by hand", concluded, "2024-03-18"},
		{"onto its own date", same, "2024-03-15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Forward(ctx, tt.task, tt.date, Options{})
			require.NoError(t, err)

			assert.True(t, res.Predecessor.IsConcluded)
			assert.Equal(t, models.StatusForwardedDate, res.Predecessor.Status)
			assert.Equal(t, tt.date, res.Successor.ScheduledDate)
			assert.Equal(t, tt.task.ForwardCount+1, res.Successor.ForwardCount)
			assert.Equal(t, models.StatusPending, res.Successor.Status)
			assert.Len(t, res.Successor.ForwardHistory, 1)
		})
	}

	all, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Empty(t, Scan(all, testNow), "same-date pairs are recognised as healthy")
}

func TestForwardSagaRollsBackSeal(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	st, repo, p := newMemoryProtocol(t, WithRecorder(rec))

	task := insertTask(t, st, "t1", "2024-03-15")
	boom := errors.New("disk full")
	repo.FailInsert = func(models.Task) error { return boom }

	_, err := p.Forward(ctx, task, "2024-03-18", Options{})
	require.ErrorIs(t, err, boom)

	got, err := st.Get(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, got.IsConcluded)
	assert.Nil(t, got.ConcludedAt)
	assert.Empty(t, got.ForwardHistory)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, int64(3), got.Version, "seal and rollback are two writes")
	assert.Empty(t, rec.got)
}

func TestForwardSagaRecordsDanglingSeal(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	st, repo, p := newMemoryProtocol(t, WithRecorder(rec))

	task := insertTask(t, st, "t1", "2024-03-15")
	repo.FailInsert = func(models.Task) error { return errors.New("disk full") }
	repo.FailUpdate = func(id string, patch models.TaskPatch) error {
		if patch.IfVersion != nil {
			return errors.New("connection lost")
		}
		return nil
	}

	_, err := p.Forward(ctx, task, "2024-03-18", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rollback failed")

	require.Len(t, rec.got, 1)
	d := rec.got[0]
	assert.Equal(t, models.DiscrepancyDanglingSeal, d.Kind)
	assert.Equal(t, "t1", d.TaskID)
	assert.Equal(t, "succ-1", d.LinkedTaskID)
	assert.Equal(t, testNow, d.DetectedAt)

	repo.FailUpdate = nil
	all, err := st.Load(ctx)
	require.NoError(t, err)
	found := Scan(all, testNow)
	require.Len(t, found, 1, "the scan sees the same half-written pair")
	assert.Equal(t, d.Kind, found[0].Kind)
	assert.Equal(t, d.LinkedTaskID, found[0].LinkedTaskID)
}

func TestForwardSealFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	st, repo, p := newMemoryProtocol(t)

	task := insertTask(t, st, "t1", "2024-03-15")
	repo.FailUpdate = func(string, models.TaskPatch) error { return errors.New("locked") }
	inserted := false
	repo.FailInsert = func(models.Task) error {
		inserted = true
		return nil
	}

	_, err := p.Forward(ctx, task, "2024-03-18", Options{})
	require.Error(t, err)
	assert.False(t, inserted)
}

func newAtomicProtocol(t *testing.T, ids ...string) (*store.Store, *Protocol) {
	t.Helper()
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Init(context.Background()))

	st := store.New(database, "alice")
	t.Cleanup(st.Close)
	return st, NewProtocol(st,
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(sequentialIDs(ids...)),
	)
}

func TestForwardAtomic(t *testing.T) {
	ctx := context.Background()
	st, p := newAtomicProtocol(t, "succ-1")
	require.True(t, st.SupportsAtomicForward())

	task := insertTask(t, st, "t1", "2024-03-15")
	res, err := p.Forward(ctx, task, "2024-03-18", Options{KeepOrder: true})
	require.NoError(t, err)

	assert.Equal(t, models.StatusForwardedDate, res.Predecessor.Status)
	assert.Equal(t, "succ-1", res.Successor.ID)
	assert.Equal(t, "alice", res.Successor.OwnerID)

	got, err := st.Get(ctx, "succ-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, "t1", got.ForwardHistory[0].LinkedTaskID)
}

func TestForwardAtomicRollsBack(t *testing.T) {
	ctx := context.Background()
	// The generated successor id collides with an existing row.
	st, p := newAtomicProtocol(t, "taken")

	task := insertTask(t, st, "t1", "2024-03-15")
	insertTask(t, st, "taken", "2024-03-18")

	_, err := p.Forward(ctx, task, "2024-03-18", Options{})
	require.Error(t, err)

	got, err := st.Get(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, got.IsConcluded)
	assert.Empty(t, got.ForwardHistory)
	assert.Equal(t, int64(1), got.Version, "the seal never committed")
}
