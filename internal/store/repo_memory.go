package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nick-dorsch/agenda/pkg/models"
)

// MemoryRepository is a Repository backed by a map. The Fail* hooks let
// callers inject write failures.
type MemoryRepository struct {
	mu    sync.RWMutex
	tasks map[string]models.Task
	now   func() time.Time

	listenersMu sync.RWMutex
	listeners   map[int]memoryListener
	nextID      int

	FailInsert func(t models.Task) error
	FailUpdate func(id string, patch models.TaskPatch) error
	FailDelete func(id string) error
}

type memoryListener struct {
	ownerID string
	fn      func(ctx context.Context)
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tasks:     make(map[string]models.Task),
		now:       time.Now,
		listeners: make(map[int]memoryListener),
	}
}

// SetClock overrides the clock used for CreatedAt/UpdatedAt.
func (r *MemoryRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *MemoryRepository) Fetch(ctx context.Context, filter models.Filter) ([]models.Task, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if filter.Matches(t) {
			out = append(out, t.Clone())
		}
	}
	SortTasks(out)
	return out, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (models.Task, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return models.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t.Clone(), nil
}

func (r *MemoryRepository) Insert(ctx context.Context, t models.Task) (models.Task, error) {
	if r.FailInsert != nil {
		if err := r.FailInsert(t); err != nil {
			return models.Task{}, err
		}
	}

	r.mu.Lock()
	if _, exists := r.tasks[t.ID]; exists {
		r.mu.Unlock()
		return models.Task{}, fmt.Errorf("task already exists: %s", t.ID)
	}
	now := r.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	t.Version = 1
	r.tasks[t.ID] = t.Clone()
	r.mu.Unlock()

	r.notify(ctx, t.OwnerID)
	return t.Clone(), nil
}

func (r *MemoryRepository) Update(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	if r.FailUpdate != nil {
		if err := r.FailUpdate(id, patch); err != nil {
			return models.Task{}, err
		}
	}

	r.mu.Lock()
	current, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return models.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if patch.IfVersion != nil && *patch.IfVersion != current.Version {
		r.mu.Unlock()
		return models.Task{}, fmt.Errorf("%w: %s at version %d, expected %d", ErrVersionConflict, id, current.Version, *patch.IfVersion)
	}
	updated := current.Apply(patch)
	updated.UpdatedAt = r.now()
	updated.Version = current.Version + 1
	r.tasks[id] = updated
	r.mu.Unlock()

	r.notify(ctx, updated.OwnerID)
	return updated.Clone(), nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	if r.FailDelete != nil {
		if err := r.FailDelete(id); err != nil {
			return err
		}
	}

	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.tasks, id)
	r.mu.Unlock()

	r.notify(ctx, t.OwnerID)
	return nil
}

func (r *MemoryRepository) OnChange(ownerID string, fn func(ctx context.Context)) func() {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()

	id := r.nextID
	r.nextID++
	r.listeners[id] = memoryListener{ownerID: ownerID, fn: fn}

	return func() {
		r.listenersMu.Lock()
		defer r.listenersMu.Unlock()
		delete(r.listeners, id)
	}
}

// Touch fires change listeners for ownerID as if another session had
// written to the owner's tasks.
func (r *MemoryRepository) Touch(ctx context.Context, ownerID string) {
	r.notify(ctx, ownerID)
}

func (r *MemoryRepository) notify(ctx context.Context, ownerID string) {
	r.listenersMu.RLock()
	fns := make([]func(ctx context.Context), 0, len(r.listeners))
	for _, l := range r.listeners {
		if l.ownerID == "" || l.ownerID == ownerID {
			fns = append(fns, l.fn)
		}
	}
	r.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(ctx)
	}
}

// SortTasks orders tasks by scheduled date, manual order (unranked last),
// then creation time.
func SortTasks(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.ScheduledDate != b.ScheduledDate {
			return a.ScheduledDate.Before(b.ScheduledDate)
		}
		if a.Order != b.Order {
			if a.Order == 0 {
				return false
			}
			if b.Order == 0 {
				return true
			}
			return a.Order < b.Order
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
