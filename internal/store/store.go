package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nick-dorsch/agenda/internal/lifecycle"
	"github.com/nick-dorsch/agenda/pkg/models"
)

// Store owns the cached snapshot of one owner's tasks. Mutations go straight
// to the repository; on success the snapshot is dropped and the next read
// refetches. External changes reported by the repository take the same path.
type Store struct {
	repo    Repository
	ownerID string
	log     *slog.Logger

	mu         sync.Mutex
	snapshot   []models.Task
	valid      bool
	generation uint64

	subsMu  sync.RWMutex
	subs    map[int]func()
	nextSub int

	unsubscribe func()
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New creates a Store for ownerID and subscribes it to the repository's
// change feed. Call Close to release the subscription.
func New(repo Repository, ownerID string, opts ...Option) *Store {
	s := &Store{
		repo:    repo,
		ownerID: ownerID,
		log:     slog.Default(),
		subs:    make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.unsubscribe = repo.OnChange(ownerID, func(ctx context.Context) {
		s.Invalidate()
	})
	return s
}

func (s *Store) OwnerID() string { return s.ownerID }

// Repository exposes the underlying repository for adapters that need
// capabilities beyond the Store contract.
func (s *Store) Repository() Repository { return s.repo }

// Load returns the owner's tasks, refetching when the snapshot is stale.
func (s *Store) Load(ctx context.Context) ([]models.Task, error) {
	s.mu.Lock()
	if s.valid {
		out := cloneAll(s.snapshot)
		s.mu.Unlock()
		return out, nil
	}
	gen := s.generation
	s.mu.Unlock()

	tasks, err := s.repo.Fetch(ctx, models.Filter{OwnerID: s.ownerID})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	// An invalidation that raced with the fetch wins; the result is still
	// handed to the caller but not cached.
	if s.generation == gen {
		s.snapshot = cloneAll(tasks)
		s.valid = true
	}
	s.mu.Unlock()

	return tasks, nil
}

// LoadDate returns the tasks scheduled or delivered on date.
func (s *Store) LoadDate(ctx context.Context, date models.Date) ([]models.Task, error) {
	tasks, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.OnDate(date) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Get returns one task, from the snapshot when it is fresh.
func (s *Store) Get(ctx context.Context, id string) (models.Task, error) {
	s.mu.Lock()
	if s.valid {
		for _, t := range s.snapshot {
			if t.ID == id {
				s.mu.Unlock()
				return t.Clone(), nil
			}
		}
	}
	s.mu.Unlock()

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if s.ownerID != "" && t.OwnerID != s.ownerID {
		return models.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, nil
}

// Insert persists a new task. Missing ids are generated and the status is
// derived from the task's logs.
func (s *Store) Insert(ctx context.Context, t models.Task) (models.Task, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.OwnerID == "" {
		t.OwnerID = s.ownerID
	}
	t.Status = lifecycle.DeriveStatus(t)

	created, err := s.repo.Insert(ctx, t)
	if err != nil {
		return models.Task{}, err
	}

	s.log.Debug("task inserted", "task_id", created.ID, "owner_id", created.OwnerID)
	s.Invalidate()
	return created, nil
}

// Update issues a partial update. The stored status is rebuilt from the
// post-update logs before the write.
func (s *Store) Update(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	patch = lifecycle.Normalize(before, patch)

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return models.Task{}, err
	}

	s.log.Debug("task updated", "task_id", id, "version", updated.Version)
	s.Invalidate()
	return updated, nil
}

func (s *Store) Remove(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Debug("task removed", "task_id", id)
	s.Invalidate()
	return nil
}

// ForwardAtomic seals predecessorID and inserts successor in a single
// repository transaction. It returns ErrAtomicUnsupported when the
// repository has no such capability.
func (s *Store) ForwardAtomic(ctx context.Context, predecessorID string, seal models.TaskPatch, successor models.Task) (models.Task, models.Task, error) {
	fw, ok := s.repo.(Forwarder)
	if !ok {
		return models.Task{}, models.Task{}, ErrAtomicUnsupported
	}

	before, err := s.repo.Get(ctx, predecessorID)
	if err != nil {
		return models.Task{}, models.Task{}, err
	}
	seal = lifecycle.Normalize(before, seal)
	if successor.OwnerID == "" {
		successor.OwnerID = s.ownerID
	}
	successor.Status = lifecycle.DeriveStatus(successor)

	pred, succ, err := fw.ForwardAtomic(ctx, predecessorID, seal, successor)
	if err != nil {
		return models.Task{}, models.Task{}, err
	}

	s.Invalidate()
	return pred, succ, nil
}

// SupportsAtomicForward reports whether ForwardAtomic can succeed.
func (s *Store) SupportsAtomicForward() bool {
	_, ok := s.repo.(Forwarder)
	return ok
}

// Invalidate drops the snapshot and notifies subscribers.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.valid = false
	s.generation++
	s.mu.Unlock()

	s.subsMu.RLock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// Subscribe registers fn to run after every invalidation.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

// Close detaches the Store from the repository change feed.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func cloneAll(tasks []models.Task) []models.Task {
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
