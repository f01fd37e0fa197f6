package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nick-dorsch/agenda/pkg/models"
)

// TaskStore defines the store operations required by the Service.
type TaskStore interface {
	Get(ctx context.Context, id string) (models.Task, error)
	Update(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error)
}

// Service applies transition rules to stored tasks. Rejected transitions are
// no-ops and report changed=false with a nil error.
type Service struct {
	store TaskStore
	now   func() time.Time
	log   *slog.Logger
}

type Option func(*Service)

// WithClock overrides the time source used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(store TaskStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.now() }

func (s *Service) RecordCompletion(ctx context.Context, id string, outcome models.Outcome) (models.Task, bool, error) {
	if !outcome.Valid() {
		return models.Task{}, false, fmt.Errorf("invalid outcome: %q", outcome)
	}
	return s.apply(ctx, id, "record_completion", func(t models.Task) (models.TaskPatch, bool) {
		return RecordCompletion(t, outcome, s.now())
	})
}

func (s *Service) SetPending(ctx context.Context, id string) (models.Task, bool, error) {
	return s.apply(ctx, id, "set_pending", func(t models.Task) (models.TaskPatch, bool) {
		return SetPending(t, s.now())
	})
}

func (s *Service) Conclude(ctx context.Context, id string) (models.Task, bool, error) {
	return s.apply(ctx, id, "conclude", func(t models.Task) (models.TaskPatch, bool) {
		return Conclude(t, s.now())
	})
}

func (s *Service) Unconclude(ctx context.Context, id string) (models.Task, bool, error) {
	return s.apply(ctx, id, "unconclude", func(t models.Task) (models.TaskPatch, bool) {
		return Unconclude(t, s.now())
	})
}

func (s *Service) Delegate(ctx context.Context, id, personID string) (models.Task, bool, error) {
	return s.apply(ctx, id, "delegate", func(t models.Task) (models.TaskPatch, bool) {
		return Delegate(t, personID)
	})
}

func (s *Service) apply(ctx context.Context, id, action string, rule func(models.Task) (models.TaskPatch, bool)) (models.Task, bool, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Task{}, false, fmt.Errorf("failed to load task %s: %w", id, err)
	}

	patch, changed := rule(current)
	if !changed {
		s.log.Debug("transition rejected as no-op", "action", action, "task_id", id)
		return current, false, nil
	}

	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return current, false, fmt.Errorf("failed to %s task %s: %w", action, id, err)
	}

	s.log.Debug("transition applied", "action", action, "task_id", id, "status", updated.Status)
	return updated, true, nil
}
