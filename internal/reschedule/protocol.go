package reschedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nick-dorsch/agenda/internal/lifecycle"
	"github.com/nick-dorsch/agenda/pkg/models"
)

var (
	ErrInvalidState = errors.New("reschedule: invalid state")
	// ErrAlreadyForwarded refuses a task that was already sealed by an
	// earlier reschedule; its successor carries the lineage on.
	ErrAlreadyForwarded = errors.New("reschedule: task was already rescheduled")
	ErrNoDate           = errors.New("reschedule: no target date")
)

// Store defines the task store operations the protocol needs.
type Store interface {
	Insert(ctx context.Context, t models.Task) (models.Task, error)
	Update(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error)
	ForwardAtomic(ctx context.Context, predecessorID string, seal models.TaskPatch, successor models.Task) (models.Task, models.Task, error)
	SupportsAtomicForward() bool
}

// Recorder persists discrepancies that could not be repaired in place.
type Recorder interface {
	RecordDiscrepancy(ctx context.Context, d models.Discrepancy) error
}

type Result struct {
	Predecessor models.Task `json:"predecessor"`
	Successor   models.Task `json:"successor"`
}

// Protocol performs reschedules against a Store. When the store supports it
// the seal and the successor are written in one transaction; otherwise the
// seal is compensated if the successor cannot be created.
type Protocol struct {
	store    Store
	recorder Recorder
	now      func() time.Time
	newID    func() string
	log      *slog.Logger
}

type Option func(*Protocol)

func WithClock(now func() time.Time) Option {
	return func(p *Protocol) { p.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(p *Protocol) { p.newID = newID }
}

func WithRecorder(r Recorder) Option {
	return func(p *Protocol) { p.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Protocol) { p.log = l }
}

func NewProtocol(store Store, opts ...Option) *Protocol {
	p := &Protocol{
		store: store,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate reports why t cannot be moved to date, if it cannot. Any task
// not already sealed by a reschedule can move, including one concluded by
// hand and including a move onto its own date.
func Validate(t models.Task, date models.Date) error {
	if date.IsZero() {
		return ErrNoDate
	}
	if _, err := models.ParseDate(date.String()); err != nil {
		return err
	}
	if _, ok := lifecycle.SealingForward(t); ok {
		return ErrAlreadyForwarded
	}
	return nil
}

// Forward seals t and creates its successor on date.
func (p *Protocol) Forward(ctx context.Context, t models.Task, date models.Date, opts Options) (Result, error) {
	if err := Validate(t, date); err != nil {
		return Result{}, err
	}

	now := p.now()
	successorID := p.newID()
	seal := SealPatch(t, date, successorID, opts, now)
	successor := Successor(t, date, successorID, opts, now)

	if p.store.SupportsAtomicForward() {
		pred, succ, err := p.store.ForwardAtomic(ctx, t.ID, seal, successor)
		if err != nil {
			return Result{}, fmt.Errorf("failed to forward task %s: %w", t.ID, err)
		}
		p.log.Info("task forwarded", "task_id", t.ID, "successor_id", succ.ID, "date", date)
		return Result{Predecessor: pred, Successor: succ}, nil
	}

	pred, err := p.store.Update(ctx, t.ID, seal)
	if err != nil {
		return Result{}, fmt.Errorf("failed to seal task %s: %w", t.ID, err)
	}

	succ, err := p.store.Insert(ctx, successor)
	if err != nil {
		return Result{}, p.compensate(ctx, t, pred, successorID, err)
	}

	p.log.Info("task forwarded", "task_id", t.ID, "successor_id", succ.ID, "date", date)
	return Result{Predecessor: pred, Successor: succ}, nil
}

// compensate lifts the seal written for a successor that never got created.
// If that also fails the pair is recorded for later repair.
func (p *Protocol) compensate(ctx context.Context, original, sealed models.Task, successorID string, cause error) error {
	_, err := p.store.Update(ctx, original.ID, RestorePatch(original, sealed.Version))
	if err == nil {
		p.log.Warn("successor creation failed, seal rolled back", "task_id", original.ID, "error", cause)
		return fmt.Errorf("failed to create successor for task %s: %w", original.ID, cause)
	}

	p.log.Error("successor creation failed and seal rollback failed",
		"task_id", original.ID, "successor_id", successorID, "error", cause, "rollback_error", err)

	if p.recorder != nil {
		d := models.Discrepancy{
			Kind:         models.DiscrepancyDanglingSeal,
			TaskID:       original.ID,
			LinkedTaskID: successorID,
			Detail:       fmt.Sprintf("successor insert: %v; rollback: %v", cause, err),
			DetectedAt:   p.now(),
		}
		if recErr := p.recorder.RecordDiscrepancy(ctx, d); recErr != nil {
			p.log.Error("failed to record discrepancy", "task_id", original.ID, "error", recErr)
		}
	}
	return fmt.Errorf("failed to create successor for task %s: %w (rollback failed: %v)", original.ID, cause, err)
}
