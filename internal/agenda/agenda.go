// Package agenda is the application layer: every user-initiated action runs
// through App and ends in exactly one notification.
package agenda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nick-dorsch/agenda/internal/dailyclose"
	"github.com/nick-dorsch/agenda/internal/lifecycle"
	"github.com/nick-dorsch/agenda/internal/notify"
	"github.com/nick-dorsch/agenda/internal/reschedule"
	"github.com/nick-dorsch/agenda/internal/store"
	"github.com/nick-dorsch/agenda/pkg/models"
)

// DiscrepancyStore persists reconciliation findings.
type DiscrepancyStore interface {
	reschedule.Recorder
	ListDiscrepancies(ctx context.Context) ([]models.Discrepancy, error)
}

type App struct {
	store    *store.Store
	rules    *lifecycle.Service
	protocol *reschedule.Protocol
	sessions *dailyclose.Registry
	sink     notify.Sink
	log      *slog.Logger
	now      func() time.Time

	discrepancies DiscrepancyStore
	defaults      reschedule.Options
	newID         func() string
}

type Option func(*App)

func WithSink(s notify.Sink) Option {
	return func(a *App) { a.sink = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithDiscrepancyStore records reschedule pairs that could not be repaired.
func WithDiscrepancyStore(d DiscrepancyStore) Option {
	return func(a *App) { a.discrepancies = d }
}

// WithRescheduleDefaults sets the options used when a caller passes none.
func WithRescheduleDefaults(o reschedule.Options) Option {
	return func(a *App) { a.defaults = o }
}

func WithIDGenerator(newID func() string) Option {
	return func(a *App) { a.newID = newID }
}

func New(st *store.Store, opts ...Option) *App {
	a := &App{
		store:    st,
		sessions: dailyclose.NewRegistry(),
		sink:     notify.Discard{},
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.rules = lifecycle.NewService(st, lifecycle.WithClock(a.now), lifecycle.WithLogger(a.log))

	popts := []reschedule.Option{reschedule.WithClock(a.now), reschedule.WithLogger(a.log)}
	if a.discrepancies != nil {
		popts = append(popts, reschedule.WithRecorder(a.discrepancies))
	}
	if a.newID != nil {
		popts = append(popts, reschedule.WithIDGenerator(a.newID))
	}
	a.protocol = reschedule.NewProtocol(st, popts...)
	return a
}

func (a *App) Store() *store.Store { return a.store }

func (a *App) Protocol() *reschedule.Protocol { return a.protocol }

func (a *App) Rules() *lifecycle.Service { return a.rules }

// Today returns the current calendar day in the app clock's location.
func (a *App) Today() models.Date { return models.NewDate(a.now()) }

// RescheduleDefaults returns the options applied to reschedules.
func (a *App) RescheduleDefaults() reschedule.Options { return a.defaults }

// Tasks lists the tasks on date, or every task when date is zero.
func (a *App) Tasks(ctx context.Context, date models.Date) ([]models.Task, error) {
	if date.IsZero() {
		return a.store.Load(ctx)
	}
	return a.store.LoadDate(ctx, date)
}

func (a *App) Get(ctx context.Context, id string) (models.Task, error) {
	return a.store.Get(ctx, id)
}

// Stats returns the Review counters for date.
func (a *App) Stats(ctx context.Context, date models.Date) (lifecycle.DayStats, error) {
	tasks, err := a.store.LoadDate(ctx, date)
	if err != nil {
		return lifecycle.DayStats{}, err
	}
	return lifecycle.ComputeDayStats(tasks, date), nil
}

// NewTask holds the user-editable fields of a task being created.
type NewTask struct {
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Date           models.Date   `json:"date"`
	DeliveryDates  []models.Date `json:"delivery_dates,omitempty"`
	Order          int           `json:"order"`
	Type           string        `json:"type"`
	Priority       string        `json:"priority"`
	Category       string        `json:"category"`
	TimeInvestment string        `json:"time_investment"`
	SubItems       []string      `json:"sub_items,omitempty"`
}

func (a *App) Create(ctx context.Context, in NewTask) (models.Task, error) {
	if in.Title == "" {
		err := errors.New("title is required")
		a.sink.Error(fmt.Sprintf("Failed to create task: %v", err))
		return models.Task{}, err
	}
	date := in.Date
	if date.IsZero() {
		date = a.Today()
	}

	now := a.now()
	t := models.Task{
		Title:          in.Title,
		Description:    in.Description,
		ScheduledDate:  date,
		DeliveryDates:  in.DeliveryDates,
		Order:          in.Order,
		Type:           in.Type,
		Priority:       in.Priority,
		Category:       in.Category,
		TimeInvestment: in.TimeInvestment,
		CreatedAt:      now,
	}
	for i, text := range in.SubItems {
		t.SubItems = append(t.SubItems, models.SubItem{
			ID:        a.id(),
			Text:      text,
			Order:     i + 1,
			CreatedAt: now,
		})
	}

	created, err := a.store.Insert(ctx, t)
	if err != nil {
		a.sink.Error(fmt.Sprintf("Failed to create task: %v", err))
		return models.Task{}, fmt.Errorf("failed to create task: %w", err)
	}
	a.sink.Success(fmt.Sprintf("Task %q created for %s", created.Title, created.ScheduledDate))
	return created, nil
}

func (a *App) id() string {
	if a.newID != nil {
		return a.newID()
	}
	return uuid.New().String()
}

// Complete records a completed outcome for the task.
func (a *App) Complete(ctx context.Context, id string) (models.Task, error) {
	return a.record(ctx, id, models.OutcomeCompleted)
}

// NotDone records a not-done outcome for the task.
func (a *App) NotDone(ctx context.Context, id string) (models.Task, error) {
	return a.record(ctx, id, models.OutcomeNotDone)
}

func (a *App) record(ctx context.Context, id string, outcome models.Outcome) (models.Task, error) {
	t, _, err := a.rules.RecordCompletion(ctx, id, outcome)
	return a.finish(t, err, "mark task as "+string(outcome), "Task marked as "+string(outcome))
}

// SetPending reverts the task's latest decision.
func (a *App) SetPending(ctx context.Context, id string) (models.Task, error) {
	t, _, err := a.rules.SetPending(ctx, id)
	return a.finish(t, err, "set task pending", "Task set back to pending")
}

func (a *App) Conclude(ctx context.Context, id string) (models.Task, error) {
	t, _, err := a.rules.Conclude(ctx, id)
	return a.finish(t, err, "conclude task", "Task concluded")
}

// Reopen lifts a conclusion; the task becomes pending again.
func (a *App) Reopen(ctx context.Context, id string) (models.Task, error) {
	t, _, err := a.rules.Unconclude(ctx, id)
	return a.finish(t, err, "reopen task", "Task reopened")
}

func (a *App) Delegate(ctx context.Context, id, personID string) (models.Task, error) {
	t, _, err := a.rules.Delegate(ctx, id, personID)
	return a.finish(t, err, "delegate task", fmt.Sprintf("Task assigned to %s", personID))
}

func (a *App) Delete(ctx context.Context, id string) error {
	if err := a.store.Remove(ctx, id); err != nil {
		a.sink.Error(fmt.Sprintf("Failed to delete task: %v", err))
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	a.sink.Success("Task deleted")
	return nil
}

func (a *App) finish(t models.Task, err error, action, success string) (models.Task, error) {
	if err != nil {
		a.sink.Error(fmt.Sprintf("Failed to %s: %v", action, err))
		return models.Task{}, fmt.Errorf("failed to %s: %w", action, err)
	}
	a.sink.Success(success)
	return t, nil
}

// Forward reschedules the task onto date. A task already sealed by an
// earlier reschedule is refused as a no-op and reports changed=false.
func (a *App) Forward(ctx context.Context, id string, date models.Date, opts *reschedule.Options) (reschedule.Result, bool, error) {
	t, err := a.store.Get(ctx, id)
	if err != nil {
		a.sink.Error(fmt.Sprintf("Failed to reschedule task: %v", err))
		return reschedule.Result{}, false, fmt.Errorf("failed to reschedule task %s: %w", id, err)
	}

	res, err := a.reschedule(ctx, t, date, a.options(opts))
	if isRefusal(err) {
		a.log.Info("reschedule skipped", "task_id", id, "date", date, "reason", err)
		a.sink.Success("Nothing to reschedule")
		return reschedule.Result{}, false, nil
	}
	if err != nil {
		a.sink.Error(fmt.Sprintf("Failed to reschedule task: %v", err))
		return reschedule.Result{}, false, err
	}
	a.sink.Success(fmt.Sprintf("Task rescheduled to %s", date))
	return res, true, nil
}

// reschedule walks t through a reschedule operation onto date.
func (a *App) reschedule(ctx context.Context, t models.Task, date models.Date, opts reschedule.Options) (reschedule.Result, error) {
	op := reschedule.NewOperation(t, opts)
	if err := op.PickDate(date); err != nil {
		return reschedule.Result{}, err
	}
	return op.Confirm(ctx, a.protocol)
}

func (a *App) options(opts *reschedule.Options) reschedule.Options {
	if opts == nil {
		return a.defaults
	}
	return *opts
}

func isRefusal(err error) bool {
	return errors.Is(err, reschedule.ErrAlreadyForwarded)
}
