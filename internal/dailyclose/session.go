// Package dailyclose implements the two-step end-of-day review of a date's
// tasks.
package dailyclose

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nick-dorsch/agenda/internal/lifecycle"
	"github.com/nick-dorsch/agenda/internal/notify"
	"github.com/nick-dorsch/agenda/internal/reschedule"
	"github.com/nick-dorsch/agenda/pkg/models"
)

// ErrGateClosed rejects a reschedule or conclude for a task that has not
// been marked done or not done in the current session.
var ErrGateClosed = errors.New("daily close: mark the task done or not done first")

type Step int

const (
	StepReview Step = iota
	StepDetail
)

func (s Step) String() string {
	if s == StepDetail {
		return "detail"
	}
	return "review"
}

// Decider records a done/not-done decision.
type Decider interface {
	RecordCompletion(ctx context.Context, id string, outcome models.Outcome) (models.Task, bool, error)
}

// Concluder seals a task.
type Concluder interface {
	Conclude(ctx context.Context, id string) (models.Task, bool, error)
}

// Rows is the enablement of the two button rows shown per task.
type Rows struct {
	// Decision is the done / not done row. Always enabled.
	Decision bool `json:"decision"`
	// FollowUp is the reschedule / conclude row.
	FollowUp bool `json:"follow_up"`
}

type gateKey struct {
	date   models.Date
	taskID string
}

// Session is the transient state of one daily close. It is never persisted
// and never written onto tasks.
type Session struct {
	mu      sync.Mutex
	date    models.Date
	step    Step
	decided map[gateKey]struct{}
}

func NewSession(date models.Date) *Session {
	return &Session{
		date:    date,
		step:    StepReview,
		decided: make(map[gateKey]struct{}),
	}
}

func (s *Session) Date() models.Date {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// SetDate switches the session to another date. The per-task gate and the
// step are reset.
func (s *Session) SetDate(date models.Date) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if date == s.date {
		return
	}
	s.date = date
	s.step = StepReview
	s.decided = make(map[gateKey]struct{})
}

// Advance moves from the review step to the detail step.
func (s *Session) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = StepDetail
}

// Back returns to the review step. The gate is kept.
func (s *Session) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = StepReview
}

// Review returns the counters for the session date.
func (s *Session) Review(tasks []models.Task) lifecycle.DayStats {
	return lifecycle.ComputeDayStats(tasks, s.Date())
}

// Tasks returns the tasks that belong to the session date.
func (s *Session) Tasks(tasks []models.Task) []models.Task {
	date := s.Date()
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.OnDate(date) {
			out = append(out, t)
		}
	}
	return out
}

// Decided reports whether taskID got a decision during this session.
func (s *Session) Decided(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.decided[gateKey{date: s.date, taskID: taskID}]
	return ok
}

func (s *Session) markDecided(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decided[gateKey{date: s.date, taskID: taskID}] = struct{}{}
}

func (s *Session) Rows(taskID string) Rows {
	return Rows{Decision: true, FollowUp: s.Decided(taskID)}
}

// Decide records outcome for taskID and opens its follow-up row. A decision
// the rules reject as a duplicate still counts as a click.
func (s *Session) Decide(ctx context.Context, d Decider, taskID string, outcome models.Outcome) (models.Task, error) {
	t, _, err := d.RecordCompletion(ctx, taskID, outcome)
	if err != nil {
		return models.Task{}, err
	}
	s.markDecided(taskID)
	return t, nil
}

// Reschedule forwards t to date if its follow-up row is open.
func (s *Session) Reschedule(ctx context.Context, f reschedule.Forwarder, t models.Task, date models.Date, opts reschedule.Options) (reschedule.Result, error) {
	if !s.Decided(t.ID) {
		return reschedule.Result{}, fmt.Errorf("%w: %s", ErrGateClosed, t.ID)
	}
	return f.Forward(ctx, t, date, opts)
}

// Conclude seals taskID if its follow-up row is open.
func (s *Session) Conclude(ctx context.Context, c Concluder, taskID string) (models.Task, error) {
	if !s.Decided(taskID) {
		return models.Task{}, fmt.Errorf("%w: %s", ErrGateClosed, taskID)
	}
	t, _, err := c.Conclude(ctx, taskID)
	return t, err
}

// Finish acknowledges the day. It performs no mutation.
func (s *Session) Finish(sink notify.Sink, stats lifecycle.DayStats) {
	sink.Success(fmt.Sprintf("Day %s closed: %d of %d tasks completed (%.0f%%)",
		stats.Date, stats.Completed, stats.Total, stats.CompletionRate*100))
}
