package agenda

import (
	"context"
	"fmt"

	"github.com/nick-dorsch/agenda/internal/dailyclose"
	"github.com/nick-dorsch/agenda/internal/lifecycle"
	"github.com/nick-dorsch/agenda/internal/reschedule"
	"github.com/nick-dorsch/agenda/pkg/models"
)

// CloseDay opens (or resets to date) the daily close session sessionID and
// returns its Review counters.
func (a *App) CloseDay(ctx context.Context, sessionID string, date models.Date) (*dailyclose.Session, lifecycle.DayStats, error) {
	if date.IsZero() {
		date = a.Today()
	}
	s := a.sessions.Open(sessionID, date)
	tasks, err := a.store.LoadDate(ctx, date)
	if err != nil {
		return nil, lifecycle.DayStats{}, fmt.Errorf("failed to load tasks for %s: %w", date, err)
	}
	return s, s.Review(tasks), nil
}

// Session returns an open daily close session.
func (a *App) Session(sessionID string) (*dailyclose.Session, bool) {
	return a.sessions.Peek(sessionID)
}

// CloseDayTasks lists the tasks on the session date.
func (a *App) CloseDayTasks(ctx context.Context, sessionID string) ([]models.Task, error) {
	s, err := a.session(sessionID)
	if err != nil {
		return nil, err
	}
	tasks, err := a.store.LoadDate(ctx, s.Date())
	if err != nil {
		return nil, err
	}
	return s.Tasks(tasks), nil
}

// CloseDayDecide records the first-row decision for a task and opens its
// follow-up row.
func (a *App) CloseDayDecide(ctx context.Context, sessionID, taskID string, outcome models.Outcome) (models.Task, error) {
	s, err := a.session(sessionID)
	if err != nil {
		a.sink.Error(err.Error())
		return models.Task{}, err
	}
	t, err := s.Decide(ctx, a.rules, taskID, outcome)
	return a.finish(t, err, "mark task as "+string(outcome), "Task marked as "+string(outcome))
}

// CloseDayReschedule forwards a decided task.
func (a *App) CloseDayReschedule(ctx context.Context, sessionID, taskID string, date models.Date, opts *reschedule.Options) (reschedule.Result, error) {
	s, err := a.session(sessionID)
	if err != nil {
		a.sink.Error(err.Error())
		return reschedule.Result{}, err
	}
	t, err := a.store.Get(ctx, taskID)
	if err != nil {
		a.sink.Error(fmt.Sprintf("Failed to reschedule task: %v", err))
		return reschedule.Result{}, err
	}

	res, err := s.Reschedule(ctx, a.protocol, t, date, a.options(opts))
	if isRefusal(err) {
		a.sink.Success("Nothing to reschedule")
		return reschedule.Result{}, nil
	}
	if err != nil {
		a.sink.Error(fmt.Sprintf("Failed to reschedule task: %v", err))
		return reschedule.Result{}, err
	}
	a.sink.Success(fmt.Sprintf("Task rescheduled to %s", date))
	return res, nil
}

// CloseDayConclude seals a decided task.
func (a *App) CloseDayConclude(ctx context.Context, sessionID, taskID string) (models.Task, error) {
	s, err := a.session(sessionID)
	if err != nil {
		a.sink.Error(err.Error())
		return models.Task{}, err
	}
	t, err := s.Conclude(ctx, a.rules, taskID)
	return a.finish(t, err, "conclude task", "Task concluded")
}

// CloseDayFinish ends the session with its summary notification.
func (a *App) CloseDayFinish(ctx context.Context, sessionID string) (lifecycle.DayStats, error) {
	s, err := a.session(sessionID)
	if err != nil {
		a.sink.Error(err.Error())
		return lifecycle.DayStats{}, err
	}
	tasks, err := a.store.LoadDate(ctx, s.Date())
	if err != nil {
		a.sink.Error(fmt.Sprintf("Failed to close day: %v", err))
		return lifecycle.DayStats{}, err
	}
	stats := s.Review(tasks)
	s.Finish(a.sink, stats)
	a.sessions.End(sessionID)
	return stats, nil
}

func (a *App) session(sessionID string) (*dailyclose.Session, error) {
	s, ok := a.sessions.Peek(sessionID)
	if !ok {
		return nil, fmt.Errorf("no daily close session %q", sessionID)
	}
	return s, nil
}
