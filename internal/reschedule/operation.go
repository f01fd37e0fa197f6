package reschedule

import (
	"context"
	"fmt"

	"github.com/nick-dorsch/agenda/pkg/models"
)

type State int

const (
	StateIdle State = iota
	StateDatePicked
	StateConfirmed
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDatePicked:
		return "date_picked"
	case StateConfirmed:
		return "confirmed"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Forwarder carries out a confirmed reschedule. *Protocol is one; adapters
// can route it through their own gate.
type Forwarder interface {
	Forward(ctx context.Context, t models.Task, date models.Date, opts Options) (Result, error)
}

// Operation walks one task through a reschedule:
// Idle -> DatePicked -> Confirmed -> Succeeded | Failed.
type Operation struct {
	task   models.Task
	opts   Options
	state  State
	date   models.Date
	result Result
	err    error
}

func NewOperation(t models.Task, opts Options) *Operation {
	return &Operation{task: t, opts: opts}
}

func (o *Operation) State() State { return o.state }

func (o *Operation) Date() models.Date { return o.date }

func (o *Operation) Result() Result { return o.result }

func (o *Operation) Err() error { return o.err }

// PickDate chooses or replaces the target date.
func (o *Operation) PickDate(date models.Date) error {
	if o.state != StateIdle && o.state != StateDatePicked {
		return fmt.Errorf("%w: cannot pick a date while %s", ErrInvalidState, o.state)
	}
	if err := Validate(o.task, date); err != nil {
		return err
	}
	o.date = date
	o.state = StateDatePicked
	return nil
}

// Cancel returns a picked operation to Idle.
func (o *Operation) Cancel() error {
	if o.state != StateDatePicked {
		return fmt.Errorf("%w: cannot cancel while %s", ErrInvalidState, o.state)
	}
	o.date = ""
	o.state = StateIdle
	return nil
}

func (o *Operation) Task() models.Task { return o.task }

// Confirm forwards the task to the picked date through f.
func (o *Operation) Confirm(ctx context.Context, f Forwarder) (Result, error) {
	if o.state != StateDatePicked {
		return Result{}, fmt.Errorf("%w: cannot confirm while %s", ErrInvalidState, o.state)
	}
	o.state = StateConfirmed

	res, err := f.Forward(ctx, o.task, o.date, o.opts)
	if err != nil {
		o.state = StateFailed
		o.err = err
		return res, err
	}
	o.state = StateSucceeded
	o.result = res
	return res, nil
}
