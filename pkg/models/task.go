package models

import "time"

// Status is the current disposition of a task.
type Status string

const (
	StatusPending         Status = "pending"
	StatusCompleted       Status = "completed"
	StatusNotDone         Status = "not-done"
	StatusForwardedDate   Status = "forwarded-date"
	StatusForwardedPerson Status = "forwarded-person"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusNotDone, StatusForwardedDate, StatusForwardedPerson:
		return true
	}
	return false
}

// IsForwarded reports whether s is one of the forwarded dispositions.
func (s Status) IsForwarded() bool {
	return s == StatusForwardedDate || s == StatusForwardedPerson
}

// Outcome is the decisive result a user records for a task.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeNotDone   Outcome = "not-done"
)

func (o Outcome) Valid() bool {
	return o == OutcomeCompleted || o == OutcomeNotDone
}

// Status maps the outcome onto the task status it implies.
func (o Outcome) Status() Status {
	if o == OutcomeNotDone {
		return StatusNotDone
	}
	return StatusCompleted
}

// CompletionStatus tags a CompletionRecord.
type CompletionStatus string

const (
	CompletionCompleted CompletionStatus = "completed"
	CompletionNotDone   CompletionStatus = "not-done"
	// CompletionReverted records an undo of the previous decision.
	CompletionReverted CompletionStatus = "reverted"
	// CompletionReopened records that a concluded task was reopened.
	CompletionReopened CompletionStatus = "reopened"
)

// CompletionRecord is one entry of a task's append-only completion log.
type CompletionRecord struct {
	CompletedAt  time.Time        `json:"completedAt"`
	Status       CompletionStatus `json:"status"`
	Date         Date             `json:"date"`
	WasForwarded bool             `json:"wasForwarded"`
	// ForwardsSeen is the length of the forward log when the entry was
	// recorded. It orders the entry against forward records.
	ForwardsSeen int `json:"forwardsSeen,omitempty"`
}

// Implies returns the task status the record implies on its own.
func (r CompletionRecord) Implies() Status {
	switch r.Status {
	case CompletionCompleted:
		return StatusCompleted
	case CompletionNotDone:
		return StatusNotDone
	case CompletionReverted, CompletionReopened:
		return StatusPending
	}
	return StatusPending
}

// ForwardRecord is one entry of a task's append-only forward log.
type ForwardRecord struct {
	ForwardedAt     time.Time `json:"forwardedAt"`
	ForwardedTo     *string   `json:"forwardedTo"`
	OriginalDate    Date      `json:"originalDate"`
	NewDate         Date      `json:"newDate"`
	StatusAtForward Status    `json:"statusAtForward"`
	Reason          string    `json:"reason"`
	// LinkedTaskID is the successor id on a predecessor's record and the
	// predecessor id on a successor's seed record.
	LinkedTaskID string `json:"linkedTaskId,omitempty"`
}

type SubItem struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	NotDone   bool      `json:"notDone"`
	Order     int       `json:"order"`
	Subject   *string   `json:"subject,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Task struct {
	ID            string `json:"id"`
	OwnerID       string `json:"owner_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	ScheduledDate Date   `json:"scheduled_date"`
	DeliveryDates []Date `json:"delivery_dates"`
	Order         int    `json:"order"`

	Status      Status     `json:"status"`
	IsConcluded bool       `json:"is_concluded"`
	ConcludedAt *time.Time `json:"concluded_at"`

	SubItems          []SubItem          `json:"sub_items"`
	CompletionHistory []CompletionRecord `json:"completion_history"`
	ForwardHistory    []ForwardRecord    `json:"forward_history"`
	ForwardCount      int                `json:"forward_count"`

	Type             string  `json:"type"`
	Priority         string  `json:"priority"`
	Category         string  `json:"category"`
	TimeInvestment   string  `json:"time_investment"`
	AssignedPersonID *string `json:"assigned_person_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// Received returns the seed entry a successor was created with. Only tasks
// produced by a reschedule carry one, always first in the forward log.
func (t Task) Received() (ForwardRecord, bool) {
	if t.ForwardCount == 0 || len(t.ForwardHistory) == 0 {
		return ForwardRecord{}, false
	}
	return t.ForwardHistory[0], true
}

// OnDate reports whether the task is scheduled or due for delivery on d.
func (t Task) OnDate(d Date) bool {
	if t.ScheduledDate == d {
		return true
	}
	for _, dd := range t.DeliveryDates {
		if dd == d {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of t.
func (t Task) Clone() Task {
	c := t
	if t.DeliveryDates != nil {
		c.DeliveryDates = append([]Date{}, t.DeliveryDates...)
	}
	if t.ConcludedAt != nil {
		at := *t.ConcludedAt
		c.ConcludedAt = &at
	}
	if t.SubItems != nil {
		c.SubItems = make([]SubItem, len(t.SubItems))
		for i, s := range t.SubItems {
			if s.Subject != nil {
				subject := *s.Subject
				s.Subject = &subject
			}
			c.SubItems[i] = s
		}
	}
	if t.CompletionHistory != nil {
		c.CompletionHistory = append([]CompletionRecord{}, t.CompletionHistory...)
	}
	if t.ForwardHistory != nil {
		c.ForwardHistory = make([]ForwardRecord, len(t.ForwardHistory))
		for i, r := range t.ForwardHistory {
			if r.ForwardedTo != nil {
				to := *r.ForwardedTo
				r.ForwardedTo = &to
			}
			c.ForwardHistory[i] = r
		}
	}
	if t.AssignedPersonID != nil {
		id := *t.AssignedPersonID
		c.AssignedPersonID = &id
	}
	return c
}

// Filter selects tasks for a Fetch.
type Filter struct {
	OwnerID string
	// Date matches the scheduled date or any delivery date.
	Date   *Date
	Status *Status
	// ExcludeConcluded drops sealed tasks.
	ExcludeConcluded bool
}

// Matches applies f to t in memory.
func (f Filter) Matches(t Task) bool {
	if f.OwnerID != "" && t.OwnerID != f.OwnerID {
		return false
	}
	if f.Date != nil && !t.OnDate(*f.Date) {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.ExcludeConcluded && t.IsConcluded {
		return false
	}
	return true
}
