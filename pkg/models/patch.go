package models

import "time"

// TaskPatch represents a partial update.
// nil pointer => "no change"
// pointer to the zero time for ConcludedAt => clear (set to nil)
// pointer to "" for AssignedPersonID => clear (set to nil)
type TaskPatch struct {
	Title         *string `json:"title,omitempty"`
	Description   *string `json:"description,omitempty"`
	ScheduledDate *Date   `json:"scheduled_date,omitempty"`
	DeliveryDates *[]Date `json:"delivery_dates,omitempty"`
	Order         *int    `json:"order,omitempty"`

	Status      *Status    `json:"status,omitempty"`
	IsConcluded *bool      `json:"is_concluded,omitempty"`
	ConcludedAt *time.Time `json:"concluded_at,omitempty"`

	SubItems          *[]SubItem          `json:"sub_items,omitempty"`
	CompletionHistory *[]CompletionRecord `json:"completion_history,omitempty"`
	ForwardHistory    *[]ForwardRecord    `json:"forward_history,omitempty"`
	ForwardCount      *int                `json:"forward_count,omitempty"`

	Type             *string `json:"type,omitempty"`
	Priority         *string `json:"priority,omitempty"`
	Category         *string `json:"category,omitempty"`
	TimeInvestment   *string `json:"time_investment,omitempty"`
	AssignedPersonID *string `json:"assigned_person_id,omitempty"`

	// IfVersion rejects the update when the stored version differs.
	IfVersion *int64 `json:"if_version,omitempty"`
}

// IsEmpty reports whether the patch changes no field.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.ScheduledDate == nil &&
		p.DeliveryDates == nil && p.Order == nil && p.Status == nil &&
		p.IsConcluded == nil && p.ConcludedAt == nil && p.SubItems == nil &&
		p.CompletionHistory == nil && p.ForwardHistory == nil && p.ForwardCount == nil &&
		p.Type == nil && p.Priority == nil && p.Category == nil &&
		p.TimeInvestment == nil && p.AssignedPersonID == nil
}

// Apply returns a copy of t with p applied. Bookkeeping fields are untouched.
func (t Task) Apply(p TaskPatch) Task {
	out := t.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.ScheduledDate != nil {
		out.ScheduledDate = *p.ScheduledDate
	}
	if p.DeliveryDates != nil {
		out.DeliveryDates = *p.DeliveryDates
	}
	if p.Order != nil {
		out.Order = *p.Order
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.IsConcluded != nil {
		out.IsConcluded = *p.IsConcluded
	}
	if p.ConcludedAt != nil {
		if p.ConcludedAt.IsZero() {
			out.ConcludedAt = nil
		} else {
			at := *p.ConcludedAt
			out.ConcludedAt = &at
		}
	}
	if p.SubItems != nil {
		out.SubItems = *p.SubItems
	}
	if p.CompletionHistory != nil {
		out.CompletionHistory = *p.CompletionHistory
	}
	if p.ForwardHistory != nil {
		out.ForwardHistory = *p.ForwardHistory
	}
	if p.ForwardCount != nil {
		out.ForwardCount = *p.ForwardCount
	}
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.TimeInvestment != nil {
		out.TimeInvestment = *p.TimeInvestment
	}
	if p.AssignedPersonID != nil {
		if *p.AssignedPersonID == "" {
			out.AssignedPersonID = nil
		} else {
			id := *p.AssignedPersonID
			out.AssignedPersonID = &id
		}
	}
	// Apply hands out a deep copy; re-clone the slices taken from p.
	return out.Clone()
}
