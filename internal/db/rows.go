package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nick-dorsch/agenda/pkg/models"
)

const timeLayout = time.RFC3339Nano

// taskColumns is the column order shared by every task SELECT and INSERT.
const taskColumns = `id, owner_id, title, description, scheduled_date, delivery_dates, sort_order,
	status, is_concluded, concluded_at, sub_items, completion_history, forward_history,
	forward_count, type, priority, category, time_investment, assigned_person_id,
	created_at, updated_at, version`

// TaskRow is the storage shape of a task. List-valued fields are JSON text;
// a nil list is NULL and an empty list is "[]".
type TaskRow struct {
	ID                string
	OwnerID           string
	Title             string
	Description       string
	ScheduledDate     string
	DeliveryDates     sql.NullString
	SortOrder         int64
	Status            string
	IsConcluded       int64
	ConcludedAt       sql.NullString
	SubItems          sql.NullString
	CompletionHistory sql.NullString
	ForwardHistory    sql.NullString
	ForwardCount      int64
	Type              string
	Priority          string
	Category          string
	TimeInvestment    string
	AssignedPersonID  sql.NullString
	CreatedAt         string
	UpdatedAt         string
	Version           int64
}

func (r *TaskRow) scanTargets() []any {
	return []any{
		&r.ID, &r.OwnerID, &r.Title, &r.Description, &r.ScheduledDate, &r.DeliveryDates, &r.SortOrder,
		&r.Status, &r.IsConcluded, &r.ConcludedAt, &r.SubItems, &r.CompletionHistory, &r.ForwardHistory,
		&r.ForwardCount, &r.Type, &r.Priority, &r.Category, &r.TimeInvestment, &r.AssignedPersonID,
		&r.CreatedAt, &r.UpdatedAt, &r.Version,
	}
}

func (r TaskRow) values() []any {
	return []any{
		r.ID, r.OwnerID, r.Title, r.Description, r.ScheduledDate, r.DeliveryDates, r.SortOrder,
		r.Status, r.IsConcluded, r.ConcludedAt, r.SubItems, r.CompletionHistory, r.ForwardHistory,
		r.ForwardCount, r.Type, r.Priority, r.Category, r.TimeInvestment, r.AssignedPersonID,
		r.CreatedAt, r.UpdatedAt, r.Version,
	}
}

// EncodeTask maps a task onto its storage row.
func EncodeTask(t models.Task) (TaskRow, error) {
	deliveryDates, err := encodeList(t.DeliveryDates)
	if err != nil {
		return TaskRow{}, fmt.Errorf("failed to encode delivery dates: %w", err)
	}
	subItems, err := encodeList(t.SubItems)
	if err != nil {
		return TaskRow{}, fmt.Errorf("failed to encode sub items: %w", err)
	}
	completions, err := encodeList(t.CompletionHistory)
	if err != nil {
		return TaskRow{}, fmt.Errorf("failed to encode completion history: %w", err)
	}
	forwards, err := encodeList(t.ForwardHistory)
	if err != nil {
		return TaskRow{}, fmt.Errorf("failed to encode forward history: %w", err)
	}

	return TaskRow{
		ID:                t.ID,
		OwnerID:           t.OwnerID,
		Title:             t.Title,
		Description:       t.Description,
		ScheduledDate:     t.ScheduledDate.String(),
		DeliveryDates:     deliveryDates,
		SortOrder:         int64(t.Order),
		Status:            string(t.Status),
		IsConcluded:       boolToInt(t.IsConcluded),
		ConcludedAt:       encodeOptionalTime(t.ConcludedAt),
		SubItems:          subItems,
		CompletionHistory: completions,
		ForwardHistory:    forwards,
		ForwardCount:      int64(t.ForwardCount),
		Type:              t.Type,
		Priority:          t.Priority,
		Category:          t.Category,
		TimeInvestment:    t.TimeInvestment,
		AssignedPersonID:  encodeOptionalString(t.AssignedPersonID),
		CreatedAt:         encodeTime(t.CreatedAt),
		UpdatedAt:         encodeTime(t.UpdatedAt),
		Version:           t.Version,
	}, nil
}

// DecodeTask maps a storage row back onto a task.
func DecodeTask(r TaskRow) (models.Task, error) {
	t := models.Task{
		ID:               r.ID,
		OwnerID:          r.OwnerID,
		Title:            r.Title,
		Description:      r.Description,
		ScheduledDate:    models.Date(r.ScheduledDate),
		Order:            int(r.SortOrder),
		Status:           models.Status(r.Status),
		IsConcluded:      r.IsConcluded != 0,
		ForwardCount:     int(r.ForwardCount),
		Type:             r.Type,
		Priority:         r.Priority,
		Category:         r.Category,
		TimeInvestment:   r.TimeInvestment,
		AssignedPersonID: decodeOptionalString(r.AssignedPersonID),
		Version:          r.Version,
	}

	var err error
	if t.DeliveryDates, err = decodeList[models.Date](r.DeliveryDates); err != nil {
		return models.Task{}, fmt.Errorf("failed to decode delivery dates of %s: %w", r.ID, err)
	}
	if t.SubItems, err = decodeList[models.SubItem](r.SubItems); err != nil {
		return models.Task{}, fmt.Errorf("failed to decode sub items of %s: %w", r.ID, err)
	}
	if t.CompletionHistory, err = decodeList[models.CompletionRecord](r.CompletionHistory); err != nil {
		return models.Task{}, fmt.Errorf("failed to decode completion history of %s: %w", r.ID, err)
	}
	if t.ForwardHistory, err = decodeList[models.ForwardRecord](r.ForwardHistory); err != nil {
		return models.Task{}, fmt.Errorf("failed to decode forward history of %s: %w", r.ID, err)
	}
	if t.ConcludedAt, err = decodeOptionalTime(r.ConcludedAt); err != nil {
		return models.Task{}, fmt.Errorf("failed to decode concluded_at of %s: %w", r.ID, err)
	}
	if t.CreatedAt, err = decodeTime(r.CreatedAt); err != nil {
		return models.Task{}, fmt.Errorf("failed to decode created_at of %s: %w", r.ID, err)
	}
	if t.UpdatedAt, err = decodeTime(r.UpdatedAt); err != nil {
		return models.Task{}, fmt.Errorf("failed to decode updated_at of %s: %w", r.ID, err)
	}
	return t, nil
}

// encodePatch returns the SET assignments and arguments for the fields p
// changes.
func encodePatch(p models.TaskPatch) ([]string, []any, error) {
	var cols []string
	var args []any
	set := func(col string, v any) {
		cols = append(cols, col+" = ?")
		args = append(args, v)
	}
	setList := func(col string, encode func() (sql.NullString, error)) error {
		v, err := encode()
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", col, err)
		}
		set(col, v)
		return nil
	}

	if p.Title != nil {
		set("title", *p.Title)
	}
	if p.Description != nil {
		set("description", *p.Description)
	}
	if p.ScheduledDate != nil {
		set("scheduled_date", p.ScheduledDate.String())
	}
	if p.DeliveryDates != nil {
		if err := setList("delivery_dates", func() (sql.NullString, error) { return encodeList(*p.DeliveryDates) }); err != nil {
			return nil, nil, err
		}
	}
	if p.Order != nil {
		set("sort_order", int64(*p.Order))
	}
	if p.Status != nil {
		set("status", string(*p.Status))
	}
	if p.IsConcluded != nil {
		set("is_concluded", boolToInt(*p.IsConcluded))
	}
	if p.ConcludedAt != nil {
		if p.ConcludedAt.IsZero() {
			set("concluded_at", sql.NullString{})
		} else {
			set("concluded_at", encodeOptionalTime(p.ConcludedAt))
		}
	}
	if p.SubItems != nil {
		if err := setList("sub_items", func() (sql.NullString, error) { return encodeList(*p.SubItems) }); err != nil {
			return nil, nil, err
		}
	}
	if p.CompletionHistory != nil {
		if err := setList("completion_history", func() (sql.NullString, error) { return encodeList(*p.CompletionHistory) }); err != nil {
			return nil, nil, err
		}
	}
	if p.ForwardHistory != nil {
		if err := setList("forward_history", func() (sql.NullString, error) { return encodeList(*p.ForwardHistory) }); err != nil {
			return nil, nil, err
		}
	}
	if p.ForwardCount != nil {
		set("forward_count", int64(*p.ForwardCount))
	}
	if p.Type != nil {
		set("type", *p.Type)
	}
	if p.Priority != nil {
		set("priority", *p.Priority)
	}
	if p.Category != nil {
		set("category", *p.Category)
	}
	if p.TimeInvestment != nil {
		set("time_investment", *p.TimeInvestment)
	}
	if p.AssignedPersonID != nil {
		if *p.AssignedPersonID == "" {
			set("assigned_person_id", sql.NullString{})
		} else {
			set("assigned_person_id", *p.AssignedPersonID)
		}
	}
	return cols, args, nil
}

func encodeList[T any](v []T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeList[T any](ns sql.NullString) ([]T, error) {
	if !ns.Valid {
		return nil, nil
	}
	out := []T{}
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeTime(t time.Time) string {
	return t.Format(timeLayout)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func encodeOptionalTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: encodeTime(*t), Valid: true}
}

func decodeOptionalTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := decodeTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeOptionalString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func decodeOptionalString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
