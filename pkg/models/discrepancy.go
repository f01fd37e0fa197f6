package models

import "time"

type DiscrepancyKind string

const (
	// DiscrepancyDanglingSeal is a sealed predecessor whose successor is missing.
	DiscrepancyDanglingSeal DiscrepancyKind = "dangling-seal"
	// DiscrepancyOrphanSuccessor is a successor whose predecessor was never sealed.
	DiscrepancyOrphanSuccessor DiscrepancyKind = "orphan-successor"
)

// Discrepancy records a reschedule pair left half-applied.
type Discrepancy struct {
	ID           int64           `json:"id,omitempty"`
	Kind         DiscrepancyKind `json:"kind"`
	TaskID       string          `json:"task_id"`
	LinkedTaskID string          `json:"linked_task_id"`
	Detail       string          `json:"detail"`
	DetectedAt   time.Time       `json:"detected_at"`
}
