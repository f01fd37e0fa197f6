package reschedule

import (
	"fmt"
	"time"

	"github.com/nick-dorsch/agenda/pkg/models"
)

// Scan looks for reschedule pairs that were only half written: sealed
// predecessors whose successor is gone, and successors whose predecessor
// was never sealed toward them.
func Scan(tasks []models.Task, now time.Time) []models.Discrepancy {
	byID := make(map[string]models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var out []models.Discrepancy
	for _, t := range tasks {
		first := 0
		if seed, ok := t.Received(); ok {
			first = 1
			// Incoming: t is a successor and its predecessor should be sealed.
			// Deleted predecessors are a legitimate end of a lineage.
			if pred, ok := byID[seed.LinkedTaskID]; ok && !sealedToward(pred, t.ID) {
				out = append(out, models.Discrepancy{
					Kind:         models.DiscrepancyOrphanSuccessor,
					TaskID:       t.ID,
					LinkedTaskID: pred.ID,
					Detail:       fmt.Sprintf("received from %s but predecessor is not sealed", seed.OriginalDate),
					DetectedAt:   now,
				})
			}
		}

		if !t.IsConcluded {
			continue
		}
		// Outgoing: t was moved away and should have a successor.
		for _, r := range t.ForwardHistory[first:] {
			if r.LinkedTaskID == "" {
				continue
			}
			if _, ok := byID[r.LinkedTaskID]; !ok {
				out = append(out, models.Discrepancy{
					Kind:         models.DiscrepancyDanglingSeal,
					TaskID:       t.ID,
					LinkedTaskID: r.LinkedTaskID,
					Detail:       fmt.Sprintf("sealed on %s toward %s but successor is missing", r.OriginalDate, r.NewDate),
					DetectedAt:   now,
				})
			}
		}
	}
	return out
}

func sealedToward(pred models.Task, successorID string) bool {
	if !pred.IsConcluded {
		return false
	}
	for _, r := range pred.ForwardHistory {
		if r.LinkedTaskID == successorID {
			return true
		}
	}
	return false
}
