package reschedule

import (
	"testing"

	"github.com/nick-dorsch/agenda/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// forwardedPair returns a correctly sealed predecessor and its successor.
func forwardedPair() (models.Task, models.Task) {
	pred := models.Task{ID: "pred", Title: "report", ScheduledDate: "2024-03-15", Status: models.StatusPending}
	succ := Successor(pred, "2024-03-18", "succ", Options{}, testNow)
	pred = pred.Apply(SealPatch(pred, "2024-03-18", "succ", Options{}, testNow))
	return pred, succ
}

func TestScanHealthyPair(t *testing.T) {
	pred, succ := forwardedPair()
	assert.Empty(t, Scan([]models.Task{pred, succ}, testNow))
}

func TestScanDanglingSeal(t *testing.T) {
	pred, _ := forwardedPair()

	found := Scan([]models.Task{pred}, testNow)
	require.Len(t, found, 1)
	assert.Equal(t, models.DiscrepancyDanglingSeal, found[0].Kind)
	assert.Equal(t, "pred", found[0].TaskID)
	assert.Equal(t, "succ", found[0].LinkedTaskID)
	assert.Equal(t, testNow, found[0].DetectedAt)
}

func TestScanOrphanSuccessor(t *testing.T) {
	_, succ := forwardedPair()
	unsealed := models.Task{ID: "pred", Title: "report", ScheduledDate: "2024-03-15"}

	found := Scan([]models.Task{unsealed, succ}, testNow)
	require.Len(t, found, 1)
	assert.Equal(t, models.DiscrepancyOrphanSuccessor, found[0].Kind)
	assert.Equal(t, "succ", found[0].TaskID)
	assert.Equal(t, "pred", found[0].LinkedTaskID)
}

func TestScanSealedTowardAnotherTask(t *testing.T) {
	pred, succ := forwardedPair()
	pred.ForwardHistory[0].LinkedTaskID = "someone-else"

	found := Scan([]models.Task{pred, succ}, testNow)
	kinds := make([]models.DiscrepancyKind, 0, len(found))
	for _, d := range found {
		kinds = append(kinds, d.Kind)
	}
	assert.ElementsMatch(t, []models.DiscrepancyKind{
		models.DiscrepancyDanglingSeal,
		models.DiscrepancyOrphanSuccessor,
	}, kinds)
}

func TestScanIgnoresDeletedPredecessor(t *testing.T) {
	_, succ := forwardedPair()
	assert.Empty(t, Scan([]models.Task{succ}, testNow))
}

func TestScanChain(t *testing.T) {
	first, second := forwardedPair()
	third := Successor(second, "2024-03-20", "third", Options{}, testNow)
	second = second.Apply(SealPatch(second, "2024-03-20", "third", Options{}, testNow))

	assert.Empty(t, Scan([]models.Task{first, second, third}, testNow))
	assert.Equal(t, 2, third.ForwardCount)
}
