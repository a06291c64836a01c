package tasks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"eventpay/internal/models"
	"eventpay/internal/services"
)

// LateFeeSweepTaskDef runs the late fee recalculator from the worker.
// Scheduled as a recurring task (typically nightly); safe to re-run
// because the recalculator only applies positive fee deltas.
type LateFeeSweepTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *LateFeeSweepTaskDef) TaskID() string {
	return "late_fee_sweep"
}

// CreateTask builds the recurring sweep record. recurring is an RFC 5545
// RRULE string, e.g. "FREQ=DAILY".
func (t *LateFeeSweepTaskDef) CreateTask(eventID *uint, due time.Time, recurring *string) (*models.ScheduledTask, error) {
	args := map[string]interface{}{}
	if eventID != nil {
		args["event_id"] = *eventID
	}
	taskType := models.ScheduledTaskTypeOneTime
	if recurring != nil {
		taskType = models.ScheduledTaskTypeRecurring
	}
	return BuildScheduledTask(t.TaskID(), args, due, recurring, taskType, 3)
}

// HandleExecution runs one sweep
func (t *LateFeeSweepTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	var eventID *uint
	if id, ok := uintArg(task.Arguments, "event_id"); ok && id > 0 {
		eventID = &id
	}

	store := services.NewGormStore(db)
	ledger := services.NewLedgerService(store)
	recalc := services.NewLateFeeRecalculator(store, ledger)

	result, err := recalc.Run(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"status":     "success",
		"scanned":    result.Scanned,
		"applied":    result.Applied,
		"skipped":    result.Skipped,
		"total_fees": result.TotalFees,
	}, nil
}

// LateFeeSweepTask is the singleton instance of LateFeeSweepTaskDef
var LateFeeSweepTask = &LateFeeSweepTaskDef{}
