package repository

import (
	"context"
	"time"

	"github.com/fwerner/plantguard/internal/model"
)

// TaskRepository maintains the per-unit watering task queue.
type TaskRepository interface {
	// Poll returns the task to hand to the unit. A dispatched task
	// younger than staleAfter pins the result (idempotent poll).
	// Otherwise the newest pending task is dispatched and every other
	// pending task, plus any stale dispatched task, is canceled in the
	// same transaction. Returns ErrNoTaskAvailable when nothing is
	// dispatchable.
	Poll(ctx context.Context, unitID int64, staleAfter time.Duration) (*model.WateringTask, error)

	// Acknowledge moves a task from dispatched to done and stamps the
	// execution time. Returns ErrAckFailed unless the task exists,
	// belongs to the unit, and is currently dispatched.
	Acknowledge(ctx context.Context, unitID, taskID int64) error

	// CreateSuperseding inserts a new task with the given status and
	// cancels all of the unit's tasks whose status is in cancel, in one
	// transaction.
	CreateSuperseding(ctx context.Context, unitID, amount int64, status model.TaskStatus, cancel []model.TaskStatus) (*model.WateringTask, error)

	// Authorize moves a task from pending-unauthorized to
	// pending-authorized. Returns ErrNotFound if no such transition
	// applies.
	Authorize(ctx context.Context, taskID int64) error
}
