package service

import (
	"context"
	"errors"
	"time"

	"github.com/fwerner/plantguard/internal/errs"
	"github.com/fwerner/plantguard/internal/model"
	"github.com/fwerner/plantguard/internal/repository"
)

// TaskService exposes the watering task queue to devices, the planner,
// and the operator interface.
type TaskService interface {
	// Poll authenticates the device and hands out its current task.
	Poll(ctx context.Context, identityKey, signatureB64 string) (*model.WateringTask, error)
	// Acknowledge authenticates the device and completes a dispatched task.
	Acknowledge(ctx context.Context, identityKey, signatureB64 string, taskID int64) error
	// ScheduleWatering creates a task for the unit, superseding older
	// ones according to the unit's authorization mode.
	ScheduleWatering(ctx context.Context, unit *model.Unit, amount int64) (*model.WateringTask, error)
	// Authorize releases an operator-approved task for dispatch.
	Authorize(ctx context.Context, taskID int64) error
}

type TaskServiceImpl struct {
	units      repository.UnitRepository
	auth       ChallengeService
	tasks      repository.TaskRepository
	staleAfter time.Duration
}

// NewTaskService constructs TaskService. staleAfter bounds how long a
// dispatched task pins the poll result before it may be superseded.
func NewTaskService(units repository.UnitRepository, auth ChallengeService, tasks repository.TaskRepository, staleAfter time.Duration) *TaskServiceImpl {
	return &TaskServiceImpl{units: units, auth: auth, tasks: tasks, staleAfter: staleAfter}
}

// Poll returns the unit's dispatched task, dispatching the newest
// pending one if necessary.
func (s *TaskServiceImpl) Poll(ctx context.Context, identityKey, signatureB64 string) (*model.WateringTask, error) {
	u, err := authenticateUnit(ctx, s.units, s.auth, identityKey, signatureB64)
	if err != nil {
		return nil, err
	}
	return s.tasks.Poll(ctx, u.ID, s.staleAfter)
}

// Acknowledge records the execution of a dispatched task.
func (s *TaskServiceImpl) Acknowledge(ctx context.Context, identityKey, signatureB64 string, taskID int64) error {
	u, err := authenticateUnit(ctx, s.units, s.auth, identityKey, signatureB64)
	if err != nil {
		return err
	}
	if taskID <= 0 {
		return errs.ErrAckFailed
	}
	return s.tasks.Acknowledge(ctx, u.ID, taskID)
}

// ScheduleWatering creates a new task. Units set up for unattended
// operation get pre-authorized tasks and supersede prior tasks in both
// pending states; otherwise only unapproved predecessors are canceled,
// so an operator-approved task is never silently discarded.
func (s *TaskServiceImpl) ScheduleWatering(ctx context.Context, unit *model.Unit, amount int64) (*model.WateringTask, error) {
	if amount <= 0 {
		return nil, errors.New("validation: amount must be positive")
	}
	status := model.TaskPendingUnauthorized
	cancel := []model.TaskStatus{model.TaskPendingUnauthorized}
	if unit.UnattendedWatering {
		status = model.TaskPendingAuthorized
		cancel = append(cancel, model.TaskPendingAuthorized)
	}
	return s.tasks.CreateSuperseding(ctx, unit.ID, amount, status, cancel)
}

// Authorize moves a pending task into the dispatchable state.
func (s *TaskServiceImpl) Authorize(ctx context.Context, taskID int64) error {
	if taskID <= 0 {
		return errs.ErrNotFound
	}
	return s.tasks.Authorize(ctx, taskID)
}
