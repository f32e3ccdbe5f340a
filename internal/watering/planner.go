// Package watering recomputes a unit's watering need after new telemetry.
package watering

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fwerner/plantguard/internal/errs"
	"github.com/fwerner/plantguard/internal/model"
	"github.com/fwerner/plantguard/internal/repository"
	"github.com/fwerner/plantguard/internal/service"
)

// Watering policy parameters. The policy itself is deliberately simple
// arithmetic; the interesting part is the task supersession around it.
const (
	// targetGroundHumidity is the ground humidity (percent) below which
	// a watering task is created.
	targetGroundHumidity = 60.0
	// mlPerPercent scales the humidity deficit to a water amount.
	mlPerPercent = 15.0
)

// Planner consumes ingest notifications on a buffered channel and
// schedules watering tasks. Submissions never block the ingest path: a
// full queue drops the notification, which is safe because the next
// telemetry submission retriggers the same computation and task creation
// goes through the supersession rules either way.
type Planner struct {
	tasks        service.TaskService
	measurements repository.MeasurementRepository
	log          *zap.Logger
	jobs         chan model.Unit
}

// New constructs a Planner with the given queue capacity.
func New(tasks service.TaskService, measurements repository.MeasurementRepository, log *zap.Logger, queueSize int) *Planner {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Planner{
		tasks:        tasks,
		measurements: measurements,
		log:          log,
		jobs:         make(chan model.Unit, queueSize),
	}
}

// Notify submits a recomputation for the unit without blocking.
func (p *Planner) Notify(unit model.Unit) {
	select {
	case p.jobs <- unit:
	default:
		p.log.Warn("watering queue full, dropping recomputation",
			zap.Int64("unit_id", unit.ID))
	}
}

// Run processes notifications until ctx is canceled.
func (p *Planner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case unit := <-p.jobs:
			p.plan(ctx, unit)
		}
	}
}

// plan computes the watering need from the newest reading and schedules
// a task when the plant is dry. Failures are logged, never propagated:
// the telemetry submission that triggered this already succeeded.
func (p *Planner) plan(ctx context.Context, unit model.Unit) {
	m, err := p.measurements.LatestForUnit(ctx, unit.ID)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			p.log.Error("watering: loading latest measurement failed",
				zap.Int64("unit_id", unit.ID), zap.Error(err))
		}
		return
	}
	if m.GroundHumidity == nil {
		// no usable reading, nothing to decide
		return
	}
	deficit := targetGroundHumidity - *m.GroundHumidity
	if deficit <= 0 {
		return
	}
	amount := int64(deficit * mlPerPercent)
	if amount <= 0 {
		return
	}
	task, err := p.tasks.ScheduleWatering(ctx, &unit, amount)
	if err != nil {
		p.log.Error("watering: scheduling task failed",
			zap.Int64("unit_id", unit.ID), zap.Error(err))
		return
	}
	p.log.Info("watering task scheduled",
		zap.Int64("unit_id", unit.ID),
		zap.Int64("task_id", task.ID),
		zap.Int64("amount_ml", amount),
		zap.String("status", task.Status.String()),
	)
}
