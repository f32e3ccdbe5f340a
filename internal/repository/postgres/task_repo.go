package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fwerner/plantguard/internal/errs"
	"github.com/fwerner/plantguard/internal/model"
)

// TaskRepo implements TaskRepository using PostgreSQL. All multi-row
// decisions run under row locks in one transaction so that concurrent
// polls for the same unit serialize instead of double-dispatching.
type TaskRepo struct{ db *DB }

// NewTaskRepo constructs a task repository.
func NewTaskRepo(db *DB) *TaskRepo { return &TaskRepo{db: db} }

// Poll selects the task to hand out. A dispatched task younger than
// staleAfter pins the result so retried polls are idempotent. Otherwise
// the newest pending task wins and every other pending task, plus any
// stale dispatched leftovers, is canceled in the same transaction.
func (r *TaskRepo) Poll(ctx context.Context, unitID int64, staleAfter time.Duration) (task *model.WateringTask, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	const selDispatched = `
SELECT id, amount, created_at FROM watering_tasks
WHERE unit_id=$1 AND status=$2
ORDER BY created_at DESC, id DESC
FOR UPDATE`
	rows, err := tx.Query(ctx, selDispatched, unitID, model.TaskDispatched)
	if err != nil {
		return nil, err
	}
	var staleIDs []int64
	for rows.Next() {
		var t model.WateringTask
		if err = rows.Scan(&t.ID, &t.Amount, &t.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		t.UnitID, t.Status = unitID, model.TaskDispatched
		if task == nil && time.Since(t.CreatedAt) < staleAfter {
			t2 := t
			task = &t2
		} else {
			staleIDs = append(staleIDs, t.ID)
		}
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if task != nil {
		return task, nil
	}

	const selPending = `
SELECT id, amount, status, created_at FROM watering_tasks
WHERE unit_id=$1 AND status IN ($2, $3)
ORDER BY created_at DESC, id DESC
FOR UPDATE`
	rows, err = tx.Query(ctx, selPending, unitID, model.TaskPendingUnauthorized, model.TaskPendingAuthorized)
	if err != nil {
		return nil, err
	}
	var loserIDs []int64
	for rows.Next() {
		var t model.WateringTask
		if err = rows.Scan(&t.ID, &t.Amount, &t.Status, &t.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		t.UnitID = unitID
		if task == nil {
			t2 := t
			task = &t2
		} else {
			loserIDs = append(loserIDs, t.ID)
		}
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if task == nil {
		// Stale dispatched tasks stay put until a successor exists.
		return nil, errs.ErrNoTaskAvailable
	}

	loserIDs = append(loserIDs, staleIDs...)
	if len(loserIDs) > 0 {
		const cancel = `UPDATE watering_tasks SET status=$1 WHERE id = ANY($2)`
		if _, err = tx.Exec(ctx, cancel, model.TaskCanceled, loserIDs); err != nil {
			return nil, err
		}
	}

	const dispatch = `UPDATE watering_tasks SET status=$1 WHERE id=$2`
	if _, err = tx.Exec(ctx, dispatch, model.TaskDispatched, task.ID); err != nil {
		return nil, err
	}
	task.Status = model.TaskDispatched
	return task, nil
}

// Acknowledge completes a dispatched task. The single conditional UPDATE
// makes wrong id, wrong unit, and wrong state indistinguishable.
func (r *TaskRepo) Acknowledge(ctx context.Context, unitID, taskID int64) error {
	const q = `
UPDATE watering_tasks SET status=$1, executed_at=now()
WHERE id=$2 AND unit_id=$3 AND status=$4`
	tag, err := r.db.Pool.Exec(ctx, q, model.TaskDone, taskID, unitID, model.TaskDispatched)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrAckFailed
	}
	return nil
}

// CreateSuperseding inserts a new task and cancels the unit's tasks in
// the cancel set atomically.
func (r *TaskRepo) CreateSuperseding(ctx context.Context, unitID, amount int64, status model.TaskStatus, cancel []model.TaskStatus) (task *model.WateringTask, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	if len(cancel) > 0 {
		statuses := make([]int, len(cancel))
		for i, s := range cancel {
			statuses[i] = int(s)
		}
		const upd = `UPDATE watering_tasks SET status=$1 WHERE unit_id=$2 AND status = ANY($3)`
		if _, err = tx.Exec(ctx, upd, model.TaskCanceled, unitID, statuses); err != nil {
			return nil, err
		}
	}

	const ins = `
INSERT INTO watering_tasks (unit_id, amount, status)
VALUES ($1, $2, $3)
RETURNING id, created_at`
	task = &model.WateringTask{UnitID: unitID, Amount: amount, Status: status}
	if err = tx.QueryRow(ctx, ins, unitID, amount, status).Scan(&task.ID, &task.CreatedAt); err != nil {
		return nil, err
	}
	return task, nil
}

// Authorize releases an operator-approved task for dispatch.
func (r *TaskRepo) Authorize(ctx context.Context, taskID int64) error {
	const q = `UPDATE watering_tasks SET status=$1 WHERE id=$2 AND status=$3`
	tag, err := r.db.Pool.Exec(ctx, q, model.TaskPendingAuthorized, taskID, model.TaskPendingUnauthorized)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
