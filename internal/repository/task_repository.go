package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/travel-approval-service/internal/domain"
)

// TaskResolution describes one workflow transition: the pending task is
// resolved, the case moves to CaseStatus and, when Next is set, the next
// pending task is created. All of it happens atomically or not at all.
type TaskResolution struct {
	TaskID      string
	CaseID      string
	Status      domain.TaskStatus
	CompletedAt time.Time
	CaseStatus  domain.CaseStatus
	Next        *domain.Task
}

// TaskRepository persists workflow tasks. A case holds at most one PENDING
// task at any time.
type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	ListByCase(ctx context.Context, caseID string) ([]domain.Task, error)
	ListPending(ctx context.Context, staffID string, role domain.StaffRole) ([]domain.Task, error)
	// Resolve returns ErrStaleState when the task is no longer pending.
	Resolve(ctx context.Context, res TaskResolution) error
	// Assign returns ErrStaleState when the task is no longer pending.
	Assign(ctx context.Context, taskID, staffID string) (*domain.Task, error)
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository builds repository.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

const taskColumns = `id, case_id, step, status, assigned_staff_id, assigned_role, created_at, updated_at, completed_at`

func insertTask(ctx context.Context, tx pgx.Tx, task *domain.Task) error {
	const query = `
        INSERT INTO tasks (case_id, step, status, assigned_staff_id, assigned_role)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return tx.QueryRow(ctx, query,
		task.CaseID,
		task.Step,
		task.Status,
		task.AssignedStaffID,
		task.AssignedRole,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, ErrNotFound
	}
	return &tasks[0], nil
}

func (r *taskRepository) ListByCase(ctx context.Context, caseID string) ([]domain.Task, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE case_id=$1 ORDER BY created_at ASC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (r *taskRepository) ListPending(ctx context.Context, staffID string, role domain.StaffRole) ([]domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks
        WHERE status='PENDING' AND (assigned_staff_id=$1 OR assigned_role=$2)
        ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, staffID, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (r *taskRepository) Resolve(ctx context.Context, res TaskResolution) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `
            UPDATE tasks SET status=$1, completed_at=$2, updated_at=NOW()
            WHERE id=$3 AND case_id=$4 AND status='PENDING'`,
			res.Status, res.CompletedAt, res.TaskID, res.CaseID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrStaleState
		}
		cmd, err = tx.Exec(ctx, `UPDATE cases SET status=$1, updated_at=NOW() WHERE id=$2`, res.CaseStatus, res.CaseID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrNotFound
		}
		if res.Next != nil {
			res.Next.CaseID = res.CaseID
			return insertTask(ctx, tx, res.Next)
		}
		return nil
	})
	return translateError(err)
}

func (r *taskRepository) Assign(ctx context.Context, taskID, staffID string) (*domain.Task, error) {
	rows, err := r.pool.Query(ctx, `
        UPDATE tasks SET assigned_staff_id=$1, updated_at=NOW()
        WHERE id=$2 AND status='PENDING'
        RETURNING `+taskColumns, staffID, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, ErrStaleState
	}
	return &tasks[0], nil
}

func scanTasks(rows pgx.Rows) ([]domain.Task, error) {
	var result []domain.Task
	for rows.Next() {
		var task domain.Task
		if err := rows.Scan(
			&task.ID,
			&task.CaseID,
			&task.Step,
			&task.Status,
			&task.AssignedStaffID,
			&task.AssignedRole,
			&task.CreatedAt,
			&task.UpdatedAt,
			&task.CompletedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, task)
	}
	return result, rows.Err()
}
