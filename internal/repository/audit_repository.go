package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/travel-approval-service/internal/domain"
)

// AuditRepository appends audit entries. There is no update or delete path.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	ListByCase(ctx context.Context, caseID string) ([]domain.AuditEntry, error)
	ListByProfile(ctx context.Context, profileID string) ([]domain.AuditEntry, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_log (actor_staff_id, case_id, profile_id, action, detail)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.ActorStaffID,
		entry.CaseID,
		entry.ProfileID,
		entry.Action,
		entry.Detail,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *auditRepository) ListByCase(ctx context.Context, caseID string) ([]domain.AuditEntry, error) {
	return r.list(ctx, `SELECT id, actor_staff_id, case_id, profile_id, action, detail, created_at
        FROM audit_log WHERE case_id=$1 ORDER BY created_at ASC, id ASC`, caseID)
}

func (r *auditRepository) ListByProfile(ctx context.Context, profileID string) ([]domain.AuditEntry, error) {
	return r.list(ctx, `SELECT id, actor_staff_id, case_id, profile_id, action, detail, created_at
        FROM audit_log WHERE profile_id=$1 ORDER BY created_at ASC, id ASC`, profileID)
}

func (r *auditRepository) list(ctx context.Context, query string, arg any) ([]domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAudit(rows)
}

func scanAudit(rows pgx.Rows) ([]domain.AuditEntry, error) {
	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.ActorStaffID,
			&entry.CaseID,
			&entry.ProfileID,
			&entry.Action,
			&entry.Detail,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
