package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/travel-approval-service/internal/domain"
)

// CaseFilter captures staff search parameters.
type CaseFilter struct {
	ProfileID   *string
	Sources     []domain.CaseSource
	Statuses    []domain.CaseStatus
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// CaseRepository encapsulates case persistence.
type CaseRepository interface {
	// CreateWithTask inserts the case and its first pending task atomically.
	CreateWithTask(ctx context.Context, c *domain.Case, first *domain.Task) error
	// UpdateDetails rewrites trip and monetary fields. Status is owned by
	// TaskRepository.Resolve and is not touched here.
	UpdateDetails(ctx context.Context, c *domain.Case) error
	GetByID(ctx context.Context, id string) (*domain.Case, error)
	GetByClientGeneratedID(ctx context.Context, key string) (*domain.Case, error)
	ListWithFilter(ctx context.Context, filter CaseFilter) ([]domain.Case, error)
}

type caseRepository struct {
	pool *pgxpool.Pool
}

// NewCaseRepository instantiates repository.
func NewCaseRepository(pool *pgxpool.Pool) CaseRepository {
	return &caseRepository{pool: pool}
}

const caseColumns = `id, profile_id, created_by_staff_id, source, status, destination_country, destination_city,
               departure_date, return_date, reason, event_name, organizing_institution, estimated_amount,
               currency, cost_center, notes, client_generated_id, raw_content, created_at, updated_at`

func (r *caseRepository) CreateWithTask(ctx context.Context, c *domain.Case, first *domain.Task) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insertCase = `
            INSERT INTO cases (profile_id, created_by_staff_id, source, status, destination_country, destination_city,
                departure_date, return_date, reason, event_name, organizing_institution, estimated_amount,
                currency, cost_center, notes, client_generated_id, raw_content)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
            RETURNING id, created_at, updated_at`
		if err := tx.QueryRow(ctx, insertCase,
			c.ProfileID,
			c.CreatedByStaffID,
			c.Source,
			c.Status,
			c.DestinationCountry,
			c.DestinationCity,
			c.DepartureDate,
			c.ReturnDate,
			c.Reason,
			c.EventName,
			c.OrganizingInstitution,
			c.EstimatedAmount,
			c.Currency,
			c.CostCenter,
			c.Notes,
			c.ClientGeneratedID,
			c.RawContent,
		).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return err
		}
		first.CaseID = c.ID
		return insertTask(ctx, tx, first)
	})
	return translateError(err)
}

func (r *caseRepository) UpdateDetails(ctx context.Context, c *domain.Case) error {
	const query = `
        UPDATE cases SET destination_country=$1, destination_city=$2, departure_date=$3, return_date=$4,
            reason=$5, event_name=$6, organizing_institution=$7, estimated_amount=$8, currency=$9,
            cost_center=$10, notes=$11, raw_content=$12, updated_at=NOW()
        WHERE id=$13
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		c.DestinationCountry,
		c.DestinationCity,
		c.DepartureDate,
		c.ReturnDate,
		c.Reason,
		c.EventName,
		c.OrganizingInstitution,
		c.EstimatedAmount,
		c.Currency,
		c.CostCenter,
		c.Notes,
		c.RawContent,
		c.ID,
	).Scan(&c.UpdatedAt)
	return translateError(err)
}

func (r *caseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	return r.fetchSingle(ctx, `SELECT `+caseColumns+` FROM cases WHERE id=$1`, id)
}

func (r *caseRepository) GetByClientGeneratedID(ctx context.Context, key string) (*domain.Case, error) {
	return r.fetchSingle(ctx, `SELECT `+caseColumns+` FROM cases WHERE client_generated_id=$1`, key)
}

func (r *caseRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Case, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cases, err := scanCases(rows)
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, ErrNotFound
	}
	return &cases[0], nil
}

func (r *caseRepository) ListWithFilter(ctx context.Context, filter CaseFilter) ([]domain.Case, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ProfileID != nil {
		args = append(args, *filter.ProfileID)
		clauses = append(clauses, fmt.Sprintf("profile_id=$%d", len(args)))
	}
	if len(filter.Sources) > 0 {
		placeholders := make([]string, len(filter.Sources))
		for i, source := range filter.Sources {
			args = append(args, source)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("source IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(COALESCE(reason,'')) LIKE %s OR LOWER(COALESCE(event_name,'')) LIKE %s OR LOWER(COALESCE(destination_country,'')) LIKE %s)",
			placeholder, placeholder, placeholder))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM cases WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		caseColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCases(rows)
}

func scanCases(rows pgx.Rows) ([]domain.Case, error) {
	var result []domain.Case
	for rows.Next() {
		var c domain.Case
		if err := rows.Scan(
			&c.ID,
			&c.ProfileID,
			&c.CreatedByStaffID,
			&c.Source,
			&c.Status,
			&c.DestinationCountry,
			&c.DestinationCity,
			&c.DepartureDate,
			&c.ReturnDate,
			&c.Reason,
			&c.EventName,
			&c.OrganizingInstitution,
			&c.EstimatedAmount,
			&c.Currency,
			&c.CostCenter,
			&c.Notes,
			&c.ClientGeneratedID,
			&c.RawContent,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
