package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/travel-approval-service/internal/domain"
)

// ProfileRepository persists requester identities. Primary email and national
// ID are each unique across profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	Update(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	GetByEmail(ctx context.Context, email string) (*domain.Profile, error)
	GetByNationalID(ctx context.Context, nationalID string) (*domain.Profile, error)
}

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns a Postgres-backed implementation.
func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{pool: pool}
}

const profileColumns = `id, primary_email, national_id, full_name, phone, department, job_title,
               passport_number, passport_country, created_at, updated_at`

func (r *profileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	const query = `
        INSERT INTO profiles (primary_email, national_id, full_name, phone, department, job_title, passport_number, passport_country)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		profile.PrimaryEmail,
		profile.NationalID,
		profile.FullName,
		profile.Phone,
		profile.Department,
		profile.JobTitle,
		profile.PassportNumber,
		profile.PassportCountry,
	).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)
	return translateError(err)
}

func (r *profileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	const query = `
        UPDATE profiles SET primary_email=$1, national_id=$2, full_name=$3, phone=$4, department=$5,
            job_title=$6, passport_number=$7, passport_country=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		profile.PrimaryEmail,
		profile.NationalID,
		profile.FullName,
		profile.Phone,
		profile.Department,
		profile.JobTitle,
		profile.PassportNumber,
		profile.PassportCountry,
		profile.ID,
	).Scan(&profile.UpdatedAt)
	return translateError(err)
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	return r.fetchSingle(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id=$1`, id)
}

func (r *profileRepository) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return r.fetchSingle(ctx, `SELECT `+profileColumns+` FROM profiles WHERE primary_email=$1`, email)
}

func (r *profileRepository) GetByNationalID(ctx context.Context, nationalID string) (*domain.Profile, error) {
	return r.fetchSingle(ctx, `SELECT `+profileColumns+` FROM profiles WHERE national_id=$1`, nationalID)
}

func (r *profileRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Profile, error) {
	profile, err := scanProfile(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, translateError(err)
	}
	return profile, nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	if err := row.Scan(
		&p.ID,
		&p.PrimaryEmail,
		&p.NationalID,
		&p.FullName,
		&p.Phone,
		&p.Department,
		&p.JobTitle,
		&p.PassportNumber,
		&p.PassportCountry,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
