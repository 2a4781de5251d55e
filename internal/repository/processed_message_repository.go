package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/travel-approval-service/internal/domain"
)

// ProcessedMessageRepository is the idempotency ledger for inbound email.
type ProcessedMessageRepository interface {
	// Insert creates the ledger row unless one already exists for the same
	// internet message id; inserted is false in that case and msg is untouched.
	Insert(ctx context.Context, msg *domain.ProcessedMessage) (inserted bool, err error)
	GetByInternetMessageID(ctx context.Context, internetMessageID string) (*domain.ProcessedMessage, error)
	// Finalize moves an IN_FLIGHT row to its final outcome. It returns
	// ErrStaleState when the row was already finalized.
	Finalize(ctx context.Context, msg *domain.ProcessedMessage) error
}

type processedMessageRepository struct {
	pool *pgxpool.Pool
}

// NewProcessedMessageRepository constructs repository.
func NewProcessedMessageRepository(pool *pgxpool.Pool) ProcessedMessageRepository {
	return &processedMessageRepository{pool: pool}
}

func (r *processedMessageRepository) Insert(ctx context.Context, msg *domain.ProcessedMessage) (bool, error) {
	const query = `
        INSERT INTO processed_messages (internet_message_id, provider_message_id, status)
        VALUES ($1,$2,$3)
        ON CONFLICT (internet_message_id) DO NOTHING
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		msg.InternetMessageID,
		msg.ProviderMessageID,
		msg.Status,
	).Scan(&msg.ID, &msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		err = translateError(err)
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *processedMessageRepository) GetByInternetMessageID(ctx context.Context, internetMessageID string) (*domain.ProcessedMessage, error) {
	const query = `
        SELECT id, internet_message_id, provider_message_id, status, error, case_id, profile_id, created_at, updated_at
        FROM processed_messages WHERE internet_message_id=$1`
	var msg domain.ProcessedMessage
	if err := r.pool.QueryRow(ctx, query, internetMessageID).Scan(
		&msg.ID,
		&msg.InternetMessageID,
		&msg.ProviderMessageID,
		&msg.Status,
		&msg.Error,
		&msg.CaseID,
		&msg.ProfileID,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	); err != nil {
		return nil, translateError(err)
	}
	return &msg, nil
}

func (r *processedMessageRepository) Finalize(ctx context.Context, msg *domain.ProcessedMessage) error {
	const query = `
        UPDATE processed_messages SET status=$1, error=$2, case_id=$3, profile_id=$4, updated_at=NOW()
        WHERE id=$5 AND status='IN_FLIGHT'`
	cmd, err := r.pool.Exec(ctx, query,
		msg.Status,
		msg.Error,
		msg.CaseID,
		msg.ProfileID,
		msg.ID,
	)
	if err != nil {
		return translateError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}
