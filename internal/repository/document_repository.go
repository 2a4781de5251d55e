package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/travel-approval-service/internal/domain"
)

// DocumentRepository persists document metadata. Rows are immutable.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	ListByCase(ctx context.Context, caseID string) ([]domain.Document, error)
	ListByProfile(ctx context.Context, profileID string) ([]domain.Document, error)
}

type documentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository constructs repository.
func NewDocumentRepository(pool *pgxpool.Pool) DocumentRepository {
	return &documentRepository{pool: pool}
}

const documentColumns = `id, profile_id, case_id, kind, original_filename, media_type, size_bytes,
               blob_url, blob_pathname, checksum_sha256, source_email_message_id, created_at`

func (r *documentRepository) Create(ctx context.Context, doc *domain.Document) error {
	const query = `
        INSERT INTO documents (profile_id, case_id, kind, original_filename, media_type, size_bytes,
            blob_url, blob_pathname, checksum_sha256, source_email_message_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		doc.ProfileID,
		doc.CaseID,
		doc.Kind,
		doc.OriginalFilename,
		doc.MediaType,
		doc.SizeBytes,
		doc.BlobURL,
		doc.BlobPathname,
		doc.ChecksumSHA256,
		doc.SourceEmailMessageID,
	).Scan(&doc.ID, &doc.CreatedAt)
	return translateError(err)
}

func (r *documentRepository) ListByCase(ctx context.Context, caseID string) ([]domain.Document, error) {
	return r.list(ctx, `SELECT `+documentColumns+` FROM documents WHERE case_id=$1 ORDER BY created_at ASC`, caseID)
}

func (r *documentRepository) ListByProfile(ctx context.Context, profileID string) ([]domain.Document, error) {
	return r.list(ctx, `SELECT `+documentColumns+` FROM documents WHERE profile_id=$1 ORDER BY created_at ASC`, profileID)
}

func (r *documentRepository) list(ctx context.Context, query string, arg any) ([]domain.Document, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func scanDocuments(rows pgx.Rows) ([]domain.Document, error) {
	var result []domain.Document
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(
			&doc.ID,
			&doc.ProfileID,
			&doc.CaseID,
			&doc.Kind,
			&doc.OriginalFilename,
			&doc.MediaType,
			&doc.SizeBytes,
			&doc.BlobURL,
			&doc.BlobPathname,
			&doc.ChecksumSHA256,
			&doc.SourceEmailMessageID,
			&doc.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	return result, rows.Err()
}
