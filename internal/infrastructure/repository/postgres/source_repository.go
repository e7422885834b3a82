package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

type SourceRepository struct {
	db *sql.DB
}

func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

func (r *SourceRepository) Create(ctx context.Context, src *domain.SourceFile) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ingest_sources (
	id, domain, filename, mime_type, storage_path, policy_type, policy_id, record_count, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		src.ID, string(src.Domain), src.Filename, src.MimeType, src.StoragePath, src.PolicyType, src.PolicyID,
		src.RecordCount, string(src.Status), src.Error, src.CreatedAt, src.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}

func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.SourceFile, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, domain, filename, mime_type, storage_path, policy_type, policy_id, record_count, status, error_message, created_at, updated_at
FROM ingest_sources
WHERE id = $1
`, id)

	var src domain.SourceFile
	var domainName, status string

	err := row.Scan(
		&src.ID, &domainName, &src.Filename, &src.MimeType, &src.StoragePath, &src.PolicyType, &src.PolicyID,
		&src.RecordCount, &status, &src.Error, &src.CreatedAt, &src.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSourceNotFound, "get source", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan source: %w", err)
	}

	src.Domain = domain.Domain(domainName)
	src.Status = domain.SourceStatus(status)
	return &src, nil
}

func (r *SourceRepository) UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE ingest_sources
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update source status: %w", err)
	}
	return requireAffected(res, "update source status", id)
}

func (r *SourceRepository) SaveRecordCount(ctx context.Context, id string, count int) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE ingest_sources
SET record_count = $2, updated_at = $3
WHERE id = $1
`, id, count, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save record count: %w", err)
	}
	return requireAffected(res, "save record count", id)
}

func requireAffected(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrSourceNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
