package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
	"github.com/kirillkom/commerce-rag/internal/core/ports"
)

type IngestSourceUseCase struct {
	repo    ports.SourceRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestSourceUseCase(
	repo ports.SourceRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestSourceUseCase {
	return &IngestSourceUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestSourceUseCase) Upload(
	ctx context.Context,
	meta domain.UploadSource,
	body io.Reader,
) (*domain.SourceFile, error) {
	if !meta.Domain.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload source", fmt.Errorf("unknown domain %q", meta.Domain))
	}
	if strings.TrimSpace(meta.Filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload source", errors.New("filename is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(meta.Filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	src := &domain.SourceFile{
		ID:          id,
		Domain:      meta.Domain,
		Filename:    meta.Filename,
		MimeType:    meta.MimeType,
		StoragePath: storageKey,
		PolicyType:  strings.ToLower(strings.TrimSpace(meta.PolicyType)),
		PolicyID:    strings.ToUpper(strings.TrimSpace(meta.PolicyID)),
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, src); err != nil {
		return nil, fmt.Errorf("create source metadata: %w", err)
	}

	if err := uc.queue.PublishSourceIngested(ctx, src.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return src, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "source.bin"
	}
	return base
}
