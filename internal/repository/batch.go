package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/githubphadnis/xta/internal/common"
	"github.com/githubphadnis/xta/internal/entity"
)

// ImportBatchRepository records the lifecycle of upload runs.
type ImportBatchRepository struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewImportBatchRepository(db *gorm.DB, logger *slog.Logger) *ImportBatchRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportBatchRepository{db: db, log: logger}
}

func (r *ImportBatchRepository) Create(ctx context.Context, batch *entity.ImportBatch) error {
	if err := r.db.WithContext(ctx).Create(batch).Error; err != nil {
		return common.WrapError(err, "create import batch")
	}
	return nil
}

// Finish writes the terminal state of a batch, counts included.
func (r *ImportBatchRepository) Finish(ctx context.Context, batch *entity.ImportBatch) error {
	if err := r.db.WithContext(ctx).Save(batch).Error; err != nil {
		return common.WrapError(err, "finish import batch")
	}
	return nil
}

func (r *ImportBatchRepository) Get(ctx context.Context, id uuid.UUID) (*entity.ImportBatch, error) {
	var batch entity.ImportBatch
	err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, "get import batch")
	}
	return &batch, nil
}

// List returns the most recent batches, newest first.
func (r *ImportBatchRepository) List(ctx context.Context, limit int) ([]entity.ImportBatch, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []entity.ImportBatch
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, common.WrapError(err, "list import batches")
	}
	return out, nil
}
