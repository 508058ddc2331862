package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/githubphadnis/xta/constants"
	"github.com/githubphadnis/xta/internal/common"
	"github.com/githubphadnis/xta/internal/entity"
	"github.com/githubphadnis/xta/internal/llm"
	"github.com/githubphadnis/xta/internal/pipeline"
)

// BatchStore records the bookkeeping row for each upload run.
type BatchStore interface {
	Create(ctx context.Context, batch *entity.ImportBatch) error
	Finish(ctx context.Context, batch *entity.ImportBatch) error
}

// Service routes one uploaded file through classification, the matching
// pipeline, and the committer, recording the run as an ImportBatch.
type Service struct {
	Receipts   *pipeline.ReceiptPipeline
	Statements *pipeline.StatementPipeline
	Committer  *Committer
	Batches    BatchStore
	Logger     *slog.Logger
	Now        func() time.Time
}

func NewService(extractor llm.Extractor, store ExpenseStore, batches BatchStore, uploadDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Receipts:   pipeline.NewReceiptPipeline(extractor, uploadDir, logger),
		Statements: pipeline.NewStatementPipeline(extractor, logger),
		Committer:  NewCommitter(store, logger),
		Batches:    batches,
		Logger:     logger,
		Now:        time.Now,
	}
}

// ImportFile ingests one uploaded file. The returned batch always reflects
// the final outcome; a non-nil error means no rows were committed.
//
// Format is decided from the filename extension alone. Unsupported
// extensions are rejected here, before any provider call or file write.
func (s *Service) ImportFile(ctx context.Context, filename string, contents []byte) (*entity.ImportBatch, error) {
	start := time.Now()

	batch := &entity.ImportBatch{
		Filename: filename,
		Format:   constants.ClassifyFilename(filename),
		Status:   constants.BatchStatusRunning,
	}
	if err := s.Batches.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("record batch: %w", err)
	}

	err := s.runImport(ctx, batch, contents)
	now := s.Now().UTC()
	batch.FinishedAt = &now
	switch {
	case err == nil:
		batch.Status = constants.BatchStatusCommitted
	case errors.Is(err, common.ErrDatabase):
		batch.Status = constants.BatchStatusFailed
		batch.Reason = err.Error()
	default:
		batch.Status = constants.BatchStatusRejected
		batch.Reason = err.Error()
	}
	if ferr := s.Batches.Finish(ctx, batch); ferr != nil {
		s.Logger.Error("ingest.batch.finish_failed", "batch_id", batch.ID, "error", ferr)
	}

	s.Logger.Info("ingest.import.done",
		"batch_id", batch.ID,
		"filename", filename,
		"format", batch.Format,
		"status", batch.Status,
		"inserted", batch.Inserted,
		"duplicates_skipped", batch.DuplicatesSkipped,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return batch, err
}

func (s *Service) runImport(ctx context.Context, batch *entity.ImportBatch, contents []byte) error {
	var candidates []entity.Expense

	switch batch.Format {
	case constants.SPREADSHEET:
		res, err := s.Statements.Run(ctx, batch.Filename, contents)
		batch.RowsSeen = res.RowsSeen
		batch.RowsSkipped = res.RowsSkipped
		if err != nil {
			return err
		}
		candidates = res.Candidates
	case constants.IMAGE:
		candidate, err := s.Receipts.Run(ctx, batch.Filename, contents)
		if err != nil {
			return err
		}
		batch.RowsSeen = 1
		candidates = []entity.Expense{candidate}
	default:
		return fmt.Errorf("%w: %s", common.ErrUnsupportedFormat, batch.Filename)
	}

	rep, err := s.Committer.Commit(ctx, candidates)
	batch.Inserted = rep.Inserted
	batch.DuplicatesSkipped = rep.DuplicatesSkipped
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return nil
}
