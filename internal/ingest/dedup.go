package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/githubphadnis/xta/internal/entity"
	"github.com/githubphadnis/xta/internal/normalize"
)

// ExpenseStore is the slice of the expense repository the committer needs.
type ExpenseStore interface {
	// ExistsByKey reports whether a committed expense already carries this
	// (date, amount, vendor) identity.
	ExistsByKey(ctx context.Context, dateKey, amountKey, vendor string) (bool, error)
	// InsertBatch persists all rows in one transaction.
	InsertBatch(ctx context.Context, expenses []entity.Expense) error
}

// Report counts the outcome of one commit.
type Report struct {
	Inserted          int
	DuplicatesSkipped int
}

// Committer deduplicates candidates against each other and against ledger
// history, then commits the survivors atomically.
type Committer struct {
	Store  ExpenseStore
	Logger *slog.Logger
}

func NewCommitter(store ExpenseStore, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{Store: store, Logger: logger}
}

// dedupKey is the transaction identity: calendar date, amount at two
// decimal places, exact vendor string. Currency is deliberately not part
// of the key.
func dedupKey(e *entity.Expense) (dateKey, amountKey, vendor string) {
	return e.DateIncurred.Format("2006-01-02"), normalize.AmountKey(e.Amount), e.Vendor
}

// Commit runs the two-level check in candidate order: the first occurrence
// of a key wins within the batch, and keys already in the ledger are
// skipped. Either every surviving row is committed or none is.
func (c *Committer) Commit(ctx context.Context, candidates []entity.Expense) (Report, error) {
	var rep Report
	if len(candidates) == 0 {
		return rep, nil
	}

	seen := make(map[string]struct{}, len(candidates))
	fresh := make([]entity.Expense, 0, len(candidates))
	for i := range candidates {
		e := &candidates[i]
		dateKey, amountKey, vendor := dedupKey(e)
		key := dateKey + "|" + amountKey + "|" + vendor
		if _, dup := seen[key]; dup {
			c.Logger.Debug("ingest.dedup.skipped", "key", key, "reason", "intra-batch")
			rep.DuplicatesSkipped++
			continue
		}
		seen[key] = struct{}{}

		exists, err := c.Store.ExistsByKey(ctx, dateKey, amountKey, vendor)
		if err != nil {
			return rep, fmt.Errorf("dedup lookup: %w", err)
		}
		if exists {
			c.Logger.Debug("ingest.dedup.skipped", "key", key, "reason", "history")
			rep.DuplicatesSkipped++
			continue
		}
		fresh = append(fresh, *e)
	}

	if len(fresh) > 0 {
		if err := c.Store.InsertBatch(ctx, fresh); err != nil {
			return Report{DuplicatesSkipped: rep.DuplicatesSkipped}, fmt.Errorf("commit batch: %w", err)
		}
	}
	rep.Inserted = len(fresh)

	c.Logger.Info("ingest.dedup.ok",
		"candidates", len(candidates),
		"inserted", rep.Inserted,
		"duplicates_skipped", rep.DuplicatesSkipped,
	)
	return rep, nil
}
