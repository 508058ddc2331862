package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/githubphadnis/xta/internal/common"
	"github.com/githubphadnis/xta/internal/entity"
)

// ExpenseRepository persists ledger rows and answers dedup lookups.
type ExpenseRepository struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewExpenseRepository(db *gorm.DB, logger *slog.Logger) *ExpenseRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpenseRepository{db: db, log: logger}
}

// ExistsByKey reports whether an expense with this (date, amount, vendor)
// identity is already committed. The keys arrive in their canonical string
// forms and are converted back to column types here.
func (r *ExpenseRepository) ExistsByKey(ctx context.Context, dateKey, amountKey, vendor string) (bool, error) {
	date, err := time.Parse("2006-01-02", dateKey)
	if err != nil {
		return false, fmt.Errorf("bad date key %q: %w", dateKey, err)
	}
	amount, err := decimal.NewFromString(amountKey)
	if err != nil {
		return false, fmt.Errorf("bad amount key %q: %w", amountKey, err)
	}

	var n int64
	err = r.db.WithContext(ctx).
		Model(&entity.Expense{}).
		Where("date_incurred = ? AND amount = ? AND vendor = ?", date, amount, vendor).
		Count(&n).Error
	if err != nil {
		return false, common.WrapError(err, "dedup lookup")
	}
	return n > 0, nil
}

// InsertBatch writes all expenses and their line items in one transaction.
func (r *ExpenseRepository) InsertBatch(ctx context.Context, expenses []entity.Expense) error {
	if len(expenses) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&expenses).Error
	})
	if err != nil {
		r.log.Error("repository.expense.insert_failed", "rows", len(expenses), "error", err)
		return common.WrapError(err, "insert batch")
	}
	r.log.Debug("repository.expense.inserted", "rows", len(expenses))
	return nil
}

// ListFilter narrows List; zero values mean unbounded.
type ListFilter struct {
	From     time.Time
	To       time.Time
	Category string
	Vendor   string
}

// List returns expenses newest first, line items attached.
func (r *ExpenseRepository) List(ctx context.Context, f ListFilter) ([]entity.Expense, error) {
	q := r.db.WithContext(ctx).Model(&entity.Expense{}).Preload("LineItems")
	if !f.From.IsZero() {
		q = q.Where("date_incurred >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("date_incurred <= ?", f.To)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Vendor != "" {
		q = q.Where("vendor = ?", f.Vendor)
	}

	var out []entity.Expense
	if err := q.Order("date_incurred DESC, created_at DESC").Find(&out).Error; err != nil {
		return nil, common.WrapError(err, "list expenses")
	}
	return out, nil
}
