package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/githubphadnis/xta/constants"
	"github.com/githubphadnis/xta/internal/entity"
	"github.com/githubphadnis/xta/internal/llm"
	"github.com/githubphadnis/xta/internal/normalize"
	"github.com/shopspring/decimal"
)

// ReceiptPipeline turns one receipt image into one candidate expense.
type ReceiptPipeline struct {
	Extractor llm.Extractor
	Logger    *slog.Logger
	UploadDir string
	Now       func() time.Time
}

func NewReceiptPipeline(extractor llm.Extractor, uploadDir string, logger *slog.Logger) *ReceiptPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if uploadDir == "" {
		uploadDir = "./uploads"
	}
	return &ReceiptPipeline{
		Extractor: extractor,
		Logger:    logger,
		UploadDir: uploadDir,
		Now:       time.Now,
	}
}

// Run persists the upload transiently, extracts, removes the transient file
// unconditionally, and normalizes the result into a candidate. An
// error-bearing extraction aborts the import with zero rows.
func (p *ReceiptPipeline) Run(ctx context.Context, filename string, contents []byte) (entity.Expense, error) {
	start := time.Now()
	var out entity.Expense

	path, err := p.saveTransient(filename, contents)
	if err != nil {
		return out, fmt.Errorf("persist upload: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			p.Logger.Warn("pipeline.receipt.cleanup_failed", "path", path, "error", err)
		}
	}()

	res := p.Extractor.ExtractReceipt(ctx, path)
	if res.Failed() {
		p.Logger.Error("pipeline.receipt.extraction_failed", "filename", filename, "reason", res.Err)
		return out, fmt.Errorf("extraction failed: %s", res.Err)
	}

	candidate, err := p.normalizeFields(res.Fields)
	if err != nil {
		p.Logger.Error("pipeline.receipt.rejected", "filename", filename, "error", err)
		return out, err
	}

	p.Logger.Info("pipeline.receipt.ok",
		"filename", filename,
		"vendor", candidate.Vendor,
		"amount", candidate.Amount,
		"category", candidate.Category,
		"line_items", len(candidate.LineItems),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return candidate, nil
}

// saveTransient writes the upload under a timestamped sanitized name so the
// vision call can read it from disk.
func (p *ReceiptPipeline) saveTransient(filename string, contents []byte) (string, error) {
	if err := os.MkdirAll(p.UploadDir, 0o755); err != nil {
		return "", err
	}
	safe := strings.ReplaceAll(filepath.Base(filename), " ", "_")
	name := p.Now().UTC().Format("20060102_150405") + "_" + safe
	path := filepath.Join(p.UploadDir, name)
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// normalizeFields applies the normalizer to raw extraction output. Absence
// of ExtractResult.Err does not guarantee validity; everything is checked
// here before it can become a ledger record.
func (p *ReceiptPipeline) normalizeFields(f llm.ReceiptFields) (entity.Expense, error) {
	var out entity.Expense

	vendor := strings.TrimSpace(f.Vendor)
	if vendor == "" {
		return out, fmt.Errorf("extraction carried no vendor")
	}

	amount, err := normalize.ParseAmount(f.Amount)
	if err != nil {
		return out, fmt.Errorf("extraction carried no usable amount: %w", err)
	}
	amount = amount.Abs()
	if amount.IsZero() {
		return out, fmt.Errorf("extraction carried a zero total")
	}

	currency := strings.ToUpper(strings.TrimSpace(f.CurrencyCode))
	if len(currency) != 3 {
		currency = statementCurrency
	}

	category, _ := constants.Canonicalize(f.Category)

	out = entity.Expense{
		Vendor:       vendor,
		Amount:       amount,
		CurrencyCode: currency,
		DateIncurred: normalize.ParseDate(f.TxDate, p.Now()),
		Category:     string(category),
		Description:  strings.TrimSpace(f.Description),
		Source:       entity.SourceReceiptScan,
		LineItems:    coerceLineItems(f.LineItems),
	}
	return out, nil
}

// coerceLineItems maps RawLineItems onto owned rows: quantity non-negative
// defaulting to 1, price a non-negative total line price.
func coerceLineItems(raw []llm.RawLineItem) []entity.LineItem {
	if len(raw) == 0 {
		return nil
	}
	items := make([]entity.LineItem, 0, len(raw))
	for i, li := range raw {
		name := strings.TrimSpace(li.Name)
		if name == "" {
			continue
		}
		qty := li.Quantity
		if qty < 0 {
			qty = 1
		}
		price := decimal.Zero
		if d, err := normalize.ParseAmount(li.Price); err == nil {
			price = d.Abs()
		}
		items = append(items, entity.LineItem{
			Position: i,
			Name:     name,
			Quantity: qty,
			Price:    price,
		})
	}
	return items
}
