package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/githubphadnis/xta/constants"
	"github.com/githubphadnis/xta/internal/common"
	"github.com/githubphadnis/xta/internal/entity"
	"github.com/githubphadnis/xta/internal/llm"
	"github.com/githubphadnis/xta/internal/normalize"
)

// statements carry no currency column; the original system tracked EUR banks
const statementCurrency = "EUR"

const defaultSampleRows = 5

// StatementPipeline turns a bank-statement spreadsheet into candidate
// expense records. Per batch it issues exactly two gateway calls: one
// column mapping, one vendor mapping, regardless of row count.
type StatementPipeline struct {
	Extractor  llm.Extractor
	Logger     *slog.Logger
	SampleRows int
	Now        func() time.Time
}

func NewStatementPipeline(extractor llm.Extractor, logger *slog.Logger) *StatementPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatementPipeline{
		Extractor:  extractor,
		Logger:     logger,
		SampleRows: defaultSampleRows,
		Now:        time.Now,
	}
}

// StatementResult is the pipeline outcome before deduplication.
type StatementResult struct {
	Candidates  []entity.Expense
	RowsSeen    int
	RowsSkipped int
}

// Run executes Load -> Clean -> MapColumns -> MapVendors -> RowWalk.
// Load and column-mapping failures abort the whole batch (fail-closed); a
// row whose amount cannot be parsed, or that represents an inflow, is
// silently skipped (fail-open).
func (p *StatementPipeline) Run(ctx context.Context, filename string, contents []byte) (StatementResult, error) {
	start := time.Now()
	var res StatementResult

	table, err := LoadTable(filename, contents)
	if err != nil {
		return res, common.WrapError(fmt.Errorf("%w: %v", common.ErrUnreadableInput, err), "load statement")
	}
	res.RowsSeen = len(table.Rows)

	sample := p.SampleRows
	if sample <= 0 {
		sample = defaultSampleRows
	}
	mapping, err := p.Extractor.MapColumns(ctx, table.SampleCSV(sample))
	if err != nil {
		return res, fmt.Errorf("map columns: %w", err)
	}

	// The provider may hallucinate a header; never guess a column.
	for _, h := range []string{mapping.DateColumn, mapping.VendorColumn, mapping.AmountColumn} {
		if !table.HasHeader(h) {
			p.Logger.Error("pipeline.statement.mapping_rejected",
				"filename", filename, "header", h, "table_headers", table.Headers)
			return res, fmt.Errorf("column mapping names header %q which is not in the table", h)
		}
	}

	vendorMap := p.Extractor.MapVendors(ctx, uniqueVendors(table, mapping.VendorColumn))

	now := p.Now()
	for i, row := range table.Rows {
		amount, err := normalize.ParseAmount(table.Column(row, mapping.AmountColumn))
		if err != nil {
			p.Logger.Debug("pipeline.statement.row_skipped",
				"row", i, "reason", "amount", "error", err)
			res.RowsSkipped++
			continue
		}
		if amount.Sign() >= 0 {
			// incoming funds are not tracked
			p.Logger.Debug("pipeline.statement.row_skipped", "row", i, "reason", "inflow")
			res.RowsSkipped++
			continue
		}

		rawVendor := strings.TrimSpace(table.Column(row, mapping.VendorColumn))
		vendor, category := resolveVendor(rawVendor, vendorMap)

		res.Candidates = append(res.Candidates, entity.Expense{
			Vendor:       vendor,
			Amount:       amount.Abs(),
			CurrencyCode: statementCurrency,
			DateIncurred: normalize.ParseDateLenient(table.Column(row, mapping.DateColumn), now),
			Category:     category,
			Source:       entity.SourceStatementImport,
		})
	}

	p.Logger.Info("pipeline.statement.ok",
		"filename", filename,
		"rows_seen", res.RowsSeen,
		"rows_skipped", res.RowsSkipped,
		"candidates", len(res.Candidates),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// resolveVendor applies the batch vendor map. Raw vendors the provider
// omitted keep their raw string and stay Uncategorized; provider categories
// outside the closed set are coerced to Other.
func resolveVendor(raw string, vm llm.VendorMap) (string, string) {
	if id, ok := vm[raw]; ok && strings.TrimSpace(id.Vendor) != "" {
		canon, _ := constants.Canonicalize(id.Category)
		return strings.TrimSpace(id.Vendor), string(canon)
	}
	return raw, string(constants.Uncategorized)
}

// uniqueVendors collects the distinct non-empty raw vendor strings in row
// order, so one batched call covers every row.
func uniqueVendors(t *Table, vendorColumn string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, row := range t.Rows {
		v := strings.TrimSpace(t.Column(row, vendorColumn))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
