package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/githubphadnis/xta/internal/llm"
)

// fakeExtractor satisfies llm.Extractor without any network.
type fakeExtractor struct {
	receipt llm.ExtractResult
	mapping llm.ColumnMapping
	mapErr  error
	vendors llm.VendorMap

	columnCalls int
	vendorCalls int
	vendorsSeen []string
}

func (f *fakeExtractor) ExtractReceipt(ctx context.Context, imagePath string) llm.ExtractResult {
	return f.receipt
}

func (f *fakeExtractor) MapColumns(ctx context.Context, sample string) (llm.ColumnMapping, error) {
	f.columnCalls++
	return f.mapping, f.mapErr
}

func (f *fakeExtractor) MapVendors(ctx context.Context, rawVendors []string) llm.VendorMap {
	f.vendorCalls++
	f.vendorsSeen = rawVendors
	return f.vendors
}

var statementCSV = []byte(`Buchungstag;Auftraggeber;Betrag;Notiz
02.01.2024;REWE Markt GmbH;-23,50;
03.01.2024;Gehalt Januar;2.500,00;
04.01.2024;REWE Markt GmbH;-12,00;
05.01.2024;Stadtwerke;abc;
06.01.2024;Kiosk;-3,10;
`)

func testPipeline(f *fakeExtractor) *StatementPipeline {
	p := NewStatementPipeline(f, nil)
	p.Now = func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC) }
	return p
}

func TestStatementPipelineRun(t *testing.T) {
	fake := &fakeExtractor{
		mapping: llm.ColumnMapping{
			DateColumn:   "Buchungstag",
			VendorColumn: "Auftraggeber",
			AmountColumn: "Betrag",
		},
		vendors: llm.VendorMap{
			"REWE Markt GmbH": {Vendor: "REWE", Category: "Groceries"},
		},
	}

	res, err := testPipeline(fake).Run(context.Background(), "statement.csv", statementCSV)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.RowsSeen != 5 {
		t.Errorf("RowsSeen = %d, want 5", res.RowsSeen)
	}
	// inflow row and unparseable row skipped, batch not aborted
	if res.RowsSkipped != 2 {
		t.Errorf("RowsSkipped = %d, want 2", res.RowsSkipped)
	}
	if len(res.Candidates) != 3 {
		t.Fatalf("candidates = %d, want 3", len(res.Candidates))
	}

	first := res.Candidates[0]
	if first.Vendor != "REWE" || first.Category != "Groceries" {
		t.Errorf("mapped vendor = %q/%q", first.Vendor, first.Category)
	}
	if first.Amount.StringFixed(2) != "23.50" {
		t.Errorf("amount = %s, want 23.50 (stored positive)", first.Amount)
	}
	if got := first.DateIncurred.Format("2006-01-02"); got != "2024-01-02" {
		t.Errorf("date = %s", got)
	}
	if first.Source != "statement-import" {
		t.Errorf("source = %q", first.Source)
	}

	// vendor absent from the map keeps its raw string, Uncategorized
	last := res.Candidates[2]
	if last.Vendor != "Kiosk" || last.Category != "Uncategorized" {
		t.Errorf("fallback vendor = %q/%q", last.Vendor, last.Category)
	}

	// cost bound: one mapping call and one vendor call per batch
	if fake.columnCalls != 1 || fake.vendorCalls != 1 {
		t.Errorf("gateway calls = %d/%d, want 1/1", fake.columnCalls, fake.vendorCalls)
	}
	// vendor batch covers unique outflow-and-inflow vendors alike, deduped
	for i, v := range fake.vendorsSeen {
		for _, w := range fake.vendorsSeen[i+1:] {
			if v == w {
				t.Errorf("duplicate raw vendor sent: %q", v)
			}
		}
	}
}

func TestStatementPipelineHallucinatedHeader(t *testing.T) {
	fake := &fakeExtractor{
		mapping: llm.ColumnMapping{
			DateColumn:   "Buchungstag",
			VendorColumn: "Payee", // not in the table
			AmountColumn: "Betrag",
		},
	}

	res, err := testPipeline(fake).Run(context.Background(), "statement.csv", statementCSV)
	if err == nil {
		t.Fatal("expected hard reject for hallucinated header")
	}
	if len(res.Candidates) != 0 {
		t.Errorf("candidates = %d, want 0", len(res.Candidates))
	}
}

func TestStatementPipelineMappingFailure(t *testing.T) {
	fake := &fakeExtractor{mapErr: errors.New("provider down")}

	_, err := testPipeline(fake).Run(context.Background(), "statement.csv", statementCSV)
	if err == nil {
		t.Fatal("expected fail-closed on mapping failure")
	}
	if fake.vendorCalls != 0 {
		t.Errorf("vendor mapping should not run after a rejected column mapping")
	}
}

func TestStatementPipelineVendorMapFailureDegrades(t *testing.T) {
	fake := &fakeExtractor{
		mapping: llm.ColumnMapping{
			DateColumn:   "Buchungstag",
			VendorColumn: "Auftraggeber",
			AmountColumn: "Betrag",
		},
		vendors: llm.VendorMap{}, // gateway fell back to empty
	}

	res, err := testPipeline(fake).Run(context.Background(), "statement.csv", statementCSV)
	if err != nil {
		t.Fatalf("vendor-map failure must not block the import: %v", err)
	}
	for _, c := range res.Candidates {
		if c.Category != "Uncategorized" {
			t.Errorf("candidate %q category = %q, want Uncategorized", c.Vendor, c.Category)
		}
	}
}

func TestStatementPipelineUnreadableBytes(t *testing.T) {
	fake := &fakeExtractor{}
	_, err := testPipeline(fake).Run(context.Background(), "statement.xlsx", []byte("not a workbook"))
	if err == nil {
		t.Fatal("expected error for unreadable bytes")
	}
	if fake.columnCalls != 0 {
		t.Errorf("no gateway calls expected for unreadable input")
	}
}

func TestLoadTableDropsEmptyRowsAndColumns(t *testing.T) {
	csvData := []byte("Date,Vendor,,Amount\n,,,\n2024-01-02,REWE,,-5.00\n")
	table, err := LoadTable("x.csv", csvData)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if len(table.Headers) != 3 {
		t.Errorf("headers = %v, want empty column dropped", table.Headers)
	}
	if len(table.Rows) != 1 {
		t.Errorf("rows = %d, want all-empty row dropped", len(table.Rows))
	}
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		line string
		want rune
	}{
		{"a;b;c\n1;2;3", ';'},
		{"a,b,c", ','},
		{"a\tb\tc", '\t'},
		{"a|b|c", '|'},
	}
	for _, tt := range tests {
		if got := sniffDelimiter([]byte(tt.line)); got != tt.want {
			t.Errorf("sniffDelimiter(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}
