package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/githubphadnis/xta/internal/llm"
)

func testReceiptPipeline(t *testing.T, fake *fakeExtractor) *ReceiptPipeline {
	t.Helper()
	p := NewReceiptPipeline(fake, t.TempDir(), nil)
	p.Now = func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC) }
	return p
}

func TestReceiptPipelineRun(t *testing.T) {
	fake := &fakeExtractor{
		receipt: llm.ExtractResult{Fields: llm.ReceiptFields{
			Vendor:       "REWE",
			Amount:       "23.50",
			CurrencyCode: "eur",
			TxDate:       "2024-01-02",
			Category:     "Groceries",
			Description:  "Weekly groceries",
			LineItems: []llm.RawLineItem{
				{Name: "Milch", Quantity: 2, Price: "1.19"},
				{Name: "  ", Quantity: 1, Price: "0.99"},
				{Name: "Brot", Quantity: -3, Price: "2.49"},
			},
		}},
	}
	p := testReceiptPipeline(t, fake)

	got, err := p.Run(context.Background(), "rewe receipt.jpg", []byte("jpegbytes"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got.Vendor != "REWE" || got.Category != "Groceries" {
		t.Errorf("vendor/category = %q/%q", got.Vendor, got.Category)
	}
	if got.Amount.StringFixed(2) != "23.50" {
		t.Errorf("amount = %s", got.Amount)
	}
	if got.CurrencyCode != "EUR" {
		t.Errorf("currency = %q", got.CurrencyCode)
	}
	if d := got.DateIncurred.Format("2006-01-02"); d != "2024-01-02" {
		t.Errorf("date = %s", d)
	}
	if got.Source != "receipt-scan" {
		t.Errorf("source = %q", got.Source)
	}

	if len(got.LineItems) != 2 {
		t.Fatalf("line items = %d, want nameless item dropped", len(got.LineItems))
	}
	if got.LineItems[1].Quantity != 1 {
		t.Errorf("negative quantity not defaulted: %v", got.LineItems[1].Quantity)
	}

	// the transient upload must be gone after the run
	entries, err := os.ReadDir(p.UploadDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("upload dir not cleaned: %v", entries)
	}
}

func TestReceiptPipelineExtractionFailure(t *testing.T) {
	fake := &fakeExtractor{receipt: llm.ExtractResult{Err: "model output truncated or invalid"}}
	p := testReceiptPipeline(t, fake)

	_, err := p.Run(context.Background(), "receipt.jpg", []byte("jpegbytes"))
	if err == nil {
		t.Fatal("expected error for failed extraction")
	}

	// cleanup happens on the failure path too
	entries, _ := os.ReadDir(p.UploadDir)
	if len(entries) != 0 {
		t.Errorf("upload dir not cleaned after failure: %v", entries)
	}
}

func TestReceiptPipelineRejectsUnusableFields(t *testing.T) {
	tests := []struct {
		name   string
		fields llm.ReceiptFields
	}{
		{"no vendor", llm.ReceiptFields{Amount: "5.00", TxDate: "2024-01-02"}},
		{"no amount", llm.ReceiptFields{Vendor: "REWE", Amount: "", TxDate: "2024-01-02"}},
		{"zero total", llm.ReceiptFields{Vendor: "REWE", Amount: "0.00", TxDate: "2024-01-02"}},
		{"garbage amount", llm.ReceiptFields{Vendor: "REWE", Amount: "forty two", TxDate: "2024-01-02"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeExtractor{receipt: llm.ExtractResult{Fields: tt.fields}}
			if _, err := testReceiptPipeline(t, fake).Run(context.Background(), "r.png", []byte("x")); err == nil {
				t.Error("expected rejection")
			}
		})
	}
}

func TestReceiptPipelineFallbacks(t *testing.T) {
	fake := &fakeExtractor{
		receipt: llm.ExtractResult{Fields: llm.ReceiptFields{
			Vendor:   "Kiosk",
			Amount:   "12,34",   // comma decimal from a German receipt
			TxDate:   "gestern", // unparseable
			Category: "snacks",  // outside the closed set
		}},
	}
	p := testReceiptPipeline(t, fake)

	got, err := p.Run(context.Background(), "r.png", []byte("x"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.Amount.StringFixed(2) != "12.34" {
		t.Errorf("amount = %s", got.Amount)
	}
	if d := got.DateIncurred.Format("2006-01-02"); d != "2024-06-15" {
		t.Errorf("unparseable date should fall back to today, got %s", d)
	}
	if got.Category != "Other" {
		t.Errorf("category = %q, want coerced Other", got.Category)
	}
	if got.CurrencyCode != "EUR" {
		t.Errorf("currency = %q, want EUR default", got.CurrencyCode)
	}
}

func TestSaveTransientSanitizesName(t *testing.T) {
	p := testReceiptPipeline(t, &fakeExtractor{})
	path, err := p.saveTransient("../weird name.png", []byte("x"))
	if err != nil {
		t.Fatalf("saveTransient: %v", err)
	}
	defer os.Remove(path)

	base := filepath.Base(path)
	if filepath.Dir(path) != filepath.Clean(p.UploadDir) {
		t.Errorf("escaped upload dir: %s", path)
	}
	if base != "20240615_100000_weird_name.png" {
		t.Errorf("name = %q", base)
	}
}

func TestReceiptPipelineTimeoutSurfaces(t *testing.T) {
	// the extractor owns timeouts; its message must reach the caller
	fake := &fakeExtractor{receipt: llm.ExtractResult{Err: "context deadline exceeded"}}
	p := testReceiptPipeline(t, fake)
	_, err := p.Run(context.Background(), "r.png", []byte("x"))
	if err == nil || !strings.Contains(err.Error(), "deadline") {
		t.Errorf("err = %v", err)
	}
}
