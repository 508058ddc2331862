package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/githubphadnis/xta/constants"
	"github.com/githubphadnis/xta/internal/entity"
	"github.com/githubphadnis/xta/internal/llm"
)

type fakeExtractor struct {
	receipt llm.ExtractResult
	mapping llm.ColumnMapping
	mapErr  error
	vendors llm.VendorMap
	calls   int
}

func (f *fakeExtractor) ExtractReceipt(ctx context.Context, imagePath string) llm.ExtractResult {
	f.calls++
	return f.receipt
}

func (f *fakeExtractor) MapColumns(ctx context.Context, sample string) (llm.ColumnMapping, error) {
	f.calls++
	return f.mapping, f.mapErr
}

func (f *fakeExtractor) MapVendors(ctx context.Context, rawVendors []string) llm.VendorMap {
	f.calls++
	return f.vendors
}

type memBatches struct {
	created  []*entity.ImportBatch
	finished []*entity.ImportBatch
}

func (m *memBatches) Create(ctx context.Context, b *entity.ImportBatch) error {
	m.created = append(m.created, b)
	return nil
}

func (m *memBatches) Finish(ctx context.Context, b *entity.ImportBatch) error {
	m.finished = append(m.finished, b)
	return nil
}

var serviceCSV = []byte(`Date,Vendor,Amount
2024-01-02,REWE,-23.50
2024-01-02,REWE,-23.50
2024-01-03,Kiosk,-3.10
`)

func newTestService(t *testing.T, fake *fakeExtractor, store *memStore, batches *memBatches) *Service {
	t.Helper()
	return NewService(fake, store, batches, t.TempDir(), nil)
}

func TestImportFileStatement(t *testing.T) {
	fake := &fakeExtractor{
		mapping: llm.ColumnMapping{DateColumn: "Date", VendorColumn: "Vendor", AmountColumn: "Amount"},
		vendors: llm.VendorMap{"REWE": {Vendor: "REWE", Category: "Groceries"}},
	}
	store := newMemStore()
	batches := &memBatches{}
	svc := newTestService(t, fake, store, batches)

	batch, err := svc.ImportFile(context.Background(), "statement.csv", serviceCSV)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}

	if batch.Status != constants.BatchStatusCommitted {
		t.Errorf("status = %s", batch.Status)
	}
	if batch.Format != constants.SPREADSHEET {
		t.Errorf("format = %s", batch.Format)
	}
	if batch.RowsSeen != 3 || batch.Inserted != 2 || batch.DuplicatesSkipped != 1 {
		t.Errorf("counts = seen %d / inserted %d / dups %d",
			batch.RowsSeen, batch.Inserted, batch.DuplicatesSkipped)
	}
	if batch.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
	if len(batches.created) != 1 || len(batches.finished) != 1 {
		t.Errorf("bookkeeping calls = %d/%d", len(batches.created), len(batches.finished))
	}
}

func TestImportFileUnsupportedExtension(t *testing.T) {
	fake := &fakeExtractor{}
	batches := &memBatches{}
	svc := newTestService(t, fake, newMemStore(), batches)

	batch, err := svc.ImportFile(context.Background(), "notes.pdf", []byte("%PDF"))
	if err == nil {
		t.Fatal("expected rejection")
	}
	if batch.Status != constants.BatchStatusRejected {
		t.Errorf("status = %s", batch.Status)
	}
	if batch.Format != constants.UNSUPPORTED {
		t.Errorf("format = %s", batch.Format)
	}
	// deterministic reject: no provider involvement at all
	if fake.calls != 0 {
		t.Errorf("provider called %d times for unsupported input", fake.calls)
	}
}

func TestImportFileReceipt(t *testing.T) {
	fake := &fakeExtractor{
		receipt: llm.ExtractResult{Fields: llm.ReceiptFields{
			Vendor: "REWE", Amount: "23.50", TxDate: "2024-01-02", Category: "Groceries",
		}},
	}
	store := newMemStore()
	svc := newTestService(t, fake, store, &memBatches{})

	batch, err := svc.ImportFile(context.Background(), "receipt.jpg", []byte("jpegbytes"))
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if batch.Format != constants.IMAGE || batch.Inserted != 1 {
		t.Errorf("format = %s, inserted = %d", batch.Format, batch.Inserted)
	}

	// the same receipt scanned twice dedups against history
	batch2, err := svc.ImportFile(context.Background(), "receipt.jpg", []byte("jpegbytes"))
	if err != nil {
		t.Fatalf("second ImportFile: %v", err)
	}
	if batch2.Inserted != 0 || batch2.DuplicatesSkipped != 1 {
		t.Errorf("second import = %+v", batch2)
	}
}

func TestImportFileMappingRejected(t *testing.T) {
	fake := &fakeExtractor{
		mapping: llm.ColumnMapping{DateColumn: "Date", VendorColumn: "Payee", AmountColumn: "Amount"},
	}
	store := newMemStore()
	svc := newTestService(t, fake, store, &memBatches{})

	batch, err := svc.ImportFile(context.Background(), "statement.csv", serviceCSV)
	if err == nil {
		t.Fatal("expected rejection for hallucinated header")
	}
	if batch.Status != constants.BatchStatusRejected {
		t.Errorf("status = %s", batch.Status)
	}
	if batch.Reason == "" {
		t.Error("rejection keeps its reason")
	}
	if len(store.inserted) != 0 {
		t.Errorf("rows committed under a rejected mapping")
	}
}

func TestImportFileStoreFailure(t *testing.T) {
	fake := &fakeExtractor{
		mapping: llm.ColumnMapping{DateColumn: "Date", VendorColumn: "Vendor", AmountColumn: "Amount"},
	}
	store := newMemStore()
	store.insertErr = errors.New("tx aborted")
	svc := newTestService(t, fake, store, &memBatches{})

	batch, err := svc.ImportFile(context.Background(), "statement.csv", serviceCSV)
	if err == nil {
		t.Fatal("expected error")
	}
	if batch.Status != constants.BatchStatusFailed {
		t.Errorf("status = %s, want FAILED for a storage error", batch.Status)
	}
}
