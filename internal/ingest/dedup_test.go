package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/githubphadnis/xta/internal/entity"
)

// memStore keeps committed keys in a map, standing in for the repository.
type memStore struct {
	keys      map[string]struct{}
	inserted  []entity.Expense
	existsErr error
	insertErr error
}

func newMemStore() *memStore {
	return &memStore{keys: map[string]struct{}{}}
}

func (m *memStore) ExistsByKey(ctx context.Context, dateKey, amountKey, vendor string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.keys[dateKey+"|"+amountKey+"|"+vendor]
	return ok, nil
}

func (m *memStore) InsertBatch(ctx context.Context, expenses []entity.Expense) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	for i := range expenses {
		d, a, v := dedupKey(&expenses[i])
		m.keys[d+"|"+a+"|"+v] = struct{}{}
	}
	m.inserted = append(m.inserted, expenses...)
	return nil
}

func expense(date string, amount string, vendor string) entity.Expense {
	d, _ := time.Parse("2006-01-02", date)
	return entity.Expense{
		Vendor:       vendor,
		Amount:       decimal.RequireFromString(amount),
		CurrencyCode: "EUR",
		DateIncurred: d,
		Source:       entity.SourceStatementImport,
	}
}

func TestCommitterIntraBatchFirstWins(t *testing.T) {
	store := newMemStore()
	c := NewCommitter(store, nil)

	rep, err := c.Commit(context.Background(), []entity.Expense{
		expense("2024-01-02", "23.50", "REWE"),
		expense("2024-01-02", "23.5", "REWE"), // same key after scaling
		expense("2024-01-03", "23.50", "REWE"),
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if rep.Inserted != 2 || rep.DuplicatesSkipped != 1 {
		t.Errorf("report = %+v, want 2 inserted / 1 skipped", rep)
	}
}

func TestCommitterHistorySkip(t *testing.T) {
	store := newMemStore()
	c := NewCommitter(store, nil)

	first := []entity.Expense{
		expense("2024-01-02", "23.50", "REWE"),
		expense("2024-01-03", "9.99", "Kiosk"),
	}
	if _, err := c.Commit(context.Background(), first); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	// re-importing the same statement is a no-op
	rep, err := c.Commit(context.Background(), first)
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if rep.Inserted != 0 || rep.DuplicatesSkipped != 2 {
		t.Errorf("report = %+v, want 0 inserted / 2 skipped", rep)
	}
	if len(store.inserted) != 2 {
		t.Errorf("store rows = %d, want 2", len(store.inserted))
	}
}

func TestCommitterKeyIgnoresCurrencyAndCategory(t *testing.T) {
	store := newMemStore()
	c := NewCommitter(store, nil)

	a := expense("2024-01-02", "23.50", "REWE")
	b := expense("2024-01-02", "23.50", "REWE")
	b.CurrencyCode = "USD"
	b.Category = "Groceries"

	rep, err := c.Commit(context.Background(), []entity.Expense{a, b})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if rep.Inserted != 1 || rep.DuplicatesSkipped != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func TestCommitterVendorIsCaseSensitive(t *testing.T) {
	store := newMemStore()
	c := NewCommitter(store, nil)

	rep, err := c.Commit(context.Background(), []entity.Expense{
		expense("2024-01-02", "23.50", "REWE"),
		expense("2024-01-02", "23.50", "Rewe"),
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if rep.Inserted != 2 {
		t.Errorf("inserted = %d, distinct vendor strings are distinct keys", rep.Inserted)
	}
}

func TestCommitterLookupFailureAborts(t *testing.T) {
	store := newMemStore()
	store.existsErr = errors.New("connection reset")
	c := NewCommitter(store, nil)

	_, err := c.Commit(context.Background(), []entity.Expense{
		expense("2024-01-02", "23.50", "REWE"),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(store.inserted) != 0 {
		t.Errorf("nothing may be committed after a lookup failure")
	}
}

func TestCommitterInsertFailurePropagates(t *testing.T) {
	store := newMemStore()
	store.insertErr = errors.New("tx aborted")
	c := NewCommitter(store, nil)

	_, err := c.Commit(context.Background(), []entity.Expense{
		expense("2024-01-02", "23.50", "REWE"),
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestCommitterEmptyBatch(t *testing.T) {
	store := newMemStore()
	c := NewCommitter(store, nil)
	rep, err := c.Commit(context.Background(), nil)
	if err != nil || rep.Inserted != 0 || rep.DuplicatesSkipped != 0 {
		t.Errorf("rep = %+v, err = %v", rep, err)
	}
}
