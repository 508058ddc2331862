package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExpenseSource identifies how an expense entered the ledger.
type ExpenseSource string

const (
	SourceManual          ExpenseSource = "manual"
	SourceReceiptScan     ExpenseSource = "receipt-scan"
	SourceStatementImport ExpenseSource = "statement-import"
)

// Expense is one canonical ledger record. Amounts are always stored positive
// in the original currency; direction is resolved during extraction.
// The pipeline never mutates a row after commit.
type Expense struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Vendor       string          `gorm:"not null;index" json:"vendor"`
	Amount       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	CurrencyCode string          `gorm:"type:char(3);not null" json:"currency_code"`
	DateIncurred time.Time       `gorm:"type:date;not null;index" json:"date_incurred"`
	Category     string          `gorm:"not null;index" json:"category"`
	Description  string          `json:"description,omitempty"`
	Source       ExpenseSource   `gorm:"not null" json:"source"`
	LineItems    []LineItem      `gorm:"foreignKey:ExpenseID;constraint:OnDelete:CASCADE" json:"line_items,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// LineItem is owned by exactly one Expense and goes away with it.
// Price is the total line price, not unit price.
type LineItem struct {
	ID        int64           `gorm:"primaryKey" json:"-"`
	ExpenseID uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	Position  int             `gorm:"not null" json:"-"`
	Name      string          `gorm:"not null" json:"name"`
	Quantity  float64         `gorm:"not null;default:1" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(14,2)" json:"price"`
}

func (Expense) TableName() string  { return "expenses" }
func (LineItem) TableName() string { return "line_items" }

// BeforeCreate assigns the surrogate id when the caller did not.
func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
