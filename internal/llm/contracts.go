package llm

import "context"

// RawLineItem is the single tagged shape every line item is normalized into
// at the gateway boundary. The provider sometimes emits objects, sometimes
// bare strings; pipeline code never branches on representation.
type RawLineItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"` // non-negative, defaults to 1
	Price    string  `json:"price"`    // decimal string, total line price
}

// ReceiptFields is the normalized shape we want from the provider for a
// single receipt image. All fields are still raw strings; nothing here is
// trustworthy until it passes the normalizer.
type ReceiptFields struct {
	Vendor       string        `json:"vendor"`
	Amount       string        `json:"amount"`             // decimal string
	CurrencyCode string        `json:"currency,omitempty"` // ISO 4217
	TxDate       string        `json:"date"`               // raw, not yet a calendar date
	Category     string        `json:"category,omitempty"`
	Description  string        `json:"description,omitempty"`
	LineItems    []RawLineItem `json:"receipt_details,omitempty"`
}

// ExtractResult is the gateway's degraded-capable receipt result: either
// Fields carries a best-effort guess or Err carries the failure reason.
// Absence of Err does not guarantee validity.
type ExtractResult struct {
	Fields ReceiptFields
	Err    string
}

// Failed reports whether extraction degraded to a failure result.
func (r ExtractResult) Failed() bool { return r.Err != "" }

// ColumnMapping is the provider's best guess at which table headers hold
// the date, vendor and amount. Valid only for the table it was computed
// from; callers must verify every header actually exists.
type ColumnMapping struct {
	DateColumn   string `json:"date_column"`
	VendorColumn string `json:"vendor_column"`
	AmountColumn string `json:"amount_column"`
}

// VendorIdentity is one normalized merchant: canonical brand plus category.
type VendorIdentity struct {
	Vendor   string `json:"vendor"`
	Category string `json:"category"`
}

// VendorMap maps raw vendor strings to their normalized identities.
// Raw vendors absent from the map keep their raw string downstream.
type VendorMap map[string]VendorIdentity

// Extractor is the interface the pipelines depend on. Implementations catch
// every transport or parsing failure at the call boundary: ExtractReceipt
// degrades into ExtractResult.Err, MapColumns returns an error the caller
// treats as a hard reject, and MapVendors falls back to an empty map.
type Extractor interface {
	ExtractReceipt(ctx context.Context, imagePath string) ExtractResult
	MapColumns(ctx context.Context, sample string) (ColumnMapping, error)
	MapVendors(ctx context.Context, rawVendors []string) VendorMap
}
