package llm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// BuildReceiptSystemPrompt composes the receipt-extraction instructions:
// brand normalization, strict date format with current-year injection,
// the closed category enum, and the line-item contract.
func BuildReceiptSystemPrompt(allowedCategories []string, defaultCurrency string, currentYear int) string {
	if defaultCurrency == "" {
		defaultCurrency = "EUR"
	}

	parts := []string{
		"You are a highly precise expense tracking data extraction assistant. Analyze the receipt image and return ONLY JSON that matches the provided JSON Schema.",
		"vendor: normalize the merchant name to its core brand. Remove all legal suffixes (e.g., GmbH, KG, AG, e.K., OHG, mbH, Inc., LLC, Ltd.) and store-number tags; fix casing to the standard brand representation. Examples: \"REWE Markt GmbH\" -> \"REWE\", \"ALDI SUED FIL.77\" -> \"Aldi\".",
		"date: exact date in YYYY-MM-DD format. If the year is missing, assume " + strconv.Itoa(currentYear) + ".",
		"amount: the total final amount charged, as a decimal string.",
		"currency: 3-letter ISO 4217 code; default to " + defaultCurrency + " if uncertain.",
		"category: choose exactly one from this list: [" + strings.Join(allowedCategories, ", ") + "]. If uncertain, choose 'Other'.",
		"description: a short 3-5 word summary of the main items purchased.",
		"receipt_details: every visible line item as {name, quantity, price} where price is the total line price, not the unit price.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildColumnMappingPrompt asks for the header mapping of a statement table.
// The sample need not be representative, only structurally indicative.
func BuildColumnMappingPrompt(sample string) string {
	var b strings.Builder
	b.WriteString("You are a financial data mapper. Analyze this bank statement sample and identify the exact column headers that correspond to the transaction date, the merchant/payee, and the transaction amount.\n")
	b.WriteString("Return ONLY a JSON object with keys date_column, vendor_column and amount_column. Do not wrap it in markdown. Every value must be copied verbatim from the sample's header row.\n\n")
	b.WriteString("Sample data:\n")
	b.WriteString(sample)
	return b.String()
}

// BuildVendorMappingPrompt asks for one batched normalization of raw vendor
// strings into canonical brands and categories.
func BuildVendorMappingPrompt(rawVendors []string, allowedCategories []string) string {
	raws, _ := json.Marshal(rawVendors)
	var b strings.Builder
	b.WriteString("You are a merchant normalizer. For every raw vendor string below, produce the canonical brand name (legal suffixes and store-number tags removed, standard casing) and exactly one expense category from this list: [")
	b.WriteString(strings.Join(allowedCategories, ", "))
	b.WriteString("]. If uncertain, use 'Other'.\n")
	b.WriteString("Return ONLY a JSON object keyed by the raw strings, each value an object {vendor, category}. Do not wrap it in markdown.\n\n")
	b.WriteString("Raw vendors:\n")
	b.Write(raws)
	return b.String()
}
