package llm

// BuildReceiptJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. It is sent to the provider as the output contract and used
// locally to validate what actually came back.
//
// 'date' stays a plain string on purpose: a wrong-but-present date is a
// per-record fallback (normalizer defaults it), not an extraction failure.
// 'category' likewise stays unconstrained here; out-of-enum labels are
// coerced to Other downstream rather than failing the whole extraction.
func BuildReceiptJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"vendor": map[string]any{"type": "string", "minLength": 1},
			// amounts stay loosely-typed strings here: value-level checks
			// (locale inference, sign) belong to the normalizer
			"amount":      map[string]any{"type": "string", "minLength": 1},
			"currency":    map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
			"date":        map[string]any{"type": "string"},
			"category":    map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"receipt_details": map[string]any{
				"type":  "array",
				"items": lineItemSchema(),
			},
		},
		"required": []string{"vendor", "amount", "date"},
	}
}

func lineItemSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":     map[string]any{"type": "string", "minLength": 1},
			"quantity": map[string]any{"type": "number", "minimum": 0.0},
			"price":    map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"name"},
	}
}

// BuildColumnMappingSchema is the contract for the header-mapping call.
func BuildColumnMappingSchema() map[string]any {
	header := map[string]any{"type": "string", "minLength": 1}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"date_column":   header,
			"vendor_column": header,
			"amount_column": header,
		},
		"required": []string{"date_column", "vendor_column", "amount_column"},
	}
}

// BuildVendorMappingSchema is the contract for the batched vendor call:
// an object keyed by the raw vendor strings.
func BuildVendorMappingSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"additionalProperties": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"vendor":   map[string]any{"type": "string", "minLength": 1},
				"category": map[string]any{"type": "string"},
			},
			"required": []string{"vendor", "category"},
		},
	}
}
