package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// StripCodeFences removes a surrounding markdown fence (``` or ```json) if
// the provider wrapped its JSON in one.
func StripCodeFences(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return []byte(s)
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		// drop the language tag line ("json", "JSON", or empty)
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(strings.TrimSpace(s))
}

// NormalizeReceiptJSON rewrites a decoded receipt payload into the strict
// shape the schema expects:
//   - money-ish fields coerced from numbers to decimal strings
//   - null / empty optionals dropped
//   - receipt_details elements coerced into the RawLineItem shape, whether
//     they arrived as objects or bare strings
//   - unknown keys removed
//
// Returns the rewritten document plus the list of adjustments made.
func NormalizeReceiptJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)

	// amount: number -> 2dp string
	if v, ok := m["amount"]; ok {
		if s, changed := coerceDecimal(v); s != "" {
			m["amount"] = s
			if changed {
				dropped = append(dropped, "amount(coerced)")
			}
		} else {
			delete(m, "amount")
			dropped = append(dropped, "amount(invalid)")
		}
	}

	// line items: accept "items"/"line_items" synonyms
	for _, syn := range []string{"items", "line_items"} {
		if v, ok := m[syn]; ok {
			if _, exists := m["receipt_details"]; !exists {
				m["receipt_details"] = v
			}
			delete(m, syn)
			dropped = append(dropped, syn+"->receipt_details")
		}
	}

	if v, ok := m["receipt_details"]; ok {
		items, adjustments := normalizeLineItems(v)
		dropped = append(dropped, adjustments...)
		if len(items) == 0 {
			delete(m, "receipt_details")
		} else {
			m["receipt_details"] = items
		}
	}

	// trim strings, drop empties
	for _, k := range []string{"vendor", "date", "currency", "category", "description"} {
		if v, ok := m[k]; ok {
			s, isStr := v.(string)
			if !isStr || strings.TrimSpace(s) == "" {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
				continue
			}
			m[k] = strings.TrimSpace(s)
		}
	}
	if v, ok := m["currency"].(string); ok {
		m["currency"] = strings.ToUpper(v)
	}

	// remove unknown keys (strict additionalProperties friendliness)
	allowed := map[string]struct{}{
		"vendor": {}, "amount": {}, "currency": {}, "date": {},
		"category": {}, "description": {}, "receipt_details": {},
	}
	for k := range m {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.sanitize", "adjustments", dropped)
	}
	return out, dropped, nil
}

// normalizeLineItems coerces whatever the provider emitted for
// receipt_details into []map matching the RawLineItem schema. Unusable
// elements are dropped, never fatal.
func normalizeLineItems(v any) ([]map[string]any, []string) {
	arr, ok := v.([]any)
	if !ok {
		return nil, []string{"receipt_details(not-array)"}
	}

	var adjustments []string
	items := make([]map[string]any, 0, len(arr))
	for i, el := range arr {
		switch t := el.(type) {
		case string:
			name := strings.TrimSpace(t)
			if name == "" {
				adjustments = append(adjustments, lineTag(i, "empty"))
				continue
			}
			items = append(items, map[string]any{"name": name, "quantity": 1.0})
			adjustments = append(adjustments, lineTag(i, "bare-string"))
		case map[string]any:
			item := map[string]any{}
			name, _ := firstString(t, "name", "item", "description")
			name = strings.TrimSpace(name)
			if name == "" {
				adjustments = append(adjustments, lineTag(i, "no-name"))
				continue
			}
			item["name"] = name

			qty := 1.0
			if q, ok := coerceNumber(t["quantity"]); ok && q >= 0 {
				qty = q
			} else if ok {
				adjustments = append(adjustments, lineTag(i, "negative-quantity"))
			}
			item["quantity"] = qty

			if p, changed := coerceDecimal(t["price"]); p != "" {
				item["price"] = p
				if changed {
					adjustments = append(adjustments, lineTag(i, "price-coerced"))
				}
			}
			items = append(items, item)
		default:
			adjustments = append(adjustments, lineTag(i, "type"))
		}
	}
	return items, adjustments
}

// coerceDecimal turns a JSON value into a decimal string with at most two
// fraction digits. Empty result means unusable. The bool reports whether a
// rewrite happened.
func coerceDecimal(v any) (string, bool) {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', 2, 64), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") {
			return "", false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			formatted := strconv.FormatFloat(f, 'f', 2, 64)
			return formatted, formatted != s
		}
		// locale-ambiguous strings ("12,34") pass through untouched;
		// the normalizer owns value-level interpretation
		return s, false
	default:
		return "", false
	}
}

func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func firstString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func lineTag(i int, what string) string {
	return "receipt_details[" + strconv.Itoa(i) + "](" + what + ")"
}
