package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/githubphadnis/xta/constants"
	"github.com/githubphadnis/xta/internal/llm"
)

// Client implements llm.Extractor against the chat/completions API. Every
// transport or decoding failure is converted to the degraded result the
// contract promises; nothing escapes as an unhandled fault.
var _ llm.Extractor = (*Client)(nil)

// ExtractReceipt sends one vision call for a receipt image. The image is
// attached as a base64 data URL; the response is fence-stripped, sanitized
// and schema-validated before it is trusted as ReceiptFields.
func (c *Client) ExtractReceipt(ctx context.Context, imagePath string) llm.ExtractResult {
	rid := uuid.New().String()
	start := time.Now()

	dataURL, mimeType, err := llm.ReadAsDataURL(imagePath)
	if err != nil {
		c.log.Error("llm.extract.read_error", "req_id", rid, "path", imagePath, "error", err)
		return llm.ExtractResult{Err: fmt.Sprintf("could not read file: %v", err)}
	}

	schema := llm.BuildReceiptJSONSchema()
	sys := llm.BuildReceiptSystemPrompt(constants.AsStringSlice(), "EUR", time.Now().UTC().Year())

	body := map[string]any{
		"model":           c.cfg.VisionModel,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"max_tokens":      600,
		"messages": []map[string]any{
			{"role": "system", "content": sys + "\n\nJSON Schema:\n" + mustJSON(schema)},
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": "Extract this receipt."},
					{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
				},
			},
		},
	}

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.VisionModel,
		"temp", c.cfg.Temperature,
		"mime", mimeType,
	)

	content, err := c.completion(ctx, rid, body)
	if err != nil {
		c.log.Error("llm.extract.call_failed", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.ExtractResult{Err: err.Error()}
	}

	cleaned := llm.StripCodeFences(content)
	if !json.Valid(cleaned) {
		c.log.Error("llm.extract.invalid_json", "req_id", rid, "bytes", len(cleaned),
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.ExtractResult{Err: "model output truncated or invalid"}
	}

	sanitized, _, err := llm.NormalizeReceiptJSON(cleaned, c.log)
	if err != nil {
		c.log.Error("llm.extract.sanitize_failed", "req_id", rid, "error", err)
		return llm.ExtractResult{Err: fmt.Sprintf("sanitize: %v", err)}
	}
	if err := llm.ValidateJSONAgainstSchema(schema, sanitized); err != nil {
		c.log.Error("llm.extract.schema_validation_failed", "req_id", rid, "error", err,
			"content", string(sanitized))
		return llm.ExtractResult{Err: fmt.Sprintf("schema validation failed: %v", err)}
	}

	var fields llm.ReceiptFields
	if err := json.Unmarshal(sanitized, &fields); err != nil {
		c.log.Error("llm.extract.unmarshal_failed", "req_id", rid, "error", err)
		return llm.ExtractResult{Err: fmt.Sprintf("unmarshal fields: %v", err)}
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"vendor", fields.Vendor,
		"date", fields.TxDate,
		"amount", fields.Amount,
		"category", fields.Category,
		"line_items", len(fields.LineItems),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.ExtractResult{Fields: fields}
}

// MapColumns sends the header-mapping call for a statement sample. Errors
// here are hard rejects for the file; the caller still has to verify the
// returned headers against the real table.
func (c *Client) MapColumns(ctx context.Context, sample string) (llm.ColumnMapping, error) {
	rid := uuid.New().String()
	start := time.Now()

	schema := llm.BuildColumnMappingSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "user", "content": llm.BuildColumnMappingPrompt(sample)},
		},
	}

	c.log.Info("llm.map_columns.start", "req_id", rid, "model", c.cfg.Model, "sample_len", len(sample))

	content, err := c.completion(ctx, rid, body)
	if err != nil {
		return llm.ColumnMapping{}, fmt.Errorf("column mapping call: %w", err)
	}

	cleaned := llm.StripCodeFences(content)
	if err := llm.ValidateJSONAgainstSchema(schema, cleaned); err != nil {
		c.log.Error("llm.map_columns.schema_validation_failed", "req_id", rid, "error", err,
			"content", string(cleaned))
		return llm.ColumnMapping{}, fmt.Errorf("column mapping response: %w", err)
	}

	var mapping llm.ColumnMapping
	if err := json.Unmarshal(cleaned, &mapping); err != nil {
		return llm.ColumnMapping{}, fmt.Errorf("decode column mapping: %w", err)
	}

	c.log.Info("llm.map_columns.ok",
		"req_id", rid,
		"date_column", mapping.DateColumn,
		"vendor_column", mapping.VendorColumn,
		"amount_column", mapping.AmountColumn,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return mapping, nil
}

// MapVendors sends one batched normalization call for the unique raw vendor
// strings of an import. Any failure degrades to an empty map: quality drops,
// the import never blocks.
func (c *Client) MapVendors(ctx context.Context, rawVendors []string) llm.VendorMap {
	if len(rawVendors) == 0 {
		return llm.VendorMap{}
	}

	rid := uuid.New().String()
	start := time.Now()

	schema := llm.BuildVendorMappingSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "user", "content": llm.BuildVendorMappingPrompt(rawVendors, constants.AsStringSlice())},
		},
	}

	c.log.Info("llm.map_vendors.start", "req_id", rid, "model", c.cfg.Model, "vendors", len(rawVendors))

	content, err := c.completion(ctx, rid, body)
	if err != nil {
		c.log.Warn("llm.map_vendors.call_failed", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.VendorMap{}
	}

	cleaned := llm.StripCodeFences(content)
	if err := llm.ValidateJSONAgainstSchema(schema, cleaned); err != nil {
		c.log.Warn("llm.map_vendors.schema_validation_failed", "req_id", rid, "error", err)
		return llm.VendorMap{}
	}

	var vm llm.VendorMap
	if err := json.Unmarshal(cleaned, &vm); err != nil {
		c.log.Warn("llm.map_vendors.decode_failed", "req_id", rid, "error", err)
		return llm.VendorMap{}
	}

	c.log.Info("llm.map_vendors.ok",
		"req_id", rid,
		"mapped", len(vm),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return vm
}

// completion posts one chat/completions request and returns the first
// choice's content.
func (c *Client) completion(ctx context.Context, rid string, body map[string]any) ([]byte, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, _, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
	if err != nil {
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return nil, fmt.Errorf("no choices in completion response")
	}
	return []byte(strings.TrimSpace(cc.Choices[0].Message.Content)), nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
