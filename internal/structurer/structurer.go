// Package structurer turns raw OCR text into a structured invoice record via
// a language model. Prompting details are deliberately thin: the model either
// produces a parseable record or the pipeline fails the run.
package structurer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/pkg/anthropic"
)

const systemPrompt = `You are an expert AI data extractor for accounts-payable audits.
Extract the invoice number, invoice date, vendor name, currency, total amount,
and line items from the invoice text. Translate line-item descriptions to
English. Respond with strictly valid JSON and nothing else, in this shape:
{"invoice_no": string|null, "invoice_date": string|null, "vendor_name": string|null,
"currency": string|null, "total_amount": number|null,
"line_items": [{"item_code": string, "po_number": string, "unit_price": number,
"qty": number, "description": string}]}
Omit nothing; use null for values you cannot find.`

// Structurer is the translate/structure collaborator.
type Structurer struct {
	client    anthropic.Client
	modelName string
	maxTokens int64
}

// Option configures a Structurer.
type Option func(*Structurer)

// WithMaxTokens overrides the response token budget. Non-positive values
// keep the default.
func WithMaxTokens(n int64) Option {
	return func(s *Structurer) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// New creates a Structurer using the given model.
func New(client anthropic.Client, modelName string, opts ...Option) *Structurer {
	s := &Structurer{
		client:    client,
		modelName: modelName,
		maxTokens: 4096,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Structure extracts a structured invoice record from raw text. Failures
// propagate as errors; the caller marks the pipeline run failed. A partial
// record is never returned.
func (s *Structurer) Structure(ctx context.Context, rawText string) (*model.InvoiceRecord, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, eris.New("structurer: empty input text")
	}

	temp := 0.0
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.modelName,
		MaxTokens:   s.maxTokens,
		System:      systemPrompt,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: "--- INVOICE TEXT START ---\n" + rawText + "\n--- INVOICE TEXT END ---"},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "structurer: model call")
	}

	clean := stripFences(resp.Text())
	var rec model.InvoiceRecord
	if err := json.Unmarshal([]byte(clean), &rec); err != nil {
		return nil, eris.Wrap(err, "structurer: parse model output")
	}

	zap.L().Debug("structurer: record extracted",
		zap.String("invoice_no", rec.InvoiceNo.Text()),
		zap.Int("line_items", len(rec.LineItems)),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)
	return &rec, nil
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
