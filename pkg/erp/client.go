// Package erp provides a client for the external ERP record store, the
// authoritative source for purchase-order, vendor, and SKU data.
package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/invoice-audit/internal/model"
)

// Kind selects which ERP record type a lookup targets.
type Kind string

const (
	KindPurchaseOrder Kind = "po"
	KindVendor        Kind = "vendor"
	KindSKU           Kind = "sku"
)

// Failure reasons reported in LookupResult.Reason. Callers that care about
// the difference between a business miss and an unreachable store should
// check Transient rather than string-match these.
const (
	ReasonNotFound         = "not found"
	ReasonConnectionFailed = "connection failed"
)

// LookupResult is the outcome of a single ERP lookup. Valid is true only on
// an authoritative match. Transient marks connectivity failures, which are
// recoverable conditions rather than business rejections; they are recorded
// for audit even though the validation engine folds both into the same
// discrepancy text.
type LookupResult struct {
	Valid     bool            `json:"valid"`
	Reason    string          `json:"reason,omitempty"`
	Transient bool            `json:"transient,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`

	// PO is the parsed purchase order when the lookup kind was po and the
	// record matched. Not serialized; Data carries the raw form.
	PO *PurchaseOrder `json:"-"`
}

// PurchaseOrder is the authoritative pre-approved order record.
type PurchaseOrder struct {
	PONumber  string `json:"po_number"`
	VendorID  string `json:"vendor_id"`
	LineItems []POLine `json:"line_items"`
}

// POLine is a single purchase-order line, keyed by item_code. Price and
// quantity stay loosely typed: ERP exports have been seen carrying them as
// strings, and the validation engine owns the parse policy.
type POLine struct {
	ItemCode    string       `json:"item_code"`
	UnitPrice   model.Scalar `json:"unit_price"`
	Qty         model.Scalar `json:"qty"`
	Description string       `json:"description"`
}

// Client defines the ERP lookup operation. One synchronous attempt per call,
// no retries at this layer; the configured HTTP timeout bounds the blocking
// call.
type Client interface {
	Lookup(ctx context.Context, kind Kind, key string) LookupResult
}

// Option configures the ERP client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-call timeout on the underlying HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates an ERP client for the given base URL. An empty apiKey
// disables the Authorization header (the mock ERP used in development has no
// auth).
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func endpointFor(kind Kind, key string) (string, bool) {
	switch kind {
	case KindPurchaseOrder:
		return "/api/v1/purchase_orders/" + key, true
	case KindVendor:
		return "/api/v1/vendors/" + key, true
	case KindSKU:
		return "/api/v1/skus/" + key, true
	default:
		return "", false
	}
}

// Lookup queries the ERP for a record by key. It never returns a Go error:
// every failure mode degrades to a LookupResult the validation engine can
// fold into its discrepancy list.
func (c *httpClient) Lookup(ctx context.Context, kind Kind, key string) LookupResult {
	path, ok := endpointFor(kind, key)
	if !ok {
		return LookupResult{Valid: false, Reason: fmt.Sprintf("unknown lookup kind %q", kind)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return LookupResult{Valid: false, Reason: fmt.Sprintf("build request: %v", err)}
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		zap.L().Warn("erp: lookup unreachable",
			zap.String("kind", string(kind)),
			zap.String("key", key),
			zap.Error(err),
		)
		return LookupResult{Valid: false, Reason: ReasonConnectionFailed, Transient: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return LookupResult{Valid: false, Reason: ReasonConnectionFailed, Transient: true}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		res := LookupResult{Valid: true, Data: json.RawMessage(body)}
		if kind == KindPurchaseOrder {
			var po PurchaseOrder
			if err := json.Unmarshal(body, &po); err != nil {
				zap.L().Warn("erp: malformed purchase order payload",
					zap.String("key", key),
					zap.Error(err),
				)
				return LookupResult{Valid: false, Reason: "malformed ERP response"}
			}
			res.PO = &po
		}
		return res
	case resp.StatusCode == http.StatusNotFound:
		return LookupResult{Valid: false, Reason: ReasonNotFound}
	default:
		return LookupResult{Valid: false, Reason: fmt.Sprintf("ERP error %d", resp.StatusCode)}
	}
}
