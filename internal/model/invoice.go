package model

// InvoiceRecord is the structured data extracted from a scanned invoice by
// the structuring collaborator. Any scalar field may be absent, null, or
// empty; line-item order carries no meaning for validation (items are
// matched by SKU, not position).
type InvoiceRecord struct {
	InvoiceNo   Scalar     `json:"invoice_no"`
	InvoiceDate Scalar     `json:"invoice_date"`
	VendorName  Scalar     `json:"vendor_name"`
	Currency    Scalar     `json:"currency"`
	TotalAmount Scalar     `json:"total_amount"`
	LineItems   []LineItem `json:"line_items"`
}

// LineItem is a single invoice line. UnitPrice and Qty may arrive as
// non-numeric strings; parsing is the validation engine's problem.
type LineItem struct {
	ItemCode    string `json:"item_code"`
	PONumber    string `json:"po_number"`
	UnitPrice   Scalar `json:"unit_price"`
	Qty         Scalar `json:"qty"`
	Description string `json:"description"`
}

// Field resolves a configured mandatory-field name to the corresponding
// record value. Unknown names behave like an absent field, so a typo in the
// rules file shows up as a missing-field discrepancy instead of being
// silently skipped.
func (r *InvoiceRecord) Field(name string) Scalar {
	switch name {
	case "invoice_no":
		return r.InvoiceNo
	case "invoice_date":
		return r.InvoiceDate
	case "vendor_name":
		return r.VendorName
	case "currency":
		return r.Currency
	case "total_amount":
		return r.TotalAmount
	default:
		return Scalar{}
	}
}

// FirstPONumber returns the po_number of the first line item that carries
// one, which is the PO the validation engine reconciles against. Returns ""
// when no line item has a PO.
func (r *InvoiceRecord) FirstPONumber() string {
	for _, item := range r.LineItems {
		if item.PONumber != "" {
			return item.PONumber
		}
	}
	return ""
}
