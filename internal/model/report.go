package model

// Report/record status values. PASS and FAIL come from the validation
// verdict; the remaining values are set by human actions on the review queue.
const (
	ReportStatusPass         = "PASS"
	ReportStatusFail         = "FAIL"
	ReportStatusApproved     = "Approved"
	ReportStatusRejected     = "Rejected"
	ReportStatusManualReview = "Manual Review"
)

// ReportData is the merged record handed to the report renderer: the
// structured invoice plus the validation verdict. The invoice itself is
// never mutated by validation; the merge happens here.
type ReportData struct {
	Invoice          *InvoiceRecord `json:"invoice"`
	ValidationStatus string         `json:"validation_status"`
	Discrepancies    []string       `json:"discrepancies"`
}

// ReportRecord is the durable JSON metadata written alongside each rendered
// report. It is the audit record human reviewers act on.
type ReportRecord struct {
	InvoiceID            string     `json:"invoice_id"`
	Status               string     `json:"status"`
	HumanReadableSummary string     `json:"human_readable_summary"`
	HTMLReportPath       string     `json:"html_report_path"`
	AuditTrail           AuditTrail `json:"audit_trail"`
}

// AuditTrail preserves the full merged record for later review.
type AuditTrail struct {
	InvoiceData *ReportData `json:"invoice_data"`
}

// NeedsHumanAction reports whether the record sits in the manual-review
// queue. Approved and Rejected records have already been acted on.
func (r *ReportRecord) NeedsHumanAction() bool {
	switch r.Status {
	case ReportStatusFail, ReportStatusManualReview:
		return true
	default:
		return false
	}
}
