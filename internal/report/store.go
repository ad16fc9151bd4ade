package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-audit/internal/model"
)

// ErrNotFound is returned when no report record exists for an invoice id.
var ErrNotFound = eris.New("report: not found")

// Store persists report records as <invoice_id>.json metadata plus the
// rendered <invoice_id>.html in a reports directory. Concurrent writers for
// the same id are last-writer-wins.
type Store struct {
	dir string
}

// NewStore creates a Store over the given reports directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// SanitizeID derives a filesystem-safe invoice id from the extracted invoice
// number. Unusable numbers (absent, null-ish, or fully stripped) get a
// generated Inv_ id instead.
func SanitizeID(invoiceNo model.Scalar) string {
	text := strings.TrimSpace(invoiceNo.Text())
	lower := strings.ToLower(text)
	if text == "" || lower == "none" || lower == "null" {
		return generatedID()
	}

	var b strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return generatedID()
	}
	return b.String()
}

func generatedID() string {
	return "Inv_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

// Save writes the rendered HTML and the JSON metadata record for a completed
// audit, returning the stored record.
func (s *Store) Save(data model.ReportData, html string) (*model.ReportRecord, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create dir %s", s.dir)
	}

	var invoiceNo model.Scalar
	if data.Invoice != nil {
		invoiceNo = data.Invoice.InvoiceNo
	}
	id := SanitizeID(invoiceNo)

	htmlPath := filepath.Join(s.dir, id+".html")
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		return nil, eris.Wrapf(err, "report: write html %s", id)
	}

	record := &model.ReportRecord{
		InvoiceID:            id,
		Status:               data.ValidationStatus,
		HumanReadableSummary: "Audit " + id,
		HTMLReportPath:       htmlPath,
		AuditTrail:           model.AuditTrail{InvoiceData: &data},
	}
	if err := s.write(record); err != nil {
		return nil, err
	}

	zap.L().Info("report: saved",
		zap.String("invoice_id", id),
		zap.String("status", record.Status))
	return record, nil
}

// Get loads the record for an invoice id. Returns ErrNotFound when absent.
func (s *Store) Get(id string) (*model.ReportRecord, error) {
	data, err := os.ReadFile(s.jsonPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "report: read %s", id)
	}

	var record model.ReportRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, eris.Wrapf(err, "report: unmarshal %s", id)
	}
	return &record, nil
}

// List returns all report records, newest first. Unreadable files are
// skipped rather than failing the whole listing.
func (s *Store) List() ([]*model.ReportRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*model.ReportRecord{}, nil
		}
		return nil, eris.Wrapf(err, "report: read dir %s", s.dir)
	}

	type dated struct {
		record *model.ReportRecord
		mod    int64
	}
	var found []dated
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		record, err := s.Get(id)
		if err != nil {
			zap.L().Warn("report: skipping unreadable record", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, dated{record: record, mod: info.ModTime().UnixNano()})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].mod > found[j].mod })

	records := make([]*model.ReportRecord, 0, len(found))
	for _, d := range found {
		records = append(records, d.record)
	}
	return records, nil
}

// Queue returns the records awaiting human action, newest first.
func (s *Store) Queue() ([]*model.ReportRecord, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	queue := []*model.ReportRecord{}
	for _, r := range all {
		if r.NeedsHumanAction() {
			queue = append(queue, r)
		}
	}
	return queue, nil
}

// Apply records a human approve or reject decision. Any action other than
// APPROVE rejects. The decision and notes are appended to the summary.
func (s *Store) Apply(id, action, notes string) (*model.ReportRecord, error) {
	record, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if action == "APPROVE" {
		record.Status = model.ReportStatusApproved
	} else {
		record.Status = model.ReportStatusRejected
	}
	record.HumanReadableSummary += " (Manually " + action + ": " + notes + ")"

	if err := s.write(record); err != nil {
		return nil, err
	}
	return record, nil
}

// MarkApproved updates a record after a successful rerun with corrected
// data: status flips to Approved and the audit trail holds the corrections.
func (s *Store) MarkApproved(id string, corrected *model.ReportData) (*model.ReportRecord, error) {
	record, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	record.Status = model.ReportStatusApproved
	record.HumanReadableSummary = "Re-run Passed (Manual Data)"
	record.AuditTrail.InvoiceData = corrected

	if err := s.write(record); err != nil {
		return nil, err
	}
	return record, nil
}

// HTMLPath resolves a report file name inside the store directory. Path
// elements are stripped so callers cannot escape the directory.
func (s *Store) HTMLPath(filename string) string {
	return filepath.Join(s.dir, filepath.Base(filename))
}

func (s *Store) jsonPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) write(record *model.ReportRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return eris.Wrapf(err, "report: marshal %s", record.InvoiceID)
	}
	if err := os.WriteFile(s.jsonPath(record.InvoiceID), data, 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", record.InvoiceID)
	}
	return nil
}
