// Package validate implements the invoice validation engine: mandatory-field
// rules, PO existence, and per-line-item price/quantity reconciliation
// against authoritative ERP data.
package validate

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/rules"
	"github.com/sells-group/invoice-audit/pkg/erp"
)

// Outcome is the result of one validation run. Discrepancies accumulate in
// the order checks execute, which is fixed; IsValid is always derived from
// the list and never set independently.
type Outcome struct {
	IsValid       bool                        `json:"is_valid"`
	Discrepancies []string                    `json:"discrepancies"`
	Results       map[string]erp.LookupResult `json:"validation_results"`
}

// Status maps the verdict onto the report status vocabulary.
func (o Outcome) Status() string {
	if o.IsValid {
		return model.ReportStatusPass
	}
	return model.ReportStatusFail
}

// Validate runs the full rule set against a structured invoice record. It is
// pure given its three inputs (record, rules, ERP responses): no state
// carries between runs, and identical inputs yield identical outcomes. The
// engine never fails; every problem degrades to a discrepancy string.
//
// Check order is fixed: null-data guard, mandatory fields (in config order),
// PO discovery, PO existence, line-item reconciliation, verdict.
func Validate(ctx context.Context, rec *model.InvoiceRecord, cfg rules.Config, client erp.Client) Outcome {
	out := Outcome{
		Discrepancies: []string{},
		Results:       map[string]erp.LookupResult{},
	}

	if rec == nil {
		out.Discrepancies = append(out.Discrepancies, "No structured data found to validate")
		return out
	}

	log := zap.L().With(zap.String("invoice_no", rec.InvoiceNo.Text()))
	log.Debug("validate: checking mandatory fields", zap.Int("count", len(cfg.MandatoryFields)))

	for _, field := range cfg.MandatoryFields {
		if rec.Field(field).Missing() {
			out.Discrepancies = append(out.Discrepancies, "Missing mandatory field: "+field)
		}
	}

	// The PO used for reconciliation is the one on the first PO-bearing line
	// item, not a union across items.
	po := rec.FirstPONumber()
	if po == "" {
		if cfg.AutoRejectIfPOMissing {
			out.Discrepancies = append(out.Discrepancies, "Missing PO Number (Auto-Rejection Rule Applied)")
		} else {
			log.Warn("validate: no PO number found, auto-reject is off")
		}
	} else {
		log.Debug("validate: checking PO", zap.String("po", po))
		res := client.Lookup(ctx, erp.KindPurchaseOrder, po)
		out.Results["po_check"] = res

		if !res.Valid {
			// Connection failures land here too; res.Transient preserves the
			// distinction for the audit record.
			out.Discrepancies = append(out.Discrepancies, "Invalid PO Number: "+po)
		} else if res.PO != nil {
			out.Discrepancies = append(out.Discrepancies, reconcileLineItems(rec, res.PO, cfg.PriceTolerancePercent)...)
		}
	}

	out.IsValid = len(out.Discrepancies) == 0

	if out.IsValid {
		log.Info("validate: approved")
	} else {
		log.Info("validate: rejected", zap.Int("discrepancies", len(out.Discrepancies)))
	}
	return out
}

// reconcileLineItems checks every invoice line that has a SKU match on the
// confirmed PO. Invoice items with no ERP counterpart raise nothing; that is
// a long-standing business-rule gap kept deliberately.
func reconcileLineItems(rec *model.InvoiceRecord, po *erp.PurchaseOrder, tolerance float64) []string {
	erpIndex := make(map[string]erp.POLine, len(po.LineItems))
	for _, line := range po.LineItems {
		erpIndex[line.ItemCode] = line
	}

	var found []string
	for _, item := range rec.LineItems {
		sku := item.ItemCode
		if sku == "" {
			continue
		}
		erpLine, ok := erpIndex[sku]
		if !ok {
			continue
		}

		// Price check. A parse failure on either side is reported; the
		// quantity check below still runs.
		invPrice, invErr := item.UnitPrice.Float()
		erpPrice, erpErr := erpLine.UnitPrice.Float()
		switch {
		case invErr != nil || erpErr != nil:
			found = append(found, "Invalid price format for item "+sku)
		case erpPrice > 0:
			// Non-positive ERP price skips the comparison entirely.
			diff := math.Abs(invPrice-erpPrice) / erpPrice * 100
			if diff > tolerance {
				found = append(found, fmt.Sprintf(
					"Price Mismatch for %s: Inv $%s vs ERP $%s (Diff: %.2f%% > Limit: %s%%)",
					sku, fmtNum(invPrice), fmtNum(erpPrice), diff, fmtNum(tolerance),
				))
			}
		}

		// Quantity check. Parse failures here are silently ignored,
		// asymmetric with the price policy above; pinned by tests, change
		// only with a rules-owner decision.
		invQty, qtyErr := item.Qty.Float()
		erpQty, erpQtyErr := erpLine.Qty.Float()
		if qtyErr == nil && erpQtyErr == nil && invQty > erpQty {
			found = append(found, fmt.Sprintf(
				"Over-billing Quantity for %s: Inv %s > PO %s",
				sku, fmtNum(invQty), fmtNum(erpQty),
			))
		}
	}
	return found
}

func fmtNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
