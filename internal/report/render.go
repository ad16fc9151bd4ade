package report

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/invoice-audit/internal/model"
)

// FormatAmount renders a monetary value with its currency. Recognized ISO
// codes get a locale-aware symbol; unknown codes fall back to plain text.
func FormatAmount(code string, v model.Scalar) string {
	text := v.Text()
	if text == "" {
		text = "N/A"
	}

	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		if code != "" {
			return code + " " + text
		}
		return text
	}

	val, ferr := v.Float()
	if ferr != nil || v.Missing() {
		return unit.String() + " " + text
	}

	p := message.NewPrinter(language.English)
	return p.Sprintf("%v", currency.Symbol(unit.Amount(val)))
}

type lineView struct {
	ItemCode    string
	Description string
	PONumber    string
	UnitPrice   string
	Qty         string
}

type reportView struct {
	InvoiceNo     string
	VendorName    string
	InvoiceDate   string
	Total         string
	Status        string
	Pass          bool
	Discrepancies []string
	LineItems     []lineView
}

var reportTmpl = template.Must(template.New("audit").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Invoice Audit: {{.InvoiceNo}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 2em; color: #222; }
h1 { font-size: 1.4em; }
.status { display: inline-block; padding: 4px 12px; border-radius: 4px; color: #fff; font-weight: bold; }
.pass { background: #2e7d32; }
.fail { background: #c62828; }
table { border-collapse: collapse; margin-top: 1em; width: 100%; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; }
th { background: #f5f5f5; }
ul.issues li { color: #c62828; margin: 4px 0; }
</style>
</head>
<body>
<h1>Invoice Audit Report</h1>
<p><span class="status {{if .Pass}}pass{{else}}fail{{end}}">{{.Status}}</span></p>
<table>
<tr><th>Invoice No</th><td>{{.InvoiceNo}}</td></tr>
<tr><th>Invoice Date</th><td>{{.InvoiceDate}}</td></tr>
<tr><th>Vendor</th><td>{{.VendorName}}</td></tr>
<tr><th>Total Amount</th><td>{{.Total}}</td></tr>
</table>
{{if .LineItems}}
<h2>Line Items</h2>
<table>
<tr><th>Item Code</th><th>Description</th><th>PO Number</th><th>Unit Price</th><th>Qty</th></tr>
{{range .LineItems}}
<tr><td>{{.ItemCode}}</td><td>{{.Description}}</td><td>{{.PONumber}}</td><td>{{.UnitPrice}}</td><td>{{.Qty}}</td></tr>
{{end}}
</table>
{{end}}
<h2>Findings</h2>
{{if .Discrepancies}}
<ul class="issues">
{{range .Discrepancies}}<li>{{.}}</li>
{{end}}
</ul>
{{else}}
<p>No discrepancies found. Invoice reconciles against the purchase order.</p>
{{end}}
</body>
</html>
`))

// Render produces the HTML audit report and a one-line summary for the
// merged invoice + verdict record.
func Render(data model.ReportData) (string, error) {
	view := reportView{
		InvoiceNo:     "N/A",
		VendorName:    "N/A",
		InvoiceDate:   "N/A",
		Total:         "N/A",
		Status:        data.ValidationStatus,
		Pass:          data.ValidationStatus == model.ReportStatusPass,
		Discrepancies: data.Discrepancies,
	}

	if inv := data.Invoice; inv != nil {
		if t := inv.InvoiceNo.Text(); t != "" {
			view.InvoiceNo = t
		}
		if t := inv.VendorName.Text(); t != "" {
			view.VendorName = t
		}
		if t := inv.InvoiceDate.Text(); t != "" {
			view.InvoiceDate = t
		}
		code := inv.Currency.Text()
		view.Total = FormatAmount(code, inv.TotalAmount)

		for _, item := range inv.LineItems {
			view.LineItems = append(view.LineItems, lineView{
				ItemCode:    item.ItemCode,
				Description: item.Description,
				PONumber:    item.PONumber,
				UnitPrice:   FormatAmount(code, item.UnitPrice),
				Qty:         item.Qty.Text(),
			})
		}
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, view); err != nil {
		return "", eris.Wrap(err, "report: render template")
	}
	return buf.String(), nil
}
