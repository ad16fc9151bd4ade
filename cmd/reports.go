package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/report"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect and act on audit reports",
	Long:  "Commands for listing reports, working the manual-review queue, and exporting audit results.",
}

// -- reports list --

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit reports, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reports := report.NewStore(cfg.Paths.ReportsDir)

		records, err := reports.List()
		if err != nil {
			return eris.Wrap(err, "reports list")
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No reports found.")
			return nil
		}

		formatReportsList(os.Stdout, records)
		return nil
	},
}

// -- reports queue --

var reportsQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List reports awaiting human action",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reports := report.NewStore(cfg.Paths.ReportsDir)

		records, err := reports.Queue()
		if err != nil {
			return eris.Wrap(err, "reports queue")
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "Review queue is empty.")
			return nil
		}

		formatReportsList(os.Stdout, records)
		return nil
	},
}

// -- reports show --

var reportsShowCmd = &cobra.Command{
	Use:   "show <invoice-id>",
	Short: "Show the full audit record for an invoice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reports := report.NewStore(cfg.Paths.ReportsDir)

		record, err := reports.Get(args[0])
		if err != nil {
			return eris.Wrap(err, "reports show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	},
}

// -- reports action --

var (
	actionVerb  string
	actionNotes string
)

var reportsActionCmd = &cobra.Command{
	Use:   "action <invoice-id>",
	Short: "Approve or reject a queued report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reports := report.NewStore(cfg.Paths.ReportsDir)

		record, err := reports.Apply(args[0], actionVerb, actionNotes)
		if err != nil {
			return eris.Wrap(err, "reports action")
		}

		zap.L().Info("action recorded",
			zap.String("invoice", record.InvoiceID),
			zap.String("status", record.Status),
		)
		fmt.Printf("%s -> %s\n", record.InvoiceID, record.Status)
		return nil
	},
}

// -- reports export --

var exportOut string

var reportsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all audit reports to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reports := report.NewStore(cfg.Paths.ReportsDir)

		records, err := reports.List()
		if err != nil {
			return eris.Wrap(err, "reports export")
		}

		if err := writeReportsXLSX(exportOut, records); err != nil {
			return err
		}

		zap.L().Info("exported", zap.Int("reports", len(records)), zap.String("path", exportOut))
		return nil
	},
}

func writeReportsXLSX(path string, records []*model.ReportRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Audit Reports")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Invoice ID", "Status", "Summary", "Vendor", "Total", "Discrepancies", "Report"} {
		header.AddCell().SetString(h)
	}

	for _, r := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(r.InvoiceID)
		row.AddCell().SetString(r.Status)
		row.AddCell().SetString(r.HumanReadableSummary)

		vendor, total, issues := "", "", ""
		if data := r.AuditTrail.InvoiceData; data != nil {
			if data.Invoice != nil {
				vendor = data.Invoice.VendorName.Text()
				total = data.Invoice.TotalAmount.Text()
			}
			issues = strings.Join(data.Discrepancies, "; ")
		}
		row.AddCell().SetString(vendor)
		row.AddCell().SetString(total)
		row.AddCell().SetString(issues)
		row.AddCell().SetString(r.HTMLReportPath)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "xlsx: save")
	}
	return nil
}

func formatReportsList(w io.Writer, records []*model.ReportRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INVOICE\tSTATUS\tISSUES\tSUMMARY")
	for _, r := range records {
		issues := 0
		if data := r.AuditTrail.InvoiceData; data != nil {
			issues = len(data.Discrepancies)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.InvoiceID, r.Status, issues, r.HumanReadableSummary)
	}
	_ = tw.Flush()
}

func init() {
	reportsActionCmd.Flags().StringVar(&actionVerb, "action", "", "APPROVE or REJECT")
	reportsActionCmd.Flags().StringVar(&actionNotes, "notes", "", "reviewer notes appended to the summary")
	_ = reportsActionCmd.MarkFlagRequired("action")

	reportsExportCmd.Flags().StringVar(&exportOut, "out", "audit_reports.xlsx", "output workbook path")

	reportsCmd.AddCommand(reportsListCmd, reportsQueueCmd, reportsShowCmd, reportsActionCmd, reportsExportCmd)
	rootCmd.AddCommand(reportsCmd)
}
