package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/pipeline"
)

var rerunDataPath string

var rerunCmd = &cobra.Command{
	Use:   "rerun <invoice-id>",
	Short: "Re-validate an invoice with corrected data",
	Long:  "Takes a human-corrected invoice record (JSON from --data or stdin), skips extraction, and runs validation again. A passing re-run marks the existing report Approved.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		invoiceID := args[0]

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		corrected, err := readCorrected(rerunDataPath)
		if err != nil {
			return err
		}

		env, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		state, err := env.Pipeline.Run(ctx, pipeline.Request{
			FileName:  invoiceID,
			IsRerun:   true,
			Corrected: corrected,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline rerun")
		}

		if state.IsValid {
			if _, err := env.Reports.MarkApproved(invoiceID, &model.ReportData{
				Invoice:          corrected,
				ValidationStatus: model.ReportStatusPass,
			}); err != nil {
				zap.L().Warn("report not updated", zap.String("invoice", invoiceID), zap.Error(err))
			}
		}

		zap.L().Info("rerun complete",
			zap.String("invoice", invoiceID),
			zap.Bool("is_valid", state.IsValid),
			zap.Int("discrepancies", len(state.Discrepancies)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	},
}

func readCorrected(path string) (*model.InvoiceRecord, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, eris.Wrap(err, "read corrected data")
	}

	var rec model.InvoiceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "parse corrected data")
	}
	return &rec, nil
}

func init() {
	rerunCmd.Flags().StringVar(&rerunDataPath, "data", "", "path to the corrected invoice JSON (default stdin)")
	rootCmd.AddCommand(rerunCmd)
}
