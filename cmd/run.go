package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/pipeline"
)

var runFile string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Audit a single invoice",
	Long:  "Runs one pipeline pass. With --file the named document in the incoming directory is audited; without it the oldest waiting document is picked.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		env, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		state, err := env.Pipeline.Run(ctx, pipeline.Request{FileName: runFile})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		if state.Status == model.RunStatusWaiting {
			zap.L().Info("no invoices waiting", zap.String("dir", cfg.Paths.IncomingDir))
			return nil
		}

		env.finishRun(ctx, state)

		zap.L().Info("audit complete",
			zap.String("file", state.FileName),
			zap.String("status", string(state.Status)),
			zap.Bool("is_valid", state.IsValid),
			zap.Int("discrepancies", len(state.Discrepancies)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	},
}

func init() {
	runCmd.Flags().StringVar(&runFile, "file", "", "invoice file name inside the incoming directory")
	rootCmd.AddCommand(runCmd)
}
