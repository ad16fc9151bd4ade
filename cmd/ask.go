package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about processed invoices",
	Long:  "Answers a natural-language question using the indexed audit records as context.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("ask"); err != nil {
			return err
		}

		env, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		question := strings.Join(args, " ")
		answer, err := env.QA.Ask(ctx, question, nil)
		if err != nil {
			return eris.Wrap(err, "ask")
		}

		fmt.Println(answer)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
