package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/showfunnel/internal/pipeline"
)

var sheetCmd = &cobra.Command{
	Use:   "sheet",
	Short: "Load the ticket sales sheet and print per-show metrics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		file, _ := cmd.Flags().GetString("file")
		asJSON, _ := cmd.Flags().GetBool("json")

		env, err := initEnv(ctx, "sheet", false)
		if err != nil {
			return err
		}
		defer env.Close()

		src, err := sheetSource(file)
		if err != nil {
			return err
		}
		res, err := env.Pipeline.Run(ctx, pipeline.Input{Sheet: src})
		if err != nil {
			return eris.Wrap(err, "sheet")
		}

		out := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(out, struct {
				Shows   any `json:"shows"`
				Summary any `json:"summary"`
			}{res.Shows, res.Summary})
		}
		formatShows(out, res.Shows)
		formatSummary(out, res.Summary)
		return nil
	},
}

func init() {
	sheetCmd.Flags().String("file", "", "read a local CSV export instead of the configured sheet URL")
	sheetCmd.Flags().Bool("json", false, "print JSON instead of a table")
	rootCmd.AddCommand(sheetCmd)
}
