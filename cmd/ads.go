package main

import (
	"errors"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/showfunnel/internal/adreport"
	"github.com/sells-group/showfunnel/internal/pipeline"
)

var adsCmd = &cobra.Command{
	Use:   "ads <report>...",
	Short: "Match ad reports to shows and print per-show funnels",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sheetFile, _ := cmd.Flags().GetString("sheet-file")
		asJSON, _ := cmd.Flags().GetBool("json")

		env, err := initEnv(ctx, "ads", false)
		if err != nil {
			return err
		}
		defer env.Close()

		src, err := sheetSource(sheetFile)
		if err != nil {
			return err
		}
		uploads, err := readUploads(args)
		if err != nil {
			return err
		}

		res, err := env.Pipeline.Run(ctx, pipeline.Input{Sheet: src, Ads: uploads})
		var missing *adreport.MissingTypesError
		switch {
		case errors.As(err, &missing):
			zap.L().Warn("ads: upload incomplete", zap.Strings("missing_types", res.MissingNames()))
		case err != nil:
			return eris.Wrap(err, "ads")
		}

		out := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(out, struct {
				MatchStats  any      `json:"match_stats"`
				Funnels     any      `json:"funnels"`
				Performance any      `json:"performance"`
				Missing     []string `json:"missing_types"`
			}{res.MatchStats, res.Funnels, res.Performance, res.MissingNames()})
		}
		formatAdTables(out, res)
		formatPerformance(out, res.Performance)
		return nil
	},
}

func init() {
	adsCmd.Flags().String("sheet-file", "", "read a local sheet export instead of the configured sheet URL")
	adsCmd.Flags().Bool("json", false, "print JSON instead of tables")
	rootCmd.AddCommand(adsCmd)
}
