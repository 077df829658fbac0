package main

import (
	"errors"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/showfunnel/internal/adreport"
	"github.com/sells-group/showfunnel/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run [ad report]...",
	Short: "Run the full sheet and ad funnel pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sheetFile, _ := cmd.Flags().GetString("sheet-file")
		save, _ := cmd.Flags().GetBool("save")

		env, err := initEnv(ctx, "run", save)
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
		if err != nil && !errors.As(err, &missing) {
			return eris.Wrap(err, "run")
		}

		zap.L().Info("run complete",
			zap.String("run_id", res.RunID),
			zap.Int("shows", len(res.Shows)),
			zap.Int("ad_records", res.AdRecordCount()),
			zap.Int("matched", res.MatchedCount()),
			zap.Strings("missing_types", res.MissingNames()),
			zap.Bool("saved", save),
		)
		return writeJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	runCmd.Flags().String("sheet-file", "", "read a local sheet export instead of the configured sheet URL")
	runCmd.Flags().Bool("save", false, "persist the run to the configured store")
	rootCmd.AddCommand(runCmd)
}
