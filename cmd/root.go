package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/showfunnel/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "showfunnel",
	Short: "Ticket sales and ad funnel reconciliation",
	Long:  "Parses the ticket sales sheet, consolidates per-show metrics, matches ad report rows to shows and builds per-show purchase funnels.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
