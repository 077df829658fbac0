package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/showfunnel/internal/adreport"
	"github.com/sells-group/showfunnel/internal/api"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve shows, funnels and ad uploads over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sheetFile, _ := cmd.Flags().GetString("sheet-file")
		save, _ := cmd.Flags().GetBool("save")

		env, err := initEnv(ctx, "serve", save)
		if err != nil {
			return err
		}
		defer env.Close()

		src, err := sheetSource(sheetFile)
		if err != nil {
			return err
		}
		svc := api.NewService(env.Pipeline, src)

		// A failed initial load leaves the server up; POST /api/refresh retries.
		var missing *adreport.MissingTypesError
		if _, err := svc.Refresh(ctx); err != nil && !errors.As(err, &missing) {
			zap.L().Warn("initial sheet load failed", zap.Error(err))
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := api.NewServer(port, api.NewRouter(svc, cfg.Server.AllowedOrigins))

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().String("sheet-file", "", "serve a local sheet export instead of the configured sheet URL")
	serveCmd.Flags().Bool("save", false, "persist every run to the configured store")
	rootCmd.AddCommand(serveCmd)
}
