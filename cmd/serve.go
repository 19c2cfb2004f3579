package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/EberSantana/flowedu-sub004/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := openServices(ctx, true)
		if err != nil {
			return err
		}
		defer svc.Close()

		srv, err := server.New(cfg.Server, server.Deps{
			Submissions: svc.submissions,
			Grader:      svc.grader,
			Triage:      svc.triage,
			Scheduler:   svc.scheduler,
			History:     svc.history,
			Wallet:      svc.wallet,
			Exercises:   svc.catalogue,
			Ping: func(ctx context.Context) error {
				return svc.store.DB().PingContext(ctx)
			},
		}, svc.metrics, logger.Named("http"))
		if err != nil {
			return fmt.Errorf("build http server: %w", err)
		}

		// Awards booked while the remote wallet was unreachable.
		if n, err := svc.wallet.Forward(ctx); err != nil {
			logger.Warn("forward pending awards", zap.Int("delivered", n), zap.Error(err))
		}
		go svc.wallet.Run(ctx)

		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
