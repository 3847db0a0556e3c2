package cli

import (
	"context"
	"errors"
	"os"
	"syscall"

	"github.com/lveselov/remedy/internal/logging"
	"github.com/lveselov/remedy/internal/web"
	"github.com/oklog/run"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the resolution API server",
	Long: `Start the HTTP API: healing triggers, stage status polling, parsed build
logs and deployment report listings. Healing attempts run asynchronously; the
status endpoint reflects stage progress while an attempt is in flight.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.New()
		defer func() { _ = log.Sync() }()

		svc, err := buildServices(log)
		if err != nil {
			return err
		}
		defer svc.db.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = svc.cfg.Server.Addr
		}

		server := web.NewServer(svc.orchestrator, svc.db, svc.jenkins, svc.db, log)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		var g run.Group
		g.Add(func() error {
			return server.Start(ctx, addr)
		}, func(error) {
			cancel()
		})
		g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

		log.Info("remedy starting",
			zap.String("version", version),
			zap.String("addr", addr),
			zap.String("store", svc.cfg.Store.Path),
			zap.String("gitlab", svc.cfg.GitLab.BaseURL),
			zap.String("jenkins", svc.cfg.Jenkins.BaseURL),
		)

		err = g.Run()
		var sigErr run.SignalError
		if err != nil && !errors.As(err, &sigErr) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides config)")
}
