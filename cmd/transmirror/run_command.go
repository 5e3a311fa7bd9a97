package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"transmirror/internal/daemon"
	"transmirror/internal/logging"
)

func newRunCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the reconciliation daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := daemon.New(cfg, logger)
			if err != nil {
				return err
			}
			if err := d.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return d.Stop()
		},
	}
}
