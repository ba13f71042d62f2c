package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/doeshing/chatwork/internal/app"
)

func newServeCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Long:  "Serve the Feishu webhook and the local REST API until interrupted. Bind address and port come from the config file, or the HOST and PORT environment variables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := container.Config
			if cfg.Feishu.AppID == "" || cfg.Feishu.AppSecret == "" {
				container.Logger.Warn("feishu credentials missing, card replies will fail", nil)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "listening on %s:%d\n", cfg.Server.Host, cfg.Server.Port)
			return container.Server.Run(ctx)
		},
	}
}
