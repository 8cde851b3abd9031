package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"clubflow/internal/api"
	"clubflow/internal/config"
	"clubflow/internal/lifecycle"
	"clubflow/internal/logging"
)

func newServeCommand(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve approval chains over HTTP for dashboards",
		Long: `Start the HTTP façade. Dashboards read the stepper render model from it
and post approve/reject decisions through it.

The server logs JSON lines and shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config.Server
			if addr != "" {
				cfg.Addr = addr
			}

			out := app.LogOutput
			if out == nil {
				out = os.Stderr
			}
			logCfg := app.Config.Log
			logCfg.Format = "json"
			if logCfg.Level == config.DefaultConfig().Log.Level {
				logCfg.Level = "info"
			}
			log := logging.New(logCfg, out)

			exec := lifecycle.NewExecutor(app.Backend, app.Backend, log)
			exec.SetRouter(app.routing())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := api.NewServer(exec, app.routing(), cfg, log)
			if err := server.ListenAndServe(ctx); err != nil {
				return app.fail(cmd, exitFailure, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr from config)")

	return cmd
}
