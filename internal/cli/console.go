package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"browser-agent/internal/bootstrap"
	"browser-agent/internal/console"
)

func (a *App) newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Start the interactive console",
		Long: `Launch the browser and read commands or natural language tasks from stdin.

Ctrl+C stops a running task; when idle it exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var ui *console.Interface

			app := bootstrap.NewApp(fx.Populate(&ui))
			if err := app.Err(); err != nil {
				return err
			}

			if err := app.Start(cmd.Context()); err != nil {
				return err
			}

			<-ui.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
			defer cancel()

			return app.Stop(stopCtx)
		},
	}
}
