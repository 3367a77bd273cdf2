// Package cli wires the browser agent commands.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"browser-agent/internal/bootstrap"
)

// App represents the CLI application.
type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer

	newApp func(opts ...fx.Option) *fx.App
}

func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
		newApp: bootstrap.NewHeadlessApp,
	}

	app.root = &cobra.Command{
		Use:   "browser-agent",
		Short: "Index web pages and drive them with an LLM",
		Long: `browser-agent turns a live page into an indexed element tree and lets a
decision provider act on it by index.

Quick start:
  browser-agent console                                  # Interactive console
  browser-agent run "find the pricing page"              # One task, then exit
  browser-agent observe https://example.com              # Print the indexed page
  browser-agent observe https://example.com -f yaml      # ... as YAML
  browser-agent observe https://example.com --extract css --query h1

Configuration is read from the environment and an optional .env file
(AI_PROVIDER, AI_API_KEY, BROWSER_DRIVER, DOM_VIEWPORT_EXPANSION, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	app.root.AddCommand(
		app.newConsoleCmd(),
		app.newRunCmd(),
		app.newObserveCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)

	return a
}

func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments.
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)

	return a.root.ExecuteContext(ctx)
}

// withApp starts a headless application, runs fn and stops it again.
func (a *App) withApp(ctx context.Context, fn func(ctx context.Context) error, opts ...fx.Option) error {
	app := a.newApp(opts...)
	if err := app.Err(); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return err
	}

	runErr := fn(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()

	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}

	return runErr
}
