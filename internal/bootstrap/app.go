package bootstrap

import (
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"browser-agent/internal/ai"
	"browser-agent/internal/config"
	"browser-agent/internal/console"
	"browser-agent/internal/ports"
	"browser-agent/internal/usecase"
)

const startTimeout = 60 * time.Second

// Module provides everything the commands share: configuration, logging,
// tracing, the browser driver, the decision provider and the use cases.
var Module = fx.Options(
	fx.Provide(
		config.GetConfig,
		newLogger,
		newTraceProvider,
		newInput,

		newBrowser,
		newHighlighter,
		fx.Annotate(ai.NewClient, fx.As(new(ports.AIClient))),

		usecase.NewUsecase,
	),

	fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: logger.Named("fx")}
	}),

	fx.Invoke(
		registerTracing,
		manageBrowser,
	),
)

// NewApp builds the interactive console application.
func NewApp(opts ...fx.Option) *fx.App {
	return fx.New(
		Module,

		fx.Provide(
			console.NewInterface,
		),

		fx.Invoke(
			runConsole,
		),

		fx.StartTimeout(startTimeout),
		fx.Options(opts...),
	)
}

// NewHeadlessApp builds an application without the console; callers pull
// what they need with fx.Populate.
func NewHeadlessApp(opts ...fx.Option) *fx.App {
	return fx.New(
		Module,
		fx.StartTimeout(startTimeout),
		fx.Options(opts...),
	)
}
