package bootstrap

import (
	"bufio"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"browser-agent/internal/browser"
	"browser-agent/internal/browser/cdp"
	"browser-agent/internal/config"
	"browser-agent/internal/overlay"
	"browser-agent/internal/ports"
)

type browserParams struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

// newBrowser picks the driver named by BROWSER_DRIVER.
func newBrowser(params browserParams) ports.BrowserManager {
	switch params.Config.BrowserConfig.Driver {
	case config.DriverChromedp:
		return cdp.NewManager(cdp.Params{Config: params.Config, Logger: params.Logger})
	default:
		return browser.NewManager(browser.Params{Config: params.Config, Logger: params.Logger})
	}
}

func newHighlighter(cfg *config.Config, driver ports.BrowserManager, logger *zap.Logger) ports.Highlighter {
	return overlay.NewRenderer(driver, logger, cfg.DOMConfig.HighlightTTL)
}

// newInput shares one buffered stdin between the console prompt and the
// agent's confirmation questions.
func newInput() *bufio.Reader {
	return bufio.NewReader(os.Stdin)
}
