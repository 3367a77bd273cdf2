// Package cdp drives Chromium over the DevTools protocol with chromedp.
// Elements are addressed by JS path into the snapshot registry.
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"browser-agent/internal/browser/script"
	"browser-agent/internal/config"
	"browser-agent/internal/dom"
	"browser-agent/pkg/apperr"
	"browser-agent/pkg/logg"
	"browser-agent/pkg/tracing"
)

const (
	managerName  = "CDPManager"
	cdpTracer    = "browser.cdp"
	settleDelay  = 300 * time.Millisecond
	jpegQuality  = 60
	minRunBudget = time.Second
)

type Manager struct {
	config        *config.Config
	logger        *zap.Logger
	tracer        trace.Tracer
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	ready         bool
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewManager(params Params) *Manager {
	return &Manager{
		config: params.Config,
		logger: params.Logger.With(zap.String(logg.Layer, managerName), zap.String(logg.Driver, config.DriverChromedp)),
		tracer: otel.Tracer(cdpTracer),
	}
}

func (m *Manager) Launch(ctx context.Context) (err error) {
	const op = "Launch"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	bc := m.config.BrowserConfig
	logger.Info("Launching browser...")

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", bc.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(bc.ViewportWidth, bc.ViewportHeight),
	)

	if bc.UserDataDir != "" {
		if err := os.MkdirAll(bc.UserDataDir, 0o755); err != nil {
			return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
				apperr.MetaReason: "mkdir_failed",
				apperr.MetaStage:  apperr.StageBrowser,
			})
		}
		opts = append(opts, chromedp.UserDataDir(bc.UserDataDir))
	}

	// The browser outlives the launch call, so it hangs off Background.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(m.logger.Sugar().Debugf))

	if err := chromedp.Run(browserCtx, chromedp.EmulateViewport(int64(bc.ViewportWidth), int64(bc.ViewportHeight))); err != nil {
		browserCancel()
		allocCancel()

		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "browser_launch_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}

	m.allocCancel = allocCancel
	m.browserCtx = browserCtx
	m.browserCancel = browserCancel
	m.ready = true

	logger.Info("Browser launched successfully")

	return nil
}

func (m *Manager) Close(ctx context.Context) (err error) {
	const op = "Close"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if m.browserCancel != nil {
		m.browserCancel()
	}

	if m.allocCancel != nil {
		m.allocCancel()
	}

	m.ready = false
	logger.Info("Browser closed")

	return nil
}

// run executes actions on the page, bounded by the browser timeout and
// cancelled together with ctx.
func (m *Manager) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	if !m.ready {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	budget := time.Duration(m.config.BrowserConfig.Timeout) * time.Millisecond
	if budget < minRunBudget {
		budget = minRunBudget
	}

	runCtx, cancel := context.WithTimeout(m.browserCtx, budget)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// evaluate applies fn to arg in the page and decodes its JSON result into out.
func (m *Manager) evaluate(ctx context.Context, op, fn string, arg any, out any) error {
	call, err := script.Call(fn, arg)
	if err != nil {
		return err
	}

	var raw string
	expr := fmt.Sprintf("JSON.stringify((%s) ?? null)", call)
	if err := m.run(ctx, op, chromedp.Evaluate(expr, &raw)); err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	return json.Unmarshal([]byte(raw), out)
}

func (m *Manager) Navigate(ctx context.Context, url string) (err error) {
	const op = "Navigate"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, url))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("url", url))
	defer func() {
		step.End(err)
	}()

	if err := m.run(ctx, op, chromedp.Navigate(url)); err != nil {
		if apperr.CodeOf(err) != "" {
			return err
		}

		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "goto_failed",
			apperr.MetaStage:  apperr.StageNavigation,
			apperr.MetaURL:    url,
		})
	}

	return nil
}

func (m *Manager) Scroll(ctx context.Context, direction string, amount int) (err error) {
	const op = "Scroll"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op,
		attribute.String("direction", direction),
		attribute.Int("amount", amount))
	defer func() {
		step.End(err)
	}()

	var offset float64
	if err := m.evaluate(ctx, op, script.Scroll(), script.ScrollArg{Direction: direction, Amount: amount}, &offset); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "scroll_failed",
			apperr.MetaStage:  apperr.StageInteraction,
		})
	}

	time.Sleep(settleDelay)
	logger.Debug("Scrolled", zap.Float64("scroll_y", offset))

	return nil
}

func (m *Manager) Screenshot(ctx context.Context, path string) (data []byte, err error) {
	const op = "Screenshot"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	capture := chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		data, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatJpeg).
			WithQuality(jpegQuality).
			Do(ctx)

		return err
	})

	if err := m.run(ctx, op, capture); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "screenshot_failed",
			apperr.MetaStage:  apperr.StageScreenshot,
		})
	}

	if path != "" {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
				apperr.MetaReason: "screenshot_write_failed",
				apperr.MetaStage:  apperr.StageScreenshot,
			})
		}
	}

	return data, nil
}

func (m *Manager) Snapshot(ctx context.Context, opts dom.CaptureOptions) (snap *dom.Snapshot, err error) {
	const op = "Snapshot"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.Generation, opts.Generation))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("generation", opts.Generation))
	defer func() {
		step.End(err)
	}()

	call, err := script.Call(script.Snapshot(), opts)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "snapshot_arg_failed",
			apperr.MetaStage:  apperr.StageSnapshot,
		})
	}

	var raw string
	if err := m.run(ctx, op, chromedp.Evaluate(call, &raw)); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "snapshot_evaluate_failed",
			apperr.MetaStage:  apperr.StageSnapshot,
		})
	}

	snap, err = dom.ParseSnapshot([]byte(raw))
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "snapshot_decode_failed",
			apperr.MetaStage:  apperr.StageSnapshot,
		})
	}

	if snap.Truncated {
		logger.Warn("Snapshot truncated at node limit", zap.Int("max_nodes", opts.MaxNodes))
	}

	return snap, nil
}

func (m *Manager) EvaluateJS(ctx context.Context, fn string, arg any) (result any, err error) {
	const op = "EvaluateJS"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if err := m.evaluate(ctx, op, fn, arg, &result); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "evaluate_failed",
		})
	}

	return result, nil
}

func (m *Manager) Content(ctx context.Context) (html string, err error) {
	const op = "Content"
	logger := m.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if err := m.run(ctx, op, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "content_failed",
			apperr.MetaStage:  apperr.StageExtraction,
		})
	}

	return html, nil
}

func (m *Manager) IsReady() bool {
	return m.ready
}
