package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"browser-agent/internal/action"
	"browser-agent/internal/config"
	"browser-agent/internal/dom"
	"browser-agent/internal/entity"
	"browser-agent/internal/extract"
	"browser-agent/internal/ports"
	"browser-agent/pkg/apperr"
	"browser-agent/pkg/logg"
	"browser-agent/pkg/tracing"
)

const (
	sessionName   = "Session"
	sessionTracer = "usecase.session"
)

// Session owns one page: it observes it into a selector map and dispatches
// index-addressed actions against that map. Observe and Dispatch are
// serialized.
type Session struct {
	mu sync.Mutex

	config      *config.Config
	logger      *zap.Logger
	tracer      trace.Tracer
	browser     ports.BrowserManager
	highlighter ports.Highlighter

	tree      *dom.Tree
	selectors *dom.SelectorMap
}

type SessionParams struct {
	fx.In

	Config      *config.Config
	Logger      *zap.Logger
	Browser     ports.BrowserManager
	Highlighter ports.Highlighter
}

func NewSession(params SessionParams) *Session {
	return &Session{
		config:      params.Config,
		logger:      params.Logger.With(zap.String(logg.Layer, sessionName)),
		tracer:      otel.Tracer(sessionTracer),
		browser:     params.Browser,
		highlighter: params.Highlighter,
	}
}

// DefaultObserveRequest follows the DOM and browser configuration.
func (s *Session) DefaultObserveRequest() entity.ObserveRequest {
	return entity.ObserveRequest{
		Highlight:  s.config.DOMConfig.Highlight,
		FocusIndex: dom.NoFocus,
		Screenshot: s.config.BrowserConfig.UseScreenshots,
		Structured: true,
	}
}

func (s *Session) buildOptions(req entity.ObserveRequest) dom.Options {
	opts := dom.DefaultOptions()
	opts.HighlightElements = req.Highlight
	opts.FocusIndex = req.FocusIndex
	opts.ViewportExpansion = s.config.DOMConfig.ViewportExpansion

	if s.config.DOMConfig.MaxDepth > 0 {
		opts.MaxDepth = s.config.DOMConfig.MaxDepth
	}

	return opts
}

// Observe snapshots the page, rebuilds the selector map and optionally takes
// a highlighted screenshot. Any overlay left from an earlier observation is
// removed before the snapshot so it never appears in the tree.
func (s *Session) Observe(ctx context.Context, req entity.ObserveRequest) (state *entity.PageState, err error) {
	const op = "Observe"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.Bool("highlight", req.Highlight),
		attribute.Int("focus", req.FocusIndex))
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.browser.IsReady() {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	s.clearHighlights(ctx, logger)

	generation := uuid.NewString()
	logger = logger.With(zap.String(logg.Generation, generation))

	step.AddEvent("capturing snapshot")

	snap, err := s.browser.Snapshot(ctx, dom.CaptureOptions{
		Generation: generation,
		MaxDepth:   s.config.DOMConfig.MaxDepth,
		MaxNodes:   s.config.DOMConfig.MaxNodes,
	})
	if err != nil {
		// The page may already hold a new registry, so the old indices no
		// longer address anything.
		s.tree, s.selectors = nil, nil

		return nil, err
	}

	if snap.Truncated {
		logger.Warn("Snapshot truncated by node or depth limit")
	}

	step.AddEvent("building tree")

	opts := s.buildOptions(req)
	tree, selectors := dom.Build(snap, opts)
	s.tree, s.selectors = tree, selectors

	step.SetAttributes(attribute.Int("interactive", selectors.Len()))

	state = &entity.PageState{
		URL:       snap.URL,
		Title:     snap.Title,
		Tree:      tree,
		Selectors: selectors,
		Elements:  dom.Render(selectors),
		Timestamp: time.Now(),
	}

	if req.Screenshot {
		s.capture(ctx, logger, step, opts, state)
	}

	if req.Structured {
		state.Structured = s.structuredSummary(ctx, logger)
	}

	logger.Info("Page observed",
		zap.String(logg.URL, state.URL),
		zap.Int("interactive", selectors.Len()),
		zap.Bool("screenshot", len(state.Screenshot) > 0))

	return state, nil
}

// capture draws the overlay, saves a screenshot and clears the overlay.
// Failures degrade the observation to text only.
func (s *Session) capture(ctx context.Context, logger *zap.Logger, step *tracing.Span, opts dom.Options, state *entity.PageState) {
	if opts.HighlightElements {
		step.AddEvent("rendering highlights")

		if err := s.highlighter.Render(ctx, state.Selectors.Entries(), opts.FocusIndex); err != nil {
			logger.Warn("Highlight failed", zap.Error(err))
		}

		defer s.clearHighlights(ctx, logger)
	}

	step.AddEvent("taking screenshot")

	path, err := s.screenshotPath(state.Selectors.Generation())
	if err != nil {
		logger.Warn("Screenshot directory unavailable", zap.Error(err))
	}

	data, err := s.browser.Screenshot(ctx, path)
	if err != nil {
		logger.Warn("Screenshot failed", zap.Error(err))
		return
	}

	state.Screenshot = data
	state.ScreenshotPath = path
}

func (s *Session) screenshotPath(generation string) (string, error) {
	dir := s.config.AppConfig.OutputDir
	if dir == "" {
		return "", nil
	}

	dir = filepath.Join(dir, "screenshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s-%.8s.jpg", time.Now().Format("20060102-150405"), generation)

	return filepath.Join(dir, name), nil
}

func (s *Session) structuredSummary(ctx context.Context, logger *zap.Logger) string {
	html, err := s.browser.Content(ctx)
	if err != nil {
		logger.Warn("Page content unavailable", zap.Error(err))
		return ""
	}

	data, err := extract.StructuredData(html)
	if err != nil {
		logger.Warn("Structured data extraction failed", zap.Error(err))
		return ""
	}

	return data.Summary()
}

func (s *Session) clearHighlights(ctx context.Context, logger *zap.Logger) {
	if err := s.highlighter.Clear(ctx); err != nil {
		logger.Debug("Highlight cleanup failed", zap.Error(err))
	}
}

// ClearHighlights removes any overlay from the page.
func (s *Session) ClearHighlights(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.highlighter.Clear(ctx)
}

// SelectorMap returns the map of the latest observation, nil after
// navigation or a failed observation.
func (s *Session) SelectorMap() *dom.SelectorMap {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selectors
}

// Tree returns the tree of the latest observation.
func (s *Session) Tree() *dom.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tree
}

// Dispatch performs one action against the current selector map. Driver
// failures are returned unchanged and never retried.
func (s *Session) Dispatch(ctx context.Context, intent action.Intent) (err error) {
	const op = "Dispatch"
	logger := s.logger.With(zap.String(logg.Operation, op))

	if intent == nil {
		return apperr.InvalidReqError(op, "action", errors.New("action is required"))
	}

	logger = logger.With(zap.String(logg.Action, string(intent.Kind())))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.String("action", string(intent.Kind())))
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch a := intent.(type) {
	case action.ClickElement:
		return s.withHandle(ctx, op, a.Index, func(h dom.Handle) error {
			return h.Click(ctx)
		})

	case action.InputText:
		return s.withHandle(ctx, op, a.Index, func(h dom.Handle) error {
			return h.Fill(ctx, a.Text)
		})

	case action.GoToURL:
		if err = ValidateURL(a.URL); err != nil {
			return apperr.Wrap(op, apperr.CodeInvalidURL, err, map[string]any{
				apperr.MetaReason: "invalid_url",
				apperr.MetaStage:  apperr.StageNavigation,
				apperr.MetaURL:    a.URL,
			})
		}

		s.tree, s.selectors = nil, nil

		return s.browser.Navigate(ctx, a.URL)

	case action.Scroll:
		amount := 0
		if a.Amount != nil {
			amount = *a.Amount
		}

		return s.browser.Scroll(ctx, string(a.Direction), amount)
	}

	return apperr.Wrap(op, apperr.CodeUnsupportedAction, fmt.Errorf("unsupported action %q", intent.Kind()), map[string]any{
		apperr.MetaReason: "unsupported_action",
		apperr.MetaAction: string(intent.Kind()),
	})
}

func (s *Session) withHandle(ctx context.Context, op string, index int, fn func(dom.Handle) error) error {
	entry, ok := s.selectors.Lookup(index)
	if !ok {
		return apperr.Wrap(op, apperr.CodeIndexNotFound, fmt.Errorf("no element with index %d", index), map[string]any{
			apperr.MetaReason:     "index_not_found",
			apperr.MetaIndex:      index,
			apperr.MetaGeneration: s.selectors.Generation(),
		})
	}

	handle, err := s.browser.Resolve(ctx, entry.Ref)
	if err != nil {
		return err
	}
	defer handle.Release()

	return fn(handle)
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url has no host")
	}

	return nil
}

// Extract runs one extraction against the current page HTML.
func (s *Session) Extract(ctx context.Context, cfg extract.Config) (values []any, err error) {
	const op = "Extract"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.String("strategy", string(cfg.Strategy)),
		attribute.String("query", cfg.Query))
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	html, err := s.browser.Content(ctx)
	if err != nil {
		return nil, err
	}

	values, err = extract.Extract(html, cfg)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInvalidArgument, err, map[string]any{
			apperr.MetaReason: "extraction_failed",
			apperr.MetaStage:  apperr.StageExtraction,
		})
	}

	logger.Debug("Extracted", zap.Int("values", len(values)))

	return values, nil
}

// StructuredData collects the structured data of the current page.
func (s *Session) StructuredData(ctx context.Context) (data *extract.Structured, err error) {
	const op = "StructuredData"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	html, err := s.browser.Content(ctx)
	if err != nil {
		return nil, err
	}

	data, err = extract.StructuredData(html)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "extraction_failed",
			apperr.MetaStage:  apperr.StageExtraction,
		})
	}

	return data, nil
}

func (s *Session) Ready() bool {
	return s.browser.IsReady()
}
