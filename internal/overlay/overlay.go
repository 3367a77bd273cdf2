// Package overlay draws numbered boxes over indexed elements so a screenshot
// shows which index addresses which element.
package overlay

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"browser-agent/internal/dom"
	"browser-agent/pkg/apperr"
	"browser-agent/pkg/logg"
	"browser-agent/pkg/tracing"
)

const (
	rendererName   = "OverlayRenderer"
	overlayTracer  = "overlay.renderer"
	ContainerID    = "browser-agent-highlight-container"
	DefaultTTL     = 5 * time.Second
	FocusColor     = "#ff0000"
	cleanupTimeout = 2 * time.Second
)

// Palette cycles over non-focused boxes.
var Palette = []string{
	"#ff7f0e", "#2ca02c", "#1f77b4", "#9467bd", "#8c564b",
	"#e377c2", "#17becf", "#bcbd22", "#7f7f7f", "#d62728",
}

// ScriptRunner evaluates a function expression with one JSON argument.
type ScriptRunner interface {
	EvaluateJS(ctx context.Context, fn string, arg any) (any, error)
}

type Renderer struct {
	runner ScriptRunner
	logger *zap.Logger
	tracer trace.Tracer
	ttl    time.Duration
}

func NewRenderer(runner ScriptRunner, logger *zap.Logger, ttl time.Duration) *Renderer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Renderer{
		runner: runner,
		logger: logger.With(zap.String(logg.Layer, rendererName)),
		tracer: otel.Tracer(overlayTracer),
		ttl:    ttl,
	}
}

// Box is one highlight rectangle in viewport coordinates.
type Box struct {
	Index  int     `json:"index"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color"`
	Focus  bool    `json:"focus"`
}

// Boxes lays out one box per entry; the focused index gets FocusColor.
func Boxes(entries []dom.Entry, focus int) []Box {
	out := make([]Box, 0, len(entries))
	for _, e := range entries {
		r := e.Descriptor.BoundingBox
		b := Box{
			Index:  e.Index,
			X:      r.X,
			Y:      r.Y,
			Width:  r.Width,
			Height: r.Height,
			Color:  Palette[e.Index%len(Palette)],
		}

		if e.Index == focus {
			b.Color = FocusColor
			b.Focus = true
		}

		out = append(out, b)
	}

	return out
}

// boxArgs flattens boxes into plain maps, the argument shape every driver
// can serialize.
func boxArgs(boxes []Box) []any {
	out := make([]any, len(boxes))
	for i, b := range boxes {
		out[i] = map[string]any{
			"index":  b.Index,
			"x":      b.X,
			"y":      b.Y,
			"width":  b.Width,
			"height": b.Height,
			"color":  b.Color,
			"focus":  b.Focus,
		}
	}

	return out
}

// Render replaces any existing overlay with boxes for entries. The overlay
// removes itself after the renderer TTL.
func (r *Renderer) Render(ctx context.Context, entries []dom.Entry, focus int) (err error) {
	const op = "Render"
	logger := r.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, r.tracer, logger, op, attribute.Int("boxes", len(entries)))
	defer func() {
		step.End(err)
	}()

	arg := map[string]any{
		"containerId": ContainerID,
		"token":       uuid.NewString(),
		"ttlMs":       float64(r.ttl.Milliseconds()),
		"boxes":       boxArgs(Boxes(entries, focus)),
	}

	if _, err = r.runner.EvaluateJS(ctx, renderScript(), arg); err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "highlight_render_failed",
			apperr.MetaStage:  apperr.StageHighlight,
		})
	}

	logger.Debug("Highlights rendered", zap.Int("boxes", len(entries)), zap.Int("focus", focus))

	return nil
}

// Clear removes the overlay. It runs on a context detached from ctx's
// cancellation so that a cancelled observation still cleans up.
func (r *Renderer) Clear(ctx context.Context) error {
	const op = "Clear"

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if _, err := r.runner.EvaluateJS(cleanupCtx, clearScript(), map[string]any{"containerId": ContainerID}); err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "highlight_clear_failed",
			apperr.MetaStage:  apperr.StageHighlight,
		})
	}

	return nil
}

func renderScript() string {
	return fmt.Sprintf(`(opts) => {
		const previous = document.getElementById(opts.containerId);
		if (previous) {
			previous.remove();
		}

		const container = document.createElement('div');
		container.id = opts.containerId;
		container.dataset.token = opts.token;
		container.style.cssText = 'position: fixed; top: 0; left: 0; width: 0; height: 0; pointer-events: none; z-index: %[1]d;';

		for (const b of opts.boxes) {
			const overlay = document.createElement('div');
			overlay.style.cssText = [
				'position: fixed',
				'pointer-events: none',
				'box-sizing: border-box',
				'z-index: %[1]d',
				'left: ' + b.x + 'px',
				'top: ' + b.y + 'px',
				'width: ' + b.width + 'px',
				'height: ' + b.height + 'px',
				'border: ' + (b.focus ? 3 : 2) + 'px solid ' + b.color,
				'background: ' + b.color + '1a',
			].join(';');

			const label = document.createElement('div');
			label.textContent = String(b.index);
			label.style.cssText = [
				'position: absolute',
				'top: -2px',
				'right: -2px',
				'padding: 1px 4px',
				'font: bold 11px monospace',
				'color: #fff',
				'background: ' + b.color,
				'border-radius: 3px',
			].join(';');

			overlay.appendChild(label);
			container.appendChild(overlay);
		}

		(document.body || document.documentElement).appendChild(container);

		setTimeout(() => {
			const current = document.getElementById(opts.containerId);
			if (current && current.dataset.token === opts.token) {
				current.remove();
			}
		}, opts.ttlMs);

		return opts.boxes.length;
	}`, maxZIndex)
}

func clearScript() string {
	return `(opts) => {
		const container = document.getElementById(opts.containerId);
		if (container) {
			container.remove();
			return true;
		}
		return false;
	}`
}

const maxZIndex = 2147483647
