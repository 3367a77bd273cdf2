package cdp

import (
	"context"
	"errors"

	"github.com/chromedp/chromedp"

	"browser-agent/internal/browser/script"
	"browser-agent/internal/dom"
	"browser-agent/pkg/apperr"
)

// Resolve checks that ref still names a connected element of the current
// registry and returns a handle addressing it by JS path.
func (m *Manager) Resolve(ctx context.Context, ref dom.Ref) (dom.Handle, error) {
	const op = "Resolve"

	attached, err := m.attached(ctx, op, ref)
	if err != nil {
		return nil, resolveFailure(ctx, op, ref, err)
	}

	if !attached {
		return nil, staleError(op, ref, errors.New("element is no longer in the document"))
	}

	return &pathHandle{manager: m, ref: ref}, nil
}

func (m *Manager) attached(ctx context.Context, op string, ref dom.Ref) (bool, error) {
	var attached bool
	err := m.evaluate(ctx, op, script.Attached(), script.RefArg{Generation: ref.Generation, ID: ref.ID}, &attached)

	return attached, err
}

type pathHandle struct {
	manager *Manager
	ref     dom.Ref
}

func (h *pathHandle) path() string {
	return script.ElementPath(h.ref.ID)
}

func (h *pathHandle) Click(ctx context.Context) error {
	const op = "PathHandle.Click"

	if err := h.manager.run(ctx, op, chromedp.Click(h.path(), chromedp.ByJSPath)); err != nil {
		return h.failure(ctx, op, "click_failed", err)
	}

	return nil
}

// Fill clears the field and types text into it.
func (h *pathHandle) Fill(ctx context.Context, text string) error {
	const op = "PathHandle.Fill"

	err := h.manager.run(ctx, op,
		chromedp.Clear(h.path(), chromedp.ByJSPath),
		chromedp.SendKeys(h.path(), text, chromedp.ByJSPath),
	)
	if err != nil {
		return h.failure(ctx, op, "fill_failed", err)
	}

	return nil
}

func (h *pathHandle) Release() {}

// failure reports a detached element as stale and anything else as a
// failed action.
func (h *pathHandle) failure(ctx context.Context, op, reason string, err error) error {
	if attached, checkErr := h.manager.attached(ctx, op, h.ref); checkErr == nil && !attached {
		return staleError(op, h.ref, err)
	}

	return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
		apperr.MetaReason: reason,
		apperr.MetaStage:  apperr.StageInteraction,
	})
}

// resolveFailure classifies an error from the attach check. The check itself
// reports detachment as false, so an error never means a stale element.
func resolveFailure(ctx context.Context, op string, ref dom.Ref, err error) error {
	if apperr.CodeOf(err) != "" {
		return err
	}

	code, reason := apperr.CodeActionFailed, "resolve_failed"
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		code, reason = apperr.CodeTimeout, "context_cancelled"
	}

	return apperr.Wrap(op, code, err, map[string]any{
		apperr.MetaReason:     reason,
		apperr.MetaStage:      apperr.StageInteraction,
		apperr.MetaGeneration: ref.Generation,
		apperr.MetaIndex:      ref.ID,
	})
}

func staleError(op string, ref dom.Ref, err error) error {
	return apperr.Wrap(op, apperr.CodeStaleElement, err, map[string]any{
		apperr.MetaReason:     "element_detached",
		apperr.MetaStage:      apperr.StageInteraction,
		apperr.MetaGeneration: ref.Generation,
		apperr.MetaIndex:      ref.ID,
	})
}
