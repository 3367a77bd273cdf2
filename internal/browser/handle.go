package browser

import (
	"context"
	"errors"
	"strings"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"browser-agent/internal/browser/script"
	"browser-agent/internal/dom"
	"browser-agent/pkg/apperr"
	"browser-agent/pkg/logg"
)

const actionTimeout = 10000

var detachedMarkers = []string{
	"not attached to the DOM",
	"Element is not attached",
	"Execution context was destroyed",
	"has been disposed",
}

// Resolve finds the live element registered for ref. A replaced registry or
// a disconnected element yields a stale_element error.
func (m *Manager) Resolve(ctx context.Context, ref dom.Ref) (dom.Handle, error) {
	const op = "Resolve"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.Generation, ref.Generation))

	if err := m.activePage(op); err != nil {
		return nil, err
	}

	jsHandle, err := m.page.EvaluateHandle(script.Resolve(), refArg(ref))
	if err != nil {
		return nil, resolveFailure(ctx, op, ref, err)
	}

	element := jsHandle.AsElement()
	if element == nil {
		_ = jsHandle.Dispose()

		return nil, staleError(op, ref, errors.New("element is no longer in the document"))
	}

	return &elementHandle{
		element: element,
		ref:     ref,
		logger:  logger,
	}, nil
}

type elementHandle struct {
	element playwright.ElementHandle
	ref     dom.Ref
	logger  *zap.Logger
}

// Click delivers a pointer click and falls back to a script click when the
// element cannot receive pointer events.
func (h *elementHandle) Click(ctx context.Context) error {
	const op = "ElementHandle.Click"

	err := h.element.Click(playwright.ElementHandleClickOptions{
		Timeout: playwright.Float(actionTimeout),
	})
	if err == nil {
		return nil
	}

	if isDetached(err) {
		return staleError(op, h.ref, err)
	}

	h.logger.Warn("Pointer click failed, using script click", zap.Error(err))

	if _, jsErr := h.element.Evaluate(script.ClickElement()); jsErr != nil {
		if isDetached(jsErr) {
			return staleError(op, h.ref, jsErr)
		}

		return apperr.Wrap(op, apperr.CodeActionFailed, errors.Join(err, jsErr), map[string]any{
			apperr.MetaReason: "click_failed",
			apperr.MetaStage:  apperr.StageInteraction,
		})
	}

	return nil
}

// Fill replaces the element's value with text.
func (h *elementHandle) Fill(ctx context.Context, text string) error {
	const op = "ElementHandle.Fill"

	err := h.element.Fill(text, playwright.ElementHandleFillOptions{
		Timeout: playwright.Float(actionTimeout),
	})
	if err == nil {
		return nil
	}

	if isDetached(err) {
		return staleError(op, h.ref, err)
	}

	return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
		apperr.MetaReason: "fill_failed",
		apperr.MetaStage:  apperr.StageInteraction,
	})
}

func (h *elementHandle) Release() {
	if err := h.element.Dispose(); err != nil {
		h.logger.Debug("Failed to dispose element handle", zap.Error(err))
	}
}

func isDetached(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	for _, marker := range detachedMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

// resolveFailure reports a detached element as stale. Any other evaluation
// failure says nothing about the element and is a failed action, or a
// timeout once ctx is done.
func resolveFailure(ctx context.Context, op string, ref dom.Ref, err error) error {
	if isDetached(err) {
		return staleError(op, ref, err)
	}

	code, reason := apperr.CodeActionFailed, "resolve_failed"
	if ctx.Err() != nil {
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
