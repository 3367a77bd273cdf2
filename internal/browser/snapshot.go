package browser

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"browser-agent/internal/browser/script"
	"browser-agent/internal/dom"
	"browser-agent/pkg/apperr"
	"browser-agent/pkg/logg"
	"browser-agent/pkg/tracing"
)

// Snapshot captures the live DOM and registers its elements under
// opts.Generation so that later Resolve calls can find them.
func (m *Manager) Snapshot(ctx context.Context, opts dom.CaptureOptions) (snap *dom.Snapshot, err error) {
	const op = "Snapshot"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.Generation, opts.Generation))

	_, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("generation", opts.Generation))
	defer func() {
		step.End(err)
	}()

	if err := m.activePage(op); err != nil {
		return nil, err
	}

	if err := m.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(loadStateTimeout),
	}); err != nil {
		logger.Debug("DOM content not loaded before snapshot", zap.Error(err))
	}

	result, err := m.page.Evaluate(script.Snapshot(), captureArg(opts))
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "snapshot_evaluate_failed",
			apperr.MetaStage:  apperr.StageSnapshot,
		})
	}

	snap, err = decodeSnapshot(result)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "snapshot_decode_failed",
			apperr.MetaStage:  apperr.StageSnapshot,
		})
	}

	if snap.Truncated {
		logger.Warn("Snapshot truncated at node limit", zap.Int("max_nodes", opts.MaxNodes))
	}

	step.SetAttributes(attribute.Bool("truncated", snap.Truncated))

	return snap, nil
}

func captureArg(opts dom.CaptureOptions) map[string]any {
	return map[string]any{
		"generation": opts.Generation,
		"maxDepth":   opts.MaxDepth,
		"maxNodes":   opts.MaxNodes,
	}
}

func refArg(ref dom.Ref) map[string]any {
	return map[string]any{
		"generation": ref.Generation,
		"id":         ref.ID,
	}
}

func decodeSnapshot(result any) (*dom.Snapshot, error) {
	switch v := result.(type) {
	case string:
		return dom.ParseSnapshot([]byte(v))
	case []byte:
		return dom.ParseSnapshot(v)
	case nil:
		return nil, fmt.Errorf("snapshot script returned nothing")
	}

	return nil, fmt.Errorf("unexpected snapshot result type %T", result)
}
