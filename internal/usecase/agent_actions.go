package usecase

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"browser-agent/internal/action"
	"browser-agent/internal/dom"
	"browser-agent/internal/entity"
	"browser-agent/pkg/apperr"
	"browser-agent/pkg/logg"
	"browser-agent/pkg/tracing"
)

// handleAction guards, confirms and dispatches one action, then records the
// outcome as a task step and as the result reported with the next
// observation.
func (s *AgentService) handleAction(ctx context.Context, state *loopState, page *entity.PageState, intent action.Intent) (err error) {
	const op = "handleAction"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Action, string(intent.Kind())))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.String("action_type", string(intent.Kind())))
	defer func() {
		step.End(err)
	}()

	taskStep := entity.Step{
		ID:          uuid.New(),
		Action:      intent.Kind(),
		Description: action.Describe(intent),
		Timestamp:   time.Now(),
		Screenshot:  page.ScreenshotPath,
	}

	fmt.Fprintf(s.out, "🎬 Action: %s\n", taskStep.Description)

	switch {
	case state.lastFailed != nil && reflect.DeepEqual(state.lastFailed, intent):
		err = apperr.Wrap(op, apperr.CodeDuplicateAction, fmt.Errorf("%s failed on the previous attempt", taskStep.Description), map[string]any{
			apperr.MetaReason: "duplicate_action",
			apperr.MetaAction: string(intent.Kind()),
		})

	case needsConfirmation(intent, page) && !s.requestUserConfirmation(taskStep.Description):
		err = apperr.WrapErrorWithReason(op, apperr.CodeCancelledByUser, "action_cancelled")

	default:
		step.AddEvent("dispatching")
		err = s.session.Dispatch(ctx, intent)
	}

	result := resultFromError(err)
	taskStep.Result = result
	state.task.Steps = append(state.task.Steps, taskStep)
	state.lastResult = &result

	if err != nil {
		logger.Warn("Action failed", zap.String("kind", result.Kind), zap.Error(err))
		fmt.Fprintf(s.out, "❌ %s\n", result.Message)
		state.lastFailed = intent

		return err
	}

	state.lastFailed = nil

	return nil
}

// resultFromError reports an action outcome to the decision loop; Kind is the
// outermost error code.
func resultFromError(err error) entity.ActionResult {
	if err == nil {
		return entity.ActionResult{Success: true}
	}

	kind := apperr.CodeOf(err)
	if kind == "" {
		kind = apperr.CodeInternal
	}

	return entity.ActionResult{
		Success: false,
		Kind:    kind,
		Message: err.Error(),
	}
}

var (
	sensitiveFields = []string{"password", "passwd", "card", "cc-number", "cvv", "cvc", "pincode", "otp", "one-time-code"}
	destructiveText = []string{"delete", "remove", "pay", "buy", "purchase", "checkout", "удалить", "оплат", "купить"}
	paymentURLs     = []string{"payment", "checkout", "cart", "billing", "оплата"}
)

// needsConfirmation flags typing into credential or card fields and
// destructive clicks on payment pages.
func needsConfirmation(intent action.Intent, page *entity.PageState) bool {
	index, ok := action.IndexOf(intent)
	if !ok || page == nil {
		return false
	}

	entry, ok := page.Selectors.Lookup(index)
	if !ok || entry.Descriptor == nil {
		return false
	}

	switch intent.(type) {
	case action.InputText:
		return containsAny(fieldSignature(entry.Descriptor), sensitiveFields)
	case action.ClickElement:
		return containsAny(strings.ToLower(page.URL), paymentURLs) &&
			containsAny(clickSignature(entry.Descriptor), destructiveText)
	}

	return false
}

func fieldSignature(d *dom.ElementDescriptor) string {
	parts := []string{d.ID}
	for _, name := range []string{"type", "name", "autocomplete", "placeholder", "aria-label"} {
		parts = append(parts, d.Attributes[name])
	}

	return strings.ToLower(strings.Join(parts, " "))
}

func clickSignature(d *dom.ElementDescriptor) string {
	parts := []string{d.Text}
	for _, name := range []string{"value", "aria-label", "title"} {
		parts = append(parts, d.Attributes[name])
	}

	return strings.ToLower(strings.Join(parts, " "))
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}

	return false
}

func (s *AgentService) requestUserConfirmation(description string) bool {
	fmt.Fprintf(s.out, "\n⚠️  Security confirmation required\n")
	fmt.Fprintf(s.out, "Action: %s\n", description)
	fmt.Fprint(s.out, "Confirm (yes/no): ")

	line, err := s.confirm.ReadString('\n')
	if err != nil && line == "" {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(line))

	return answer == "yes" || answer == "y"
}
