package usecase

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
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
	"browser-agent/internal/entity"
	"browser-agent/internal/ports"
	"browser-agent/pkg/apperr"
	"browser-agent/pkg/logg"
	"browser-agent/pkg/tracing"
)

const (
	agentServiceName = "AgentService"
	agentTracer      = "usecase.agent"
	errorPause       = 2 * time.Second
)

type AgentService struct {
	config  *config.Config
	logger  *zap.Logger
	tracer  trace.Tracer
	session *Session
	ai      ports.AIClient

	out     io.Writer
	confirm *bufio.Reader
	pause   time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

type AgentServiceParams struct {
	fx.In

	Config  *config.Config
	Logger  *zap.Logger
	Session *Session
	AI      ports.AIClient
	Input   *bufio.Reader `optional:"true"`
}

func NewAgentService(params AgentServiceParams) *AgentService {
	confirm := params.Input
	if confirm == nil {
		confirm = bufio.NewReader(os.Stdin)
	}

	return &AgentService{
		config:  params.Config,
		logger:  params.Logger.With(zap.String(logg.Layer, agentServiceName)),
		tracer:  otel.Tracer(agentTracer),
		session: params.Session,
		ai:      params.AI,
		out:     os.Stdout,
		confirm: confirm,
		pause:   errorPause,
	}
}

// loopState is what one task run carries between iterations.
type loopState struct {
	task              *entity.Task
	messages          []entity.AIMessage
	lastResult        *entity.ActionResult
	lastFailed        action.Intent
	consecutiveErrors int
}

// Execute runs the observe, decide, dispatch loop until the provider reports
// completion, the iteration budget runs out or too many consecutive errors
// occur.
func (s *AgentService) Execute(ctx context.Context, taskDescription string) (resp *entity.Task, err error) {
	const op = "Execute"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.String("task_description", taskDescription))
	defer func() {
		step.End(err)
	}()

	if taskDescription == "" {
		return nil, apperr.InvalidReqError(op, "task_description", errors.New("task description cannot be empty"))
	}

	task := &entity.Task{
		ID:          uuid.New(),
		Description: taskDescription,
		Status:      entity.TaskStatusInProgress,
		CreatedAt:   time.Now(),
		Steps:       make([]entity.Step, 0),
	}

	logger = logger.With(zap.String(logg.TaskID, task.ID.String()))
	step.AddEvent("task created")

	if !s.session.Ready() {
		return s.fail(task, "browser is not ready", apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready"))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	s.stopped = false
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	state := &loopState{
		task: task,
		messages: []entity.AIMessage{
			{Role: entity.RoleSystem, Text: buildSystemPrompt(s.config.AgentConfig.MaxIterations)},
		},
	}

	maxIterations := s.config.AgentConfig.MaxIterations
	maxErrors := s.config.AgentConfig.MaxConsecutiveErrors

	for iteration := 1; iteration <= maxIterations; iteration++ {
		if ctx.Err() != nil {
			return s.interrupted(op, task, ctx.Err())
		}

		fmt.Fprintf(s.out, "\n🔄 Iteration %d/%d\n", iteration, maxIterations)
		step.AddEvent("iteration", attribute.Int("iteration", iteration))

		done, iterErr := s.iterate(ctx, logger, state, iteration)
		if done {
			fmt.Fprintf(s.out, "✅ Task completed: %s\n", task.Result)
			step.AddEvent("task completed")

			return task, nil
		}

		if iterErr == nil {
			state.consecutiveErrors = 0
			continue
		}

		if ctx.Err() != nil {
			return s.interrupted(op, task, ctx.Err())
		}

		state.consecutiveErrors++
		logger.Warn("Iteration failed",
			zap.Int("iteration", iteration),
			zap.Int("consecutive_errors", state.consecutiveErrors),
			zap.Error(iterErr))

		if state.consecutiveErrors >= maxErrors {
			return s.fail(task, fmt.Sprintf("too many consecutive errors: %v", iterErr), apperr.Wrap(op, apperr.CodeActionFailed, iterErr, map[string]any{
				apperr.MetaReason: "too_many_consecutive_errors",
				apperr.MetaStage:  apperr.StageExecution,
				apperr.MetaTaskID: task.ID.String(),
			}))
		}

		s.wait(ctx)
	}

	return s.fail(task, "max iterations reached", apperr.WrapErrorWithReason(op, apperr.CodeMaxIterations, "max_iterations_reached"))
}

// iterate performs one observe, decide, dispatch round. It reports done when
// the provider completed the task.
func (s *AgentService) iterate(ctx context.Context, logger *zap.Logger, state *loopState, iteration int) (bool, error) {
	page, err := s.session.Observe(ctx, s.session.DefaultObserveRequest())
	if err != nil {
		return false, err
	}

	forgetImages(state.messages)
	state.messages = append(state.messages, observationMessage(state.task.Description, iteration, page, state.lastResult))

	response, err := s.ai.SendMessage(ctx, state.messages)
	if err != nil {
		logger.Error("AI request failed", zap.Error(err))
		// Keep the conversation alternating for the next attempt.
		state.messages = state.messages[:len(state.messages)-1]

		return false, err
	}

	if response.Thought != "" {
		fmt.Fprintf(s.out, "💭 %s\n", response.Thought)
	}

	state.messages = append(state.messages, assistantMessage(response))

	if response.Complete {
		completedAt := time.Now()
		state.task.Status = entity.TaskStatusCompleted
		state.task.Result = response.Result
		state.task.CompletedAt = &completedAt

		return true, nil
	}

	if response.Action == nil {
		err = apperr.WrapErrorWithReason("iterate", apperr.CodeActionParse, "no_action")
		result := resultFromError(err)
		state.lastResult = &result

		return false, err
	}

	return false, s.handleAction(ctx, state, page, response.Action)
}

func (s *AgentService) wait(ctx context.Context) {
	if s.pause <= 0 {
		return
	}

	select {
	case <-ctx.Done():
	case <-time.After(s.pause):
	}
}

func (s *AgentService) interrupted(op string, task *entity.Task, cause error) (*entity.Task, error) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()

	if stopped {
		fmt.Fprintln(s.out, "\n⚠️  Task stopped by user")

		return s.fail(task, "stopped by user", apperr.WrapErrorWithReason(op, apperr.CodeCancelledByUser, "stopped_by_user"))
	}

	fmt.Fprintln(s.out, "\n⚠️  Task cancelled")

	return s.fail(task, "context cancelled", apperr.Wrap(op, apperr.CodeTimeout, cause, map[string]any{
		apperr.MetaReason: "context_cancelled",
	}))
}

func (s *AgentService) fail(task *entity.Task, reason string, err error) (*entity.Task, error) {
	task.Status = entity.TaskStatusFailed
	task.Error = reason

	return task, err
}

// Stop cancels the running task, if any.
func (s *AgentService) Stop() {
	const op = "Stop"
	logger := s.logger.With(zap.String(logg.Operation, op))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}

	logger.Info("Stopping agent...")

	s.stopped = true
	s.cancel()
}
