package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"browser-agent/internal/config"
	"browser-agent/internal/entity"
	"browser-agent/pkg/apperr"
	"browser-agent/pkg/logg"
	"browser-agent/pkg/tracing"
)

const (
	aiClientName = "AIClient"
	aiTracer     = "ai.client"
)

// Default models per provider, used when AI_MODEL is empty.
const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultOpenAIModel    = "gpt-4o"
	DefaultGeminiModel    = "gemini-2.5-pro"
)

// request is what every provider receives: the system prompt split out of
// the conversation, which alternates user and assistant turns.
type request struct {
	Model     string
	MaxTokens int
	System    string
	Messages  []entity.AIMessage
}

type provider interface {
	complete(ctx context.Context, step *tracing.Span, req request) (*entity.AIResponse, error)
}

type Client struct {
	config   *config.Config
	logger   *zap.Logger
	tracer   trace.Tracer
	limiter  *rate.Limiter
	provider provider
	name     string
	model    string
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewClient(params Params) (*Client, error) {
	cfg := params.Config.AIConfig
	logger := params.Logger.With(zap.String(logg.Layer, aiClientName), zap.String(logg.Provider, cfg.Provider))
	httpClient := &http.Client{Timeout: cfg.Timeout}

	c := &Client{
		config:  params.Config,
		logger:  logger,
		tracer:  otel.Tracer(aiTracer),
		limiter: newLimiter(cfg.RequestsPerMinute),
		name:    cfg.Provider,
		model:   cfg.Model,
	}

	switch cfg.Provider {
	case config.ProviderAnthropic:
		c.provider = newAnthropic(httpClient, cfg.APIKey, cfg.BaseURL)
		if c.model == "" {
			c.model = DefaultAnthropicModel
		}
	case config.ProviderOpenAI:
		c.provider = newOpenAI(httpClient, cfg.APIKey, cfg.BaseURL)
		if c.model == "" {
			c.model = DefaultOpenAIModel
		}
	case config.ProviderGemini:
		c.provider = newGemini(httpClient, cfg.APIKey, cfg.BaseURL)
		if c.model == "" {
			c.model = DefaultGeminiModel
		}
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}

	if cfg.APIKey == "" {
		logger.Warn("AI_API_KEY is empty, provider requests will be rejected")
	}

	return c, nil
}

// newLimiter spaces requests evenly over a minute. A non-positive rate
// disables limiting.
func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}

	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

func (c *Client) Provider() string {
	return c.name
}

func (c *Client) SendMessage(ctx context.Context, messages []entity.AIMessage) (resp *entity.AIResponse, err error) {
	const op = "SendMessage"
	logger := c.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, c.tracer, logger, op,
		attribute.String("provider", c.name),
		attribute.String("model", c.model),
		attribute.Int("messages_count", len(messages)))
	defer func() {
		step.End(err)
	}()

	step.AddEvent("waiting for rate limiter")

	if err = c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeTimeout, err, map[string]any{
			apperr.MetaReason:   "rate_limit_wait_cancelled",
			apperr.MetaStage:    apperr.StageAI,
			apperr.MetaProvider: c.name,
		})
	}

	req := request{
		Model:     c.model,
		MaxTokens: c.config.AIConfig.MaxTokens,
	}

	for _, msg := range messages {
		if msg.Role == entity.RoleSystem {
			req.System = joinText(req.System, msg.Text)
			continue
		}
		req.Messages = append(req.Messages, msg)
	}

	logger.Debug("Sending message to AI", zap.Int("messages_count", len(req.Messages)))

	resp, err = c.provider.complete(ctx, step, req)
	if err != nil {
		return nil, err
	}

	logger.Debug("AI decision received",
		zap.Bool("complete", resp.Complete),
		zap.Bool("has_action", resp.Action != nil))

	return resp, nil
}

func joinText(a, b string) string {
	if a == "" {
		return b
	}

	return a + "\n\n" + b
}
