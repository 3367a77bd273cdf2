package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"browser-agent/internal/entity"
	"browser-agent/pkg/apperr"
	"browser-agent/pkg/tracing"
)

type openAI struct {
	client *openai.Client
}

func newOpenAI(httpClient *http.Client, apiKey, baseURL string) *openAI {
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = httpClient
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &openAI{client: openai.NewClientWithConfig(cfg)}
}

func (o *openAI) complete(ctx context.Context, step *tracing.Span, req request) (*entity.AIResponse, error) {
	const op = "openai.complete"

	body := openai.ChatCompletionRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Messages:  openAIMessages(req),
		Tools:     o.tools(),
	}

	step.AddEvent("sending chat completion")

	resp, err := o.client.CreateChatCompletion(ctx, body)
	if err != nil {
		meta := map[string]any{
			apperr.MetaReason:   "api_error",
			apperr.MetaStage:    apperr.StageAI,
			apperr.MetaProvider: "openai",
		}

		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			meta["status_code"] = apiErr.HTTPStatusCode
		}

		code := apperr.CodeAIError
		if ctx.Err() != nil {
			code = apperr.CodeTimeout
		}

		return nil, apperr.Wrap(op, code, err, meta)
	}

	step.AddEvent("parsing response")

	if len(resp.Choices) == 0 {
		return nil, apperr.Wrap(op, apperr.CodeAIError, errEmptyResponse, map[string]any{
			apperr.MetaReason:   "empty_response",
			apperr.MetaStage:    apperr.StageAI,
			apperr.MetaProvider: "openai",
		})
	}

	msg := resp.Choices[0].Message

	if len(msg.ToolCalls) > 0 {
		call := msg.ToolCalls[0].Function

		decision, err := decodeToolCall(call.Name, json.RawMessage(call.Arguments))
		if err != nil {
			return nil, err
		}
		decision.Thought = msg.Content

		return decision, nil
	}

	if msg.Content == "" {
		return nil, apperr.Wrap(op, apperr.CodeAIError, errEmptyResponse, map[string]any{
			apperr.MetaReason:   "empty_response",
			apperr.MetaStage:    apperr.StageAI,
			apperr.MetaProvider: "openai",
			"finish_reason":     string(resp.Choices[0].FinishReason),
		})
	}

	decision, err := decodeText(msg.Content)
	if err != nil {
		return nil, err
	}
	decision.Thought = msg.Content

	return decision, nil
}

func openAIMessages(req request) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)

	if req.System != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, msg := range req.Messages {
		role := openai.ChatMessageRoleUser
		if msg.Role == entity.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}

		if len(msg.Image) == 0 {
			out = append(out, openai.ChatCompletionMessage{Role: role, Content: msg.Text})
			continue
		}

		out = append(out, openai.ChatCompletionMessage{
			Role: role,
			MultiContent: []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeText,
					Text: msg.Text,
				},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    "data:" + mediaType(msg) + ";base64," + base64.StdEncoding.EncodeToString(msg.Image),
						Detail: openai.ImageURLDetailAuto,
					},
				},
			},
		})
	}

	return out
}

func (o *openAI) tools() []openai.Tool {
	specs := toolSpecs()
	tools := make([]openai.Tool, len(specs))

	for i, s := range specs {
		tools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		}
	}

	return tools
}
