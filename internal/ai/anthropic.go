package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"browser-agent/internal/entity"
	"browser-agent/pkg/apperr"
	"browser-agent/pkg/tracing"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

type anthropic struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

func newAnthropic(httpClient *http.Client, apiKey, baseURL string) *anthropic {
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}

	return &anthropic{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

type claudeRequest struct {
	Model      string          `json:"model"`
	MaxTokens  int             `json:"max_tokens"`
	System     string          `json:"system,omitempty"`
	Messages   []claudeMessage `json:"messages"`
	Tools      []claudeTool    `json:"tools,omitempty"`
	ToolChoice map[string]any  `json:"tool_choice,omitempty"`
}

type claudeMessage struct {
	Role    string        `json:"role"`
	Content []claudeBlock `json:"content"`
}

type claudeBlock struct {
	Type   string        `json:"type"`
	Text   string        `json:"text,omitempty"`
	Source *claudeSource `json:"source,omitempty"`
}

type claudeSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type claudeTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type claudeResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text,omitempty"`
		Name  string          `json:"name,omitempty"`
		Input json.RawMessage `json:"input,omitempty"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (a *anthropic) complete(ctx context.Context, step *tracing.Span, req request) (*entity.AIResponse, error) {
	const op = "anthropic.complete"

	body := claudeRequest{
		Model:      req.Model,
		MaxTokens:  req.MaxTokens,
		System:     req.System,
		Messages:   make([]claudeMessage, 0, len(req.Messages)),
		Tools:      a.tools(),
		ToolChoice: map[string]any{"type": "any"},
	}

	for _, msg := range req.Messages {
		body.Messages = append(body.Messages, claudeMessage{Role: msg.Role, Content: claudeContent(msg)})
	}

	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var resp claudeResponse
	if err := postJSON(ctx, step, a.httpClient, op, "anthropic", a.baseURL+"/v1/messages", headers, body, &resp); err != nil {
		return nil, err
	}

	step.AddEvent("parsing response")

	return a.parseResponse(op, &resp)
}

func claudeContent(msg entity.AIMessage) []claudeBlock {
	var blocks []claudeBlock

	if len(msg.Image) > 0 {
		blocks = append(blocks, claudeBlock{
			Type: "image",
			Source: &claudeSource{
				Type:      "base64",
				MediaType: mediaType(msg),
				Data:      base64.StdEncoding.EncodeToString(msg.Image),
			},
		})
	}

	return append(blocks, claudeBlock{Type: "text", Text: msg.Text})
}

func (a *anthropic) tools() []claudeTool {
	specs := toolSpecs()
	tools := make([]claudeTool, len(specs))

	for i, s := range specs {
		tools[i] = claudeTool{Name: s.Name, Description: s.Description, InputSchema: s.Parameters}
	}

	return tools
}

// parseResponse takes the first tool call. Without one the text is read as a
// JSON decision.
func (a *anthropic) parseResponse(op string, resp *claudeResponse) (*entity.AIResponse, error) {
	var thought []string

	for _, content := range resp.Content {
		switch content.Type {
		case "text":
			thought = append(thought, content.Text)
		case "tool_use":
			decision, err := decodeToolCall(content.Name, content.Input)
			if err != nil {
				return nil, err
			}
			decision.Thought = strings.Join(thought, "\n")

			return decision, nil
		}
	}

	text := strings.Join(thought, "\n")
	if text == "" {
		return nil, apperr.Wrap(op, apperr.CodeAIError, errEmptyResponse, map[string]any{
			apperr.MetaReason:   "empty_response",
			apperr.MetaStage:    apperr.StageAI,
			apperr.MetaProvider: "anthropic",
			"stop_reason":       resp.StopReason,
		})
	}

	decision, err := decodeText(text)
	if err != nil {
		return nil, err
	}
	decision.Thought = text

	return decision, nil
}

func mediaType(msg entity.AIMessage) string {
	if msg.MediaType != "" {
		return msg.MediaType
	}

	return "image/jpeg"
}
