package ai

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"browser-agent/internal/entity"
	"browser-agent/pkg/apperr"
	"browser-agent/pkg/tracing"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// gemini asks for a JSON-mode reply and reads the decision from the text.
type gemini struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

func newGemini(httpClient *http.Client, apiKey, baseURL string) *gemini {
	if baseURL == "" {
		baseURL = geminiBaseURL
	}

	return &gemini{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string        `json:"text,omitempty"`
	InlineData *geminiInline `json:"inline_data,omitempty"`
}

type geminiInline struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
	MaxOutputTokens  int    `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

func (g *gemini) complete(ctx context.Context, step *tracing.Span, req request) (*entity.AIResponse, error) {
	const op = "gemini.complete"

	body := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: joinText(req.System, textInstructions())}}},
		Contents:          make([]geminiContent, 0, len(req.Messages)),
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType: "application/json",
			MaxOutputTokens:  req.MaxTokens,
		},
	}

	for _, msg := range req.Messages {
		role := "user"
		if msg.Role == entity.RoleAssistant {
			role = "model"
		}

		parts := []geminiPart{{Text: msg.Text}}
		if len(msg.Image) > 0 {
			parts = append(parts, geminiPart{InlineData: &geminiInline{
				MimeType: mediaType(msg),
				Data:     base64.StdEncoding.EncodeToString(msg.Image),
			}})
		}

		body.Contents = append(body.Contents, geminiContent{Role: role, Parts: parts})
	}

	endpoint := g.baseURL + "/v1beta/models/" + url.PathEscape(req.Model) + ":generateContent"
	headers := map[string]string{"x-goog-api-key": g.apiKey}

	var resp geminiResponse
	if err := postJSON(ctx, step, g.httpClient, op, "gemini", endpoint, headers, body, &resp); err != nil {
		return nil, err
	}

	step.AddEvent("parsing response")

	var text []string
	if len(resp.Candidates) > 0 {
		for _, p := range resp.Candidates[0].Content.Parts {
			if p.Text != "" {
				text = append(text, p.Text)
			}
		}
	}

	if len(text) == 0 {
		return nil, apperr.Wrap(op, apperr.CodeAIError, errEmptyResponse, map[string]any{
			apperr.MetaReason:   "empty_response",
			apperr.MetaStage:    apperr.StageAI,
			apperr.MetaProvider: "gemini",
		})
	}

	joined := strings.Join(text, "\n")

	decision, err := decodeText(joined)
	if err != nil {
		return nil, err
	}
	decision.Thought = joined

	return decision, nil
}
