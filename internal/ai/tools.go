package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"browser-agent/internal/action"
	"browser-agent/internal/entity"
	"browser-agent/pkg/apperr"
)

// toolDone ends the task; it is not a browser action.
const toolDone = "done"

type toolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

func object(required []string, props map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func toolSpecs() []toolSpec {
	index := map[string]any{
		"type":        "integer",
		"minimum":     0,
		"description": "Index of the element in the interactive elements list",
	}

	return []toolSpec{
		{
			Name:        string(action.KindClickElement),
			Description: "Click the interactive element with the given index",
			Parameters:  object([]string{"index"}, map[string]any{"index": index}),
		},
		{
			Name:        string(action.KindInputText),
			Description: "Replace the value of the input element with the given index",
			Parameters: object([]string{"index", "text"}, map[string]any{
				"index": index,
				"text":  map[string]any{"type": "string"},
			}),
		},
		{
			Name:        string(action.KindGoToURL),
			Description: "Navigate the current tab to an absolute http(s) URL",
			Parameters: object([]string{"url"}, map[string]any{
				"url": map[string]any{"type": "string"},
			}),
		},
		{
			Name:        string(action.KindScroll),
			Description: "Scroll the page. Amount is in pixels and defaults to one viewport",
			Parameters: object([]string{"direction"}, map[string]any{
				"direction": map[string]any{
					"type": "string",
					"enum": []string{
						string(action.DirectionDown),
						string(action.DirectionUp),
						string(action.DirectionBottom),
						string(action.DirectionTop),
					},
				},
				"amount": map[string]any{"type": "integer", "minimum": 0},
			}),
		},
		{
			Name:        toolDone,
			Description: "Finish the task and report the result",
			Parameters: object([]string{"result"}, map[string]any{
				"result": map[string]any{"type": "string"},
			}),
		},
	}
}

// decodeToolCall turns a tool call into a decision. Browser tools go through
// action.Parse so every provider gets the same validation.
func decodeToolCall(name string, input json.RawMessage) (*entity.AIResponse, error) {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}

	if name == toolDone {
		var p struct {
			Result string `json:"result"`
		}
		if err := json.Unmarshal(input, &p); err != nil {
			return nil, apperr.Wrap("ai.decodeToolCall", apperr.CodeActionParse, err, map[string]any{
				apperr.MetaReason: "invalid_done_payload",
				apperr.MetaStage:  apperr.StageParse,
			})
		}

		return &entity.AIResponse{Complete: true, Result: p.Result}, nil
	}

	wire, err := json.Marshal(map[string]json.RawMessage{name: input})
	if err != nil {
		return nil, apperr.Wrap("ai.decodeToolCall", apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "marshal_failed",
			apperr.MetaStage:  apperr.StageParse,
		})
	}

	intent, err := action.Parse(wire)
	if err != nil {
		return nil, err
	}

	return &entity.AIResponse{Action: intent}, nil
}

// decodeText reads a decision from free text: either {"done":{"result":...}}
// or a single-key action object.
func decodeText(text string) (*entity.AIResponse, error) {
	body, err := action.ExtractObject(text)
	if err != nil {
		return nil, apperr.Wrap("ai.decodeText", apperr.CodeActionParse, err, map[string]any{
			apperr.MetaReason: "no_action",
			apperr.MetaStage:  apperr.StageParse,
		})
	}

	var probe map[string]json.RawMessage
	if err = json.Unmarshal([]byte(body), &probe); err == nil {
		if done, ok := probe[toolDone]; ok && len(probe) == 1 {
			return decodeToolCall(toolDone, done)
		}
	}

	intent, err := action.Parse([]byte(body))
	if err != nil {
		return nil, err
	}

	return &entity.AIResponse{Action: intent}, nil
}

// textInstructions is appended to the system prompt for providers without
// tool calling.
func textInstructions() string {
	var b strings.Builder
	b.WriteString("Reply with exactly one JSON object and nothing else. Available actions:\n")

	for _, t := range toolSpecs() {
		params, _ := json.Marshal(t.Parameters["properties"])
		fmt.Fprintf(&b, "- {%q: %s} %s\n", t.Name, params, t.Description)
	}

	b.WriteString(`Example: {"click_element": {"index": 3}}`)

	return b.String()
}

var errEmptyResponse = errors.New("provider returned no content")
