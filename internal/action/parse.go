package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"browser-agent/pkg/apperr"
)

// Parse decodes one wire-format action. The payload must be a JSON object
// with exactly one key; a single unknown key is UnsupportedAction, every
// other malformation is ActionParseError.
func Parse(data []byte) (Intent, error) {
	const op = "action.Parse"

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, parseError(op, "invalid_json", "", err)
	}

	if len(raw) != 1 {
		return nil, parseError(op, "expected_single_key", "", fmt.Errorf("expected exactly one action key, got %d", len(raw)))
	}

	for key, body := range raw {
		return parseBody(op, Kind(key), body)
	}

	return nil, nil
}

// ParseText extracts an action object from free-form model output, tolerating
// markdown code fences and text around the object.
func ParseText(text string) (Intent, error) {
	body, err := ExtractObject(text)
	if err != nil {
		return nil, parseError("action.ParseText", "no_json_object", "", err)
	}

	return Parse([]byte(body))
}

// ExtractObject returns the outermost JSON object in text.
func ExtractObject(text string) (string, error) {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", errors.New("no JSON object in response")
	}

	return text[start : end+1], nil
}

func parseBody(op string, kind Kind, body json.RawMessage) (Intent, error) {
	switch kind {
	case KindClickElement:
		var p struct {
			Index *int `json:"index"`
		}
		if err := decodeObject(body, &p); err != nil {
			return nil, parseError(op, "invalid_payload", kind, err)
		}
		if err := checkIndex(p.Index); err != nil {
			return nil, parseError(op, "invalid_index", kind, err)
		}

		return ClickElement{Index: *p.Index}, nil

	case KindInputText:
		var p struct {
			Index *int    `json:"index"`
			Text  *string `json:"text"`
		}
		if err := decodeObject(body, &p); err != nil {
			return nil, parseError(op, "invalid_payload", kind, err)
		}
		if err := checkIndex(p.Index); err != nil {
			return nil, parseError(op, "invalid_index", kind, err)
		}
		if p.Text == nil {
			return nil, parseError(op, "missing_text", kind, errors.New("missing required field \"text\""))
		}

		return InputText{Index: *p.Index, Text: *p.Text}, nil

	case KindGoToURL:
		var p struct {
			URL *string `json:"url"`
		}
		if err := decodeObject(body, &p); err != nil {
			return nil, parseError(op, "invalid_payload", kind, err)
		}
		if p.URL == nil {
			return nil, parseError(op, "missing_url", kind, errors.New("missing required field \"url\""))
		}

		return GoToURL{URL: *p.URL}, nil

	case KindScroll:
		var p struct {
			Direction *string `json:"direction"`
			Amount    *int    `json:"amount"`
		}
		if err := decodeObject(body, &p); err != nil {
			return nil, parseError(op, "invalid_payload", kind, err)
		}
		if p.Direction == nil {
			return nil, parseError(op, "missing_direction", kind, errors.New("missing required field \"direction\""))
		}

		dir := Direction(*p.Direction)
		if !dir.valid() {
			return nil, parseError(op, "invalid_direction", kind, fmt.Errorf("unknown scroll direction %q", *p.Direction))
		}

		return Scroll{Direction: dir, Amount: p.Amount}.normalized(op)
	}

	return nil, apperr.Wrap(op, apperr.CodeUnsupportedAction, fmt.Errorf("unsupported action %q", string(kind)), map[string]any{
		apperr.MetaReason: "unsupported_action",
		apperr.MetaAction: string(kind),
		apperr.MetaStage:  apperr.StageParse,
	})
}

func decodeObject(body json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("action payload must be an object")
	}

	return json.Unmarshal(trimmed, v)
}

func checkIndex(index *int) error {
	if index == nil {
		return errors.New("missing required field \"index\"")
	}

	if *index < 0 {
		return fmt.Errorf("index must be non-negative, got %d", *index)
	}

	return nil
}

func parseError(op, reason string, kind Kind, err error) error {
	meta := map[string]any{
		apperr.MetaReason: reason,
		apperr.MetaStage:  apperr.StageParse,
	}
	if kind != "" {
		meta[apperr.MetaAction] = string(kind)
	}

	return apperr.Wrap(op, apperr.CodeActionParse, err, meta)
}
