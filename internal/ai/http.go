package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"browser-agent/pkg/apperr"
	"browser-agent/pkg/tracing"
)

// postJSON sends body to url and decodes a 200 response into out.
func postJSON(ctx context.Context, step *tracing.Span, client *http.Client, op, provider, url string, headers map[string]string, body, out any) error {
	meta := func(reason string) map[string]any {
		return map[string]any{
			apperr.MetaReason:   reason,
			apperr.MetaStage:    apperr.StageAI,
			apperr.MetaProvider: provider,
		}
	}

	step.AddEvent("marshaling request")

	jsonData, err := json.Marshal(body)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, meta("marshal_failed"))
	}

	step.AddEvent("creating HTTP request")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, meta("request_create_failed"))
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	step.AddEvent("sending HTTP request")

	resp, err := client.Do(req)
	if err != nil {
		code := apperr.CodeAIError
		if ctx.Err() != nil {
			code = apperr.CodeTimeout
		}

		return apperr.Wrap(op, code, err, meta("http_request_failed"))
	}
	defer resp.Body.Close()

	step.AddEvent("reading response")

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeAIError, err, meta("read_body_failed"))
	}

	if resp.StatusCode != http.StatusOK {
		m := meta("api_error")
		m["status_code"] = resp.StatusCode

		return apperr.Wrap(op, apperr.CodeAIError, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(data)), m)
	}

	step.AddEvent("unmarshaling response")

	if err = json.Unmarshal(data, out); err != nil {
		return apperr.Wrap(op, apperr.CodeAIError, err, meta("unmarshal_failed"))
	}

	return nil
}
